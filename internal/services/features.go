package services

import (
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// Entitlements reports purchase state, which lives outside the document
// database
type Entitlements interface {
	HasCompetitionsAccess(uid string) bool
}

// StaticEntitlements grants access from configuration
type StaticEntitlements struct {
	Unlimited   bool
	Subscribers map[string]bool
}

// NewStaticEntitlements creates entitlements for the given subscriber ids
func NewStaticEntitlements(unlimited bool, subscribers []string) *StaticEntitlements {
	e := &StaticEntitlements{Unlimited: unlimited, Subscribers: make(map[string]bool, len(subscribers))}
	for _, uid := range subscribers {
		e.Subscribers[uid] = true
	}
	return e
}

func (e *StaticEntitlements) HasCompetitionsAccess(uid string) bool {
	if e == nil {
		return false
	}
	return e.Unlimited || e.Subscribers[uid]
}

// FeatureService exposes feature flags
type FeatureService struct {
	log          logger.Logger
	queries      repository.ConfigQueries
	entitlements Entitlements
}

// NewFeatureService creates a new FeatureService
func NewFeatureService(log logger.Logger, queries repository.ConfigQueries, entitlements Entitlements) *FeatureService {
	return &FeatureService{
		log:          log,
		queries:      queries,
		entitlements: entitlements,
	}
}

// RequiresPayment watches the payment gate. A missing document or field
// means payment is required, and so does a failed subscription.
func (s *FeatureService) RequiresPayment() stream.Source[bool] {
	flags := stream.Map(s.queries.Features(), (*models.Features).RequiresPayment)
	return stream.Catch(flags, func(err error, emit func(bool)) {
		s.log.Warn("Feature flag subscription failed", "error", err)
		emit(true)
	})
}

// CanAccessCompetitions watches whether uid may use competitions
func (s *FeatureService) CanAccessCompetitions(uid string) stream.Source[bool] {
	return stream.Map(s.RequiresPayment(), func(required bool) bool {
		return !required || s.HasCompetitionsAccess(uid)
	})
}

// HasCompetitionsAccess reports the purchase state of uid
func (s *FeatureService) HasCompetitionsAccess(uid string) bool {
	return s.entitlements != nil && s.entitlements.HasCompetitionsAccess(uid)
}
