package handlers

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/aamsco/awardswithfriends/internal/auth"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/metrics"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/services"
	"github.com/aamsco/awardswithfriends/internal/websocket"
)

// Deps lists what the handlers are built from
type Deps struct {
	Queries      repository.LiveQueries
	Membership   services.MembershipServicer
	Votes        services.VoteAggregatorServicer
	Catalog      services.CatalogServicer
	Counts       services.CountServicer
	Voting       services.VotingServicer
	Competitions services.CompetitionServicer
	Account      services.AccountServicer
	Features     services.FeatureServicer
	Auth         *auth.Auth
	Hub          *websocket.Hub
	Metrics      *metrics.Metrics
	Log          logger.Logger

	// RequestTimeout bounds REST requests; WebSocket routes are exempt
	RequestTimeout time.Duration
	// RateLimit is requests per second per user, RateBurst the bucket size
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
	// MetricsPath defaults to /metrics
	MetricsPath string
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Queries      repository.LiveQueries
	Membership   services.MembershipServicer
	Votes        services.VoteAggregatorServicer
	Catalog      services.CatalogServicer
	Counts       services.CountServicer
	Voting       services.VotingServicer
	Competitions services.CompetitionServicer
	Account      services.AccountServicer
	Features     services.FeatureServicer
	Auth         *auth.Auth
	Hub          *websocket.Hub
	Metrics      *metrics.Metrics
	Log          logger.Logger

	limiter        *UserRateLimiter
	requestTimeout time.Duration
	allowedOrigins []string
	metricsPath    string
}

// New creates a new Handlers instance with all dependencies
func New(d Deps) *Handlers {
	log := d.Log
	if log == nil {
		log = logger.NewDiscard()
	}
	limit, burst := d.RateLimit, d.RateBurst
	if limit <= 0 {
		limit = 5
	}
	if burst <= 0 {
		burst = 20
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	metricsPath := d.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Handlers{
		Queries:        d.Queries,
		Membership:     d.Membership,
		Votes:          d.Votes,
		Catalog:        d.Catalog,
		Counts:         d.Counts,
		Voting:         d.Voting,
		Competitions:   d.Competitions,
		Account:        d.Account,
		Features:       d.Features,
		Auth:           d.Auth,
		Hub:            d.Hub,
		Metrics:        d.Metrics,
		Log:            log,
		limiter:        NewUserRateLimiter(rate.Limit(limit), burst),
		requestTimeout: timeout,
		allowedOrigins: d.AllowedOrigins,
		metricsPath:    metricsPath,
	}
}
