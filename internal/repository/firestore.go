package repository

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aamsco/awardswithfriends/internal/config"
	apperrors "github.com/aamsco/awardswithfriends/internal/errors"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/metrics"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// NewFirestoreClient connects to the production database, or to the
// emulator when an emulator host is configured.
func NewFirestoreClient(ctx context.Context, cfg config.FirebaseConfig, log logger.Logger) (*firestore.Client, error) {
	if cfg.EmulatorHost != "" && os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.EmulatorHost)
	}

	if os.Getenv("FIRESTORE_EMULATOR_HOST") != "" {
		client, err := firestore.NewClient(ctx, cfg.ProjectID, option.WithoutAuthentication())
		if err != nil {
			return nil, err
		}
		log.Info("Connected to Firestore emulator", "host", os.Getenv("FIRESTORE_EMULATOR_HOST"))
		return client, nil
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	log.Info("Connected to Firestore", "project", cfg.ProjectID)
	return client, nil
}

// Firestore implements LiveQueries with snapshot listeners
type Firestore struct {
	client  *firestore.Client
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewFirestore creates a new Firestore live query source
func NewFirestore(client *firestore.Client, log logger.Logger, m *metrics.Metrics) *Firestore {
	return &Firestore{client: client, log: log, metrics: m}
}

// listenerEnded reports whether a listener error only reflects our own
// cancellation
func listenerEnded(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled
}

func querySource[T any](f *Firestore, name string, q firestore.Query, decode func(*firestore.DocumentSnapshot) (T, error)) stream.Source[[]T] {
	return func(ctx context.Context, emit func([]T)) error {
		f.metrics.SubscriptionOpened(name)
		defer f.metrics.SubscriptionClosed(name)

		it := q.Snapshots(ctx)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if listenerEnded(ctx, err) {
					return nil
				}
				return apperrors.Unavailable(fmt.Sprintf("%s listener failed", name), err)
			}
			f.metrics.SnapshotReceived(name)

			docs, err := snap.Documents.GetAll()
			if err != nil {
				if listenerEnded(ctx, err) {
					return nil
				}
				return apperrors.Unavailable(fmt.Sprintf("%s snapshot read failed", name), err)
			}

			out := make([]T, 0, len(docs))
			for _, doc := range docs {
				v, err := decode(doc)
				if err != nil {
					f.log.Warn("Skipping undecodable document", "query", name, "path", doc.Ref.Path, "error", err)
					continue
				}
				out = append(out, v)
			}
			emit(out)
		}
	}
}

func docSource[T any](f *Firestore, name string, ref *firestore.DocumentRef, decode func(*firestore.DocumentSnapshot) (T, error)) stream.Source[*T] {
	return func(ctx context.Context, emit func(*T)) error {
		f.metrics.SubscriptionOpened(name)
		defer f.metrics.SubscriptionClosed(name)

		it := ref.Snapshots(ctx)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if listenerEnded(ctx, err) {
					return nil
				}
				if status.Code(err) == codes.NotFound {
					emit(nil)
					<-ctx.Done()
					return nil
				}
				return apperrors.Unavailable(fmt.Sprintf("%s listener failed", name), err)
			}
			f.metrics.SnapshotReceived(name)

			if snap == nil || !snap.Exists() {
				emit(nil)
				continue
			}
			v, err := decode(snap)
			if err != nil {
				f.log.Warn("Undecodable document treated as missing", "query", name, "path", ref.Path, "error", err)
				emit(nil)
				continue
			}
			emit(&v)
		}
	}
}

func decodeWithID[T any](setID func(*T, string)) func(*firestore.DocumentSnapshot) (T, error) {
	return func(doc *firestore.DocumentSnapshot) (T, error) {
		var v T
		if err := doc.DataTo(&v); err != nil {
			return v, err
		}
		setID(&v, doc.Ref.ID)
		return v, nil
	}
}

var (
	decodeUser        = decodeWithID(func(u *models.User, id string) { u.UID = id })
	decodeCompetition = decodeWithID(func(c *models.Competition, id string) { c.ID = id })
	decodeParticipant = decodeWithID(func(p *models.Participant, id string) { p.ID = id })
	decodeCeremony    = decodeWithID(func(c *models.Ceremony, id string) { c.ID = id })
	decodeCategory    = decodeWithID(func(c *models.Category, id string) { c.ID = id })
	decodeEventType   = decodeWithID(func(e *models.EventType, id string) { e.ID = id })
	decodeFeatures    = decodeWithID(func(*models.Features, string) {})
	decodeNominee     = decodeWithID(func(n *models.Nominee, id string) {
		if n.ID == "" {
			n.ID = id
		}
	})
)

func decodeVote(competitionID string) func(*firestore.DocumentSnapshot) (models.Vote, error) {
	return decodeWithID(func(v *models.Vote, id string) {
		v.ID = id
		v.CompetitionID = competitionID
	})
}

func (f *Firestore) User(uid string) stream.Source[*models.User] {
	return docSource(f, "user", f.client.Collection("users").Doc(uid), decodeUser)
}

func (f *Firestore) Competition(id string) stream.Source[*models.Competition] {
	return docSource(f, "competition", f.client.Collection("competitions").Doc(id), decodeCompetition)
}

func (f *Firestore) ParticipantRecordsForUser(uid string) stream.Source[[]models.ParticipantRecord] {
	q := f.client.CollectionGroup("participants").Where("odUserId", "==", uid)
	return querySource(f, "participant_records", q, func(doc *firestore.DocumentSnapshot) (models.ParticipantRecord, error) {
		p, err := decodeParticipant(doc)
		if err != nil {
			return models.ParticipantRecord{}, err
		}
		if doc.Ref.Parent == nil || doc.Ref.Parent.Parent == nil {
			return models.ParticipantRecord{}, fmt.Errorf("participant %s has no parent competition", doc.Ref.Path)
		}
		return models.ParticipantRecord{CompetitionID: doc.Ref.Parent.Parent.ID, Participant: p}, nil
	})
}

func (f *Firestore) Participants(competitionID string) stream.Source[[]models.Participant] {
	q := f.client.Collection("competitions").Doc(competitionID).Collection("participants").Query
	return querySource(f, "participants", q, decodeParticipant)
}

func (f *Firestore) Ceremonies() stream.Source[[]models.Ceremony] {
	q := f.client.Collection("ceremonies").OrderBy("date", firestore.Asc)
	return querySource(f, "ceremonies", q, decodeCeremony)
}

func (f *Firestore) Ceremony(id string) stream.Source[*models.Ceremony] {
	return docSource(f, "ceremony", f.client.Collection("ceremonies").Doc(id), decodeCeremony)
}

func (f *Firestore) Categories(year string) stream.Source[[]models.Category] {
	q := f.client.Collection("categories").
		Where("ceremonyYear", "==", year).
		OrderBy("displayOrder", firestore.Asc)
	return querySource(f, "categories", q, decodeCategory)
}

func (f *Firestore) LegacyCategories(ceremonyID string) stream.Source[[]models.Category] {
	q := f.client.Collection("ceremonies").Doc(ceremonyID).
		Collection("categories").
		OrderBy("displayOrder", firestore.Asc)
	return querySource(f, "legacy_categories", q, decodeCategory)
}

func (f *Firestore) LegacyNominees(ceremonyID, categoryID string) stream.Source[[]models.Nominee] {
	q := f.client.Collection("ceremonies").Doc(ceremonyID).
		Collection("categories").Doc(categoryID).
		Collection("nominees").Query
	return querySource(f, "legacy_nominees", q, decodeNominee)
}

func (f *Firestore) EventTypes() stream.Source[[]models.EventType] {
	return querySource(f, "event_types", f.client.Collection("eventTypes").Query, decodeEventType)
}

func (f *Firestore) UserVotes(competitionID, uid string) stream.Source[[]models.Vote] {
	q := f.client.Collection("competitions").Doc(competitionID).
		Collection("votes").
		Where("odUserId", "==", uid)
	return querySource(f, "user_votes", q, decodeVote(competitionID))
}

func (f *Firestore) AllVotes(competitionID string) stream.Source[[]models.Vote] {
	q := f.client.Collection("competitions").Doc(competitionID).Collection("votes").Query
	return querySource(f, "all_votes", q, decodeVote(competitionID))
}

func (f *Firestore) Vote(competitionID, voteID string) stream.Source[*models.Vote] {
	ref := f.client.Collection("competitions").Doc(competitionID).Collection("votes").Doc(voteID)
	return docSource(f, "vote", ref, decodeVote(competitionID))
}

func (f *Firestore) Features() stream.Source[*models.Features] {
	return docSource(f, "features", f.client.Collection("config").Doc("features"), decodeFeatures)
}
