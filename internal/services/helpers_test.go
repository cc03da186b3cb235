package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/repository/memory"
	"github.com/aamsco/awardswithfriends/internal/services"
	"github.com/aamsco/awardswithfriends/internal/stream"
	"github.com/aamsco/awardswithfriends/internal/testutil"
)

const waitFor = 2 * time.Second

// env wires the aggregation services over an in-memory store
type env struct {
	store      *memory.Store
	fx         *testutil.Fixtures
	membership *services.MembershipResolver
	votes      *services.VoteAggregator
	catalog    *services.CategoryCatalog
	counts     *services.CategoryCountEstimator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logger.NewDiscard()
	store := memory.New()
	membership := services.NewMembershipResolver(log, store, nil)
	return &env{
		store:      store,
		fx:         testutil.NewFixtures(42),
		membership: membership,
		votes:      services.NewVoteAggregator(log, membership, store, nil),
		catalog:    services.NewCategoryCatalog(log, store, nil),
		counts:     services.NewCategoryCountEstimator(log, store, nil),
	}
}

// watch runs src until the test ends
func watch[T any](t *testing.T, src stream.Source[T]) (<-chan T, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return stream.Values(ctx, src)
}

// until reads values until pred holds and returns the matching value
func until[T any](t *testing.T, ch <-chan T, pred func(T) bool) T {
	t.Helper()
	deadline := time.After(waitFor)
	var last T
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatalf("stream ended; last value %v", last)
			}
			if pred(v) {
				return v
			}
			last = v
		case <-deadline:
			t.Fatalf("timed out; last value %v", last)
		}
	}
}

// first returns the next value of ch
func first[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	return until(t, ch, func(T) bool { return true })
}
