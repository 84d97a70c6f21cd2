package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gigshield/reviewcore/internal/datastore"
	"github.com/gigshield/reviewcore/internal/model"
)

// Users of the standard referral chain: Worker reports to Lead, Lead to Director.
const (
	Director = "director"
	Lead     = "lead"
	Worker   = "worker"
)

// Standard pricing seeded by SeedPricing.
var (
	PostPricing = model.TaskConfig{
		ContentType: model.ContentPost, Price: 100, CommissionTier1: 10, CommissionTier2: 5,
		DailyRewardPoints: 30, ContinuousCheckDays: 7,
	}
	CommentPricing = model.TaskConfig{
		ContentType: model.ContentComment, Price: 20, CommissionTier1: 2, CommissionTier2: 1,
	}
)

// OpenStore opens an empty in-memory store closed at test cleanup.
// The store starts a cache janitor goroutine, so callers cannot use goleak.
func OpenStore(t *testing.T) *datastore.DataStore {
	t.Helper()
	ds, err := datastore.OpenSQLite(":memory:", time.Second)
	require.NoError(t, err, "failed to open test store")
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

// SeedChain creates users so that each id reports to the next one; the
// last id has no parent.
func SeedChain(t *testing.T, ds datastore.Interface, ids ...string) {
	t.Helper()
	for i := len(ids) - 1; i >= 0; i-- {
		u := &model.User{ID: ids[i]}
		if i+1 < len(ids) {
			parent := ids[i+1]
			u.ParentID = &parent
		}
		require.NoError(t, ds.CreateUser(t.Context(), u))
	}
}

// SeedPricing stores PostPricing and CommentPricing.
func SeedPricing(t *testing.T, ds datastore.Interface) {
	t.Helper()
	post, comment := PostPricing, CommentPricing
	require.NoError(t, ds.PutTaskConfig(t.Context(), &post))
	require.NoError(t, ds.PutTaskConfig(t.Context(), &comment))
}

// OpenSeededStore opens a store with the standard chain and pricing.
func OpenSeededStore(t *testing.T) *datastore.DataStore {
	t.Helper()
	ds := OpenStore(t)
	SeedChain(t, ds, Worker, Lead, Director)
	SeedPricing(t, ds)
	return ds
}
