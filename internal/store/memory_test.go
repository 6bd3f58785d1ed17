package store

import (
    "context"
    "encoding/hex"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "vrpsearch/internal/model"
    "vrpsearch/internal/opt"
)

func TestDedupKeyFromID(t *testing.T) {
    assert.Equal(t, "evt_123", dedupKey([]byte(`{"id":"evt_123","type":"x"}`)))
}

func TestDedupKeyFromHash(t *testing.T) {
    got := dedupKey([]byte(`{"notId":"x"}`))
    b, err := hex.DecodeString(got)
    require.NoError(t, err)
    assert.Len(t, b, 8)
}

func TestMemoryRuns(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    for _, id := range []string{"a", "b", "c"} {
        require.NoError(t, m.CreateRun(ctx, model.Run{ID: id, Owner: "ops", Status: model.RunQueued, CreatedAt: time.Now()}))
    }
    require.NoError(t, m.CreateRun(ctx, model.Run{ID: "d", Owner: "other", Status: model.RunQueued}))

    r, err := m.GetRun(ctx, "b")
    require.NoError(t, err)
    r.Status = model.RunSucceeded
    r.Routes = [][]int{{0, 1, 0}}
    require.NoError(t, m.UpdateRun(ctx, r))

    // the stored copy is not aliased by the caller's slices
    r.Routes[0][1] = 9
    got, err := m.GetRun(ctx, "b")
    require.NoError(t, err)
    assert.Equal(t, [][]int{{0, 1, 0}}, got.Routes)

    page, next, err := m.ListRuns(ctx, "ops", "", "", 2)
    require.NoError(t, err)
    require.Len(t, page, 2)
    assert.Equal(t, "c", page[0].ID)
    assert.Equal(t, "b", next)

    page, next, err = m.ListRuns(ctx, "ops", "", next, 2)
    require.NoError(t, err)
    require.Len(t, page, 1)
    assert.Equal(t, "a", page[0].ID)
    assert.Empty(t, next)

    // a page that ends exactly at the last run has no next cursor
    page, next, err = m.ListRuns(ctx, "ops", "", "", 3)
    require.NoError(t, err)
    require.Len(t, page, 3)
    assert.Empty(t, next)

    _, _, err = m.ListRuns(ctx, "ops", "", "gone", 2)
    assert.ErrorIs(t, err, ErrInvalidCursor)

    done, _, err := m.ListRuns(ctx, "", model.RunSucceeded, "", 0)
    require.NoError(t, err)
    require.Len(t, done, 1)
    assert.Equal(t, "b", done[0].ID)

    _, err = m.GetRun(ctx, "zzz")
    assert.ErrorIs(t, err, ErrNotFound)
    assert.ErrorIs(t, m.UpdateRun(ctx, model.Run{ID: "zzz"}), ErrNotFound)
}

func TestMemorySnapshotsAndProfiles(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    require.NoError(t, m.SaveRunSnapshots(ctx, "r1", []opt.WeightSnapshot{{Iteration: 100}, {Iteration: 50}}))
    snaps, err := m.ListRunSnapshots(ctx, "r1")
    require.NoError(t, err)
    require.Len(t, snaps, 2)
    assert.Equal(t, 50, snaps[0].Iteration)

    require.NoError(t, m.SaveProfile(ctx, model.Profile{Name: "vns", Config: opt.Config{Algorithm: opt.AlgorithmVNS}}))
    require.NoError(t, m.SaveProfile(ctx, model.Profile{Name: "fast", Config: opt.Config{MaxIterations: 10}}))
    p, err := m.GetProfile(ctx, "vns")
    require.NoError(t, err)
    assert.Equal(t, opt.AlgorithmVNS, p.Config.Algorithm)
    assert.False(t, p.UpdatedAt.IsZero())

    all, err := m.ListProfiles(ctx)
    require.NoError(t, err)
    require.Len(t, all, 2)
    assert.Equal(t, "fast", all[0].Name)

    _, err = m.GetProfile(ctx, "missing")
    assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryWebhookQueue(t *testing.T) {
    ctx := context.Background()
    m := NewMemory()
    id, err := m.EnqueueWebhook(ctx, "r1", model.EventRunFinished, "http://hook", "s", []byte(`{"id":"evt_1"}`))
    require.NoError(t, err)
    dup, err := m.EnqueueWebhook(ctx, "r1", model.EventRunFinished, "http://hook", "s", []byte(`{"id":"evt_1"}`))
    require.NoError(t, err)
    assert.Equal(t, id, dup, "same payload id is enqueued once")

    due, err := m.FetchDueWebhookDeliveries(ctx, 10)
    require.NoError(t, err)
    require.Len(t, due, 1)

    later := time.Now().Add(time.Hour)
    require.NoError(t, m.MarkWebhookDelivery(ctx, id, false, &later, "boom", 500, 12))
    due, err = m.FetchDueWebhookDeliveries(ctx, 10)
    require.NoError(t, err)
    assert.Empty(t, due, "retry is not due yet")

    require.NoError(t, m.FailWebhookDelivery(ctx, id, "gave up", 500, 3))
    ds, err := m.ListWebhookDeliveries(ctx, "r1")
    require.NoError(t, err)
    require.Len(t, ds, 1)
    assert.Equal(t, DeliveryFailed, ds[0].Status)
    assert.Equal(t, 2, ds[0].Attempts)

    assert.ErrorIs(t, m.MarkWebhookDelivery(ctx, "nope", true, nil, "", 200, 1), ErrNotFound)
}
