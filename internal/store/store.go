package store

import (
    "context"
    "errors"
    "time"

    "vrpsearch/internal/model"
    "vrpsearch/internal/opt"
)

// Store is the persistence interface used by the API server and the
// webhook worker.
type Store interface {
    Ping(ctx context.Context) error

    // Runs
    CreateRun(ctx context.Context, run model.Run) error
    UpdateRun(ctx context.Context, run model.Run) error
    GetRun(ctx context.Context, id string) (model.Run, error)
    ListRuns(ctx context.Context, owner string, status model.RunStatus, cursor string, limit int) ([]model.Run, string, error)

    // Adaptive weight snapshots recorded during a run
    SaveRunSnapshots(ctx context.Context, runID string, snaps []opt.WeightSnapshot) error
    ListRunSnapshots(ctx context.Context, runID string) ([]opt.WeightSnapshot, error)

    // Solver profiles
    GetProfile(ctx context.Context, name string) (model.Profile, error)
    ListProfiles(ctx context.Context) ([]model.Profile, error)
    SaveProfile(ctx context.Context, p model.Profile) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, runID string) ([]WebhookDelivery, error)
}

var (
    ErrNotFound      = errors.New("not found")
    ErrInvalidCursor = errors.New("invalid cursor")
)
