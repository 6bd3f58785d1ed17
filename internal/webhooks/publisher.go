package webhooks

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "github.com/google/uuid"

    "vrpsearch/internal/model"
    "vrpsearch/internal/store"
)

type Publisher struct {
    Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
    return &Publisher{Store: s}
}

// RunFinished enqueues the run.finished notification for runs that asked
// for a callback. Runs without a callback URL are skipped.
func (p *Publisher) RunFinished(ctx context.Context, run model.Run) (string, error) {
    if run.CallbackURL == "" {
        return "", nil
    }
    payload := model.WebhookPayload{
        ID:        "evt_" + uuid.New().String(),
        Type:      model.EventRunFinished,
        RunID:     run.ID,
        Status:    run.Status,
        BestCost:  run.BestCost,
        Feasible:  run.Feasible,
        Routes:    run.Routes,
        Error:     run.Error,
        CreatedAt: time.Now().UTC(),
    }
    body, err := json.Marshal(payload)
    if err != nil {
        return "", fmt.Errorf("encode webhook payload: %w", err)
    }
    return p.Store.EnqueueWebhook(ctx, run.ID, model.EventRunFinished, run.CallbackURL, run.CallbackSecret, body)
}
