package api

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
    "github.com/sirupsen/logrus"

    "vrpsearch/internal/model"
)

type EventBroker interface {
    Subscribe(runID string) chan model.RunEvent
    Unsubscribe(runID string, ch chan model.RunEvent)
    Publish(runID string, evt model.RunEvent)
    Close() error
}

var (
    _ EventBroker = (*Broker)(nil)
    _ EventBroker = (*RedisBroker)(nil)
)

// RedisBroker implements EventBroker over Redis Pub/Sub so several API
// replicas can stream the same run.
type RedisBroker struct {
    rdb *redis.Client
    log logrus.FieldLogger

    mu   sync.Mutex
    subs map[chan model.RunEvent]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, err
    }
    return &RedisBroker{
        rdb:  rdb,
        log:  logrus.WithField("component", "broker"),
        subs: map[chan model.RunEvent]*redis.PubSub{},
    }, nil
}

func (b *RedisBroker) Subscribe(runID string) chan model.RunEvent {
    ch := make(chan model.RunEvent, 32)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(runID))
    // wait for the subscription confirmation so no publish is missed
    if _, err := ps.Receive(ctx); err != nil {
        b.log.WithError(err).WithField("run", runID).Warn("redis subscribe")
    }
    b.mu.Lock()
    b.subs[ch] = ps
    b.mu.Unlock()
    go func() {
        defer close(ch)
        for msg := range ps.Channel() {
            var evt model.RunEvent
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
                b.log.WithError(err).Debug("drop malformed event")
                continue
            }
            deliver(ch, evt)
        }
    }()
    return ch
}

// Unsubscribe closes the Pub/Sub connection; the reader goroutine then
// closes ch.
func (b *RedisBroker) Unsubscribe(runID string, ch chan model.RunEvent) {
    b.mu.Lock()
    ps, ok := b.subs[ch]
    delete(b.subs, ch)
    b.mu.Unlock()
    if ok { _ = ps.Close() }
}

func (b *RedisBroker) Publish(runID string, evt model.RunEvent) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, err := json.Marshal(evt)
    if err != nil { return }
    if err := b.rdb.Publish(ctx, b.chanName(runID), data).Err(); err != nil {
        b.log.WithError(err).WithField("run", runID).Warn("redis publish")
    }
}

func (b *RedisBroker) Close() error {
    b.mu.Lock()
    for ch, ps := range b.subs {
        _ = ps.Close()
        delete(b.subs, ch)
    }
    b.mu.Unlock()
    return b.rdb.Close()
}

func (b *RedisBroker) chanName(runID string) string { return "run:" + runID }
