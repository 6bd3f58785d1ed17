// Package api exposes the search engine over HTTP: solve requests, run
// records, live run events (SSE and WebSocket) and solver profiles.
package api

import (
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/sirupsen/logrus"
    "golang.org/x/time/rate"

    "vrpsearch/internal/auth"
    "vrpsearch/internal/config"
    "vrpsearch/internal/model"
    "vrpsearch/internal/store"
    "vrpsearch/internal/webhooks"
)

type Server struct {
    Store   store.Store
    Pub     *webhooks.Publisher
    Auth    *auth.Verifier
    Broker  EventBroker
    Limiter *rate.Limiter
    Cfg     config.Service
    Log     logrus.FieldLogger

    runs *runRegistry
    wg   sync.WaitGroup
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store;
// if REDIS_URL is unset or unreachable, events stay in-process.
func NewServer(cfg config.Service) (*Server, error) {
    log := logrus.WithField("component", "api")
    var s store.Store
    if cfg.DatabaseURL == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil {
            return nil, fmt.Errorf("open postgres: %w", err)
        }
        if cfg.DBMigrate {
            if err := sp.MigrateDir(cfg.MigrationsDir); err != nil {
                _ = sp.Close()
                return nil, fmt.Errorf("migrate: %w", err)
            }
        }
        s = sp
    }
    var broker EventBroker
    if cfg.RedisURL != "" {
        rb, err := NewRedisBroker(cfg.RedisURL)
        if err != nil {
            log.WithError(err).Warn("redis unavailable, using in-memory broker")
            broker = NewBroker()
        } else {
            broker = rb
        }
    } else {
        broker = NewBroker()
    }
    srv := New(cfg, s, broker)
    if cfg.ProfilesFile != "" {
        if err := srv.SeedProfiles(context.Background(), cfg.ProfilesFile); err != nil {
            _ = srv.Close()
            return nil, err
        }
    }
    return srv, nil
}

// New assembles a Server from ready dependencies.
func New(cfg config.Service, s store.Store, broker EventBroker) *Server {
    limit := rate.Inf
    if cfg.RateRPS > 0 {
        limit = rate.Limit(cfg.RateRPS)
    }
    return &Server{
        Store:   s,
        Pub:     webhooks.NewPublisher(s),
        Auth:    auth.NewVerifier(cfg.AuthMode, cfg.AuthHMACSecret, cfg.AuthRoleClaim),
        Broker:  broker,
        Limiter: rate.NewLimiter(limit, cfg.RateBurst),
        Cfg:     cfg,
        Log:     logrus.WithField("component", "api"),
        runs:    newRunRegistry(),
    }
}

// SeedProfiles stores every profile of a YAML profiles file.
func (s *Server) SeedProfiles(ctx context.Context, path string) error {
    profiles, err := config.LoadProfiles(path)
    if err != nil {
        return err
    }
    now := time.Now().UTC()
    for name, c := range profiles {
        if err := s.Store.SaveProfile(ctx, model.Profile{Name: name, Config: c, UpdatedAt: now}); err != nil {
            return fmt.Errorf("save profile %q: %w", name, err)
        }
    }
    s.Log.WithField("count", len(profiles)).Info("solver profiles loaded")
    return nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Cfg.WebhookMaxAttempts, s.Cfg.WebhookInterval)
}

// Close cancels running searches, waits for them to record their outcome
// and releases the broker and the store.
func (s *Server) Close() error {
    s.runs.cancelAll()
    s.wg.Wait()
    err := s.Broker.Close()
    if c, ok := s.Store.(interface{ Close() error }); ok {
        if cerr := c.Close(); err == nil {
            err = cerr
        }
    }
    return err
}
