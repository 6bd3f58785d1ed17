package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "vrpsearch/internal/model"
    "vrpsearch/internal/opt"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, fmt.Errorf("open postgres: %w", err)
    }
    if err := db.Ping(); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("ping postgres: %w", err)
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every *.sql file in dir, in name order, that has not
// been recorded in schema_migrations yet.
func (p *Postgres) MigrateDir(dir string) error {
    ctx := context.Background()
    if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (name text PRIMARY KEY, applied_at timestamptz NOT NULL DEFAULT now())`); err != nil {
        return fmt.Errorf("migrate: %w", err)
    }
    files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
    if err != nil { return fmt.Errorf("migrate: %w", err) }
    sort.Strings(files)
    for _, f := range files {
        name := filepath.Base(f)
        var seen string
        err := p.db.QueryRowContext(ctx, `SELECT name FROM schema_migrations WHERE name=$1`, name).Scan(&seen)
        if err == nil { continue }
        if !errors.Is(err, sql.ErrNoRows) { return fmt.Errorf("migrate %s: %w", name, err) }
        body, err := os.ReadFile(f)
        if err != nil { return fmt.Errorf("migrate %s: %w", name, err) }
        tx, err := p.db.BeginTx(ctx, nil)
        if err != nil { return fmt.Errorf("migrate %s: %w", name, err) }
        if _, err := tx.ExecContext(ctx, string(body)); err != nil {
            _ = tx.Rollback()
            return fmt.Errorf("migrate %s: %w", name, err)
        }
        if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
            _ = tx.Rollback()
            return fmt.Errorf("migrate %s: %w", name, err)
        }
        if err := tx.Commit(); err != nil { return fmt.Errorf("migrate %s: %w", name, err) }
    }
    return nil
}

const runColumns = `id::text, owner, status, instance, customers, config, starts, best_cost, feasible, routes, stopped, metrics, start_summaries, mean_best_cost, stddev_best_cost, COALESCE(error,''), sys_info, COALESCE(callback_url,''), COALESCE(callback_secret,''), created_at, started_at, finished_at, duration_ms`

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) error {
    if run.ID == "" { run.ID = uuid.New().String() }
    args, err := runArgs(run)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, owner, status, instance, customers, config, starts, best_cost, feasible, routes, stopped, metrics, start_summaries, mean_best_cost, stddev_best_cost, error, sys_info, callback_url, callback_secret, created_at, started_at, finished_at, duration_ms)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
        ON CONFLICT (id) DO NOTHING`, args...)
    return err
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.Run) error {
    args, err := runArgs(run)
    if err != nil { return err }
    res, err := p.db.ExecContext(ctx, `UPDATE runs SET owner=$2, status=$3, instance=$4, customers=$5, config=$6, starts=$7, best_cost=$8, feasible=$9, routes=$10, stopped=$11, metrics=$12, start_summaries=$13, mean_best_cost=$14, stddev_best_cost=$15, error=$16, sys_info=$17, callback_url=$18, callback_secret=$19, created_at=$20, started_at=$21, finished_at=$22, duration_ms=$23, updated_at=now()
        WHERE id=$1`, args...)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
    if _, err := uuid.Parse(id); err != nil { return model.Run{}, ErrNotFound }
    row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id)
    r, err := scanRun(row)
    if errors.Is(err, sql.ErrNoRows) { return model.Run{}, ErrNotFound }
    return r, err
}

// ListRuns pages newest first; the cursor is the last id of the previous page.
func (p *Postgres) ListRuns(ctx context.Context, owner string, status model.RunStatus, cursor string, limit int) ([]model.Run, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
    args := []any{}
    if owner != "" { args = append(args, owner); q += fmt.Sprintf(` AND owner=$%d`, len(args)) }
    if status != "" { args = append(args, string(status)); q += fmt.Sprintf(` AND status=$%d`, len(args)) }
    if cursor != "" {
        var known bool
        if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM runs WHERE id::text=$1)`, cursor).Scan(&known); err != nil { return nil, "", err }
        if !known { return nil, "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor) }
        args = append(args, cursor)
        q += fmt.Sprintf(` AND (created_at, id) < (SELECT created_at, id FROM runs WHERE id=$%d::uuid)`, len(args))
    }
    args = append(args, limit+1)
    q += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Run{}
    for rows.Next() {
        r, err := scanRun(rows)
        if err != nil { return nil, "", err }
        out = append(out, r)
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) > limit {
        out = out[:limit]
        next = out[limit-1].ID
    }
    return out, next, nil
}

func (p *Postgres) SaveRunSnapshots(ctx context.Context, runID string, snaps []opt.WeightSnapshot) error {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    for _, s := range snaps {
        destroy, _ := json.Marshal(s.Destroy)
        repair, _ := json.Marshal(s.Repair)
        _, err := tx.ExecContext(ctx, `INSERT INTO run_snapshots (run_id, iteration, destroy_weights, repair_weights)
            VALUES ($1,$2,$3,$4)
            ON CONFLICT (run_id, iteration) DO UPDATE SET destroy_weights=$3, repair_weights=$4`, runID, s.Iteration, destroy, repair)
        if err != nil { return err }
    }
    return tx.Commit()
}

func (p *Postgres) ListRunSnapshots(ctx context.Context, runID string) ([]opt.WeightSnapshot, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT iteration, destroy_weights, repair_weights FROM run_snapshots WHERE run_id=$1 ORDER BY iteration`, runID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []opt.WeightSnapshot{}
    for rows.Next() {
        var s opt.WeightSnapshot
        var destroy, repair []byte
        if err := rows.Scan(&s.Iteration, &destroy, &repair); err != nil { return nil, err }
        if err := json.Unmarshal(destroy, &s.Destroy); err != nil { return nil, err }
        if err := json.Unmarshal(repair, &s.Repair); err != nil { return nil, err }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) GetProfile(ctx context.Context, name string) (model.Profile, error) {
    row := p.db.QueryRowContext(ctx, `SELECT name, config, updated_at FROM solver_profiles WHERE name=$1`, name)
    var pr model.Profile
    var js []byte
    if err := row.Scan(&pr.Name, &js, &pr.UpdatedAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.Profile{}, ErrNotFound }
        return model.Profile{}, err
    }
    if err := json.Unmarshal(js, &pr.Config); err != nil { return model.Profile{}, err }
    return pr, nil
}

func (p *Postgres) ListProfiles(ctx context.Context) ([]model.Profile, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT name, config, updated_at FROM solver_profiles ORDER BY name`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Profile{}
    for rows.Next() {
        var pr model.Profile
        var js []byte
        if err := rows.Scan(&pr.Name, &js, &pr.UpdatedAt); err != nil { return nil, err }
        if err := json.Unmarshal(js, &pr.Config); err != nil { return nil, err }
        out = append(out, pr)
    }
    return out, rows.Err()
}

func (p *Postgres) SaveProfile(ctx context.Context, pr model.Profile) error {
    js, err := json.Marshal(pr.Config)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO solver_profiles (name, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (name) DO UPDATE SET config=$2, updated_at=now()`, pr.Name, js)
    return err
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, run_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now(),$7)
        ON CONFLICT (run_id, event_type, url, dedup_key) DO NOTHING`, id, runID, eventType, url, nullIfEmpty(secret), payload, dedupKey(payload))
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, run_id::text, event_type, url, COALESCE(secret,''), payload, status, attempts, next_attempt_at
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.RunID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts, &d.NextAttemptAt); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`, id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, runID string) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, run_id::text, event_type, url, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0), delivered_at
        FROM webhook_deliveries WHERE run_id=$1 ORDER BY created_at`, runID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        var delivered sql.NullTime
        if err := rows.Scan(&d.ID, &d.RunID, &d.EventType, &d.URL, &d.Status, &d.Attempts, &d.NextAttemptAt, &d.LastError, &d.ResponseCode, &d.LatencyMs, &delivered); err != nil { return nil, err }
        if delivered.Valid { t := delivered.Time; d.DeliveredAt = &t }
        out = append(out, d)
    }
    return out, rows.Err()
}

type rowScanner interface {
    Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.Run, error) {
    var r model.Run
    var status string
    var cfg, routes, metrics, starts, sysInfo []byte
    var best, mean, stddev sql.NullFloat64
    var startedAt, finishedAt sql.NullTime
    err := row.Scan(&r.ID, &r.Owner, &status, &r.Instance, &r.Customers, &cfg, &r.Starts, &best, &r.Feasible, &routes, &r.Stopped, &metrics, &starts, &mean, &stddev, &r.Error, &sysInfo, &r.CallbackURL, &r.CallbackSecret, &r.CreatedAt, &startedAt, &finishedAt, &r.DurationMs)
    if err != nil { return model.Run{}, err }
    r.Status = model.RunStatus(status)
    r.BestCost = nullFloat(best)
    r.MeanBestCost = nullFloat(mean)
    r.StdDevBestCost = nullFloat(stddev)
    if startedAt.Valid { t := startedAt.Time; r.StartedAt = &t }
    if finishedAt.Valid { t := finishedAt.Time; r.FinishedAt = &t }
    if err := unmarshalOpt(cfg, &r.Config); err != nil { return model.Run{}, err }
    if err := unmarshalOpt(routes, &r.Routes); err != nil { return model.Run{}, err }
    if err := unmarshalOpt(starts, &r.StartSummaries); err != nil { return model.Run{}, err }
    if len(metrics) > 0 {
        r.Metrics = &opt.Metrics{}
        if err := json.Unmarshal(metrics, r.Metrics); err != nil { return model.Run{}, err }
    }
    if len(sysInfo) > 0 {
        r.SysInfo = &model.SysInfo{}
        if err := json.Unmarshal(sysInfo, r.SysInfo); err != nil { return model.Run{}, err }
    }
    return r, nil
}

func runArgs(r model.Run) ([]any, error) {
    cfg, err := json.Marshal(r.Config)
    if err != nil { return nil, fmt.Errorf("encode run config: %w", err) }
    return []any{
        r.ID, r.Owner, string(r.Status), r.Instance, r.Customers, cfg, r.Starts,
        r.BestCost, r.Feasible, jsonOrNil(r.Routes), r.Stopped, jsonOrNil(r.Metrics), jsonOrNil(r.StartSummaries),
        r.MeanBestCost, r.StdDevBestCost, nullIfEmpty(r.Error), jsonOrNil(r.SysInfo),
        nullIfEmpty(r.CallbackURL), nullIfEmpty(r.CallbackSecret), r.CreatedAt, r.StartedAt, r.FinishedAt, r.DurationMs,
    }, nil
}

func jsonOrNil(v any) any {
    switch x := v.(type) {
    case [][]int:
        if x == nil { return nil }
    case *opt.Metrics:
        if x == nil { return nil }
    case []opt.StartSummary:
        if x == nil { return nil }
    case *model.SysInfo:
        if x == nil { return nil }
    }
    b, err := json.Marshal(v)
    if err != nil { return nil }
    return b
}

func unmarshalOpt(b []byte, v any) error {
    if len(b) == 0 { return nil }
    return json.Unmarshal(b, v)
}

func nullFloat(f sql.NullFloat64) *float64 { if !f.Valid { return nil }; v := f.Float64; return &v }

func nullIfEmpty(s string) any { if strings.TrimSpace(s) == "" { return nil }; return s }
