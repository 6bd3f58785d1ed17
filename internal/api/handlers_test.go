package api

import (
    "bufio"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "vrpsearch/internal/auth"
    "vrpsearch/internal/config"
    "vrpsearch/internal/model"
    "vrpsearch/internal/store"
)

func testConfig(t *testing.T) config.Service {
    t.Helper()
    cfg, err := config.FromEnv(func(string) string { return "" })
    require.NoError(t, err)
    cfg.RateRPS = 0
    cfg.RunTimeout = 30 * time.Second
    return cfg
}

func newTestServer(t *testing.T, cfg config.Service) (*Server, http.Handler) {
    t.Helper()
    s := New(cfg, store.NewMemory(), NewBroker())
    t.Cleanup(func() { _ = s.Close() })
    return s, s.Routes()
}

type hdr map[string]string

var admin = hdr{"X-User": "root", "X-Role": "admin"}

func do(t *testing.T, h http.Handler, method, path, body string, headers hdr) *httptest.ResponseRecorder {
    t.Helper()
    var req *http.Request
    if body == "" {
        req = httptest.NewRequest(method, path, nil)
    } else {
        req = httptest.NewRequest(method, path, strings.NewReader(body))
        req.Header.Set("Content-Type", "application/json")
    }
    for k, v := range headers { req.Header.Set(k, v) }
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
    t.Helper()
    var v T
    require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
    return v
}

func waitTerminal(t *testing.T, s *Server, id string) model.Run {
    t.Helper()
    var run model.Run
    require.Eventually(t, func() bool {
        r, err := s.Store.GetRun(context.Background(), id)
        if err != nil { return false }
        run = r
        return r.Status.Terminal()
    }, 10*time.Second, 10*time.Millisecond)
    return run
}

func TestHealthReady(t *testing.T) {
    _, h := newTestServer(t, testConfig(t))
    assert.Equal(t, 200, do(t, h, http.MethodGet, "/healthz", "", nil).Code)
    assert.Equal(t, 200, do(t, h, http.MethodGet, "/readyz", "", nil).Code)
}

func TestSolve_Wait(t *testing.T) {
    _, h := newTestServer(t, testConfig(t))
    rr := do(t, h, http.MethodPost, "/v1/solve?wait=true",
        `{"instanceName":"classic4","config":{"algorithm":"lns","maxIterations":20,"seed":1}}`, nil)
    require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

    run := decode[model.Run](t, rr)
    assert.Equal(t, model.RunSucceeded, run.Status)
    assert.Equal(t, "classic4", run.Instance)
    assert.Equal(t, 3, run.Customers)
    require.NotNil(t, run.BestCost)
    assert.LessOrEqual(t, *run.BestCost, 100.0)
    assert.True(t, run.Feasible)
    assert.NotEmpty(t, run.Routes)
    require.NotNil(t, run.Metrics)
    assert.Equal(t, 20, run.Metrics.Iterations)
    assert.NotNil(t, run.SysInfo)
    assert.NotNil(t, run.FinishedAt)
    assert.Equal(t, "anonymous", run.Owner)
}

func TestSolve_AsyncWithSnapshots(t *testing.T) {
    s, h := newTestServer(t, testConfig(t))
    rr := do(t, h, http.MethodPost, "/v1/solve",
        `{"instanceName":"classic4","config":{"algorithm":"alns","maxIterations":20,"snapshotEvery":10,"seed":3}}`, nil)
    require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
    acc := decode[model.SolveAccepted](t, rr)
    assert.Equal(t, model.RunQueued, acc.Status)
    assert.Equal(t, "/v1/runs/"+acc.RunID, rr.Header().Get("Location"))

    run := waitTerminal(t, s, acc.RunID)
    assert.Equal(t, model.RunSucceeded, run.Status)

    rr = do(t, h, http.MethodGet, "/v1/runs/"+acc.RunID+"/snapshots", "", nil)
    require.Equal(t, http.StatusOK, rr.Code)
    body := decode[struct{ Items []map[string]any `json:"items"` }](t, rr)
    require.Len(t, body.Items, 2)
    assert.EqualValues(t, 10, body.Items[0]["iteration"])
    assert.EqualValues(t, 20, body.Items[1]["iteration"])

    rr = do(t, h, http.MethodGet, "/v1/runs/"+acc.RunID, "", nil)
    require.Equal(t, http.StatusOK, rr.Code)
    assert.Equal(t, model.RunSucceeded, decode[model.Run](t, rr).Status)
}

func TestSolve_MultiStart(t *testing.T) {
    _, h := newTestServer(t, testConfig(t))
    rr := do(t, h, http.MethodPost, "/v1/solve?wait=true",
        `{"instanceName":"gvrp5","starts":3,"config":{"algorithm":"sa","maxIterations":50,"seed":7}}`, nil)
    require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
    run := decode[model.Run](t, rr)
    assert.Equal(t, 3, run.Starts)
    require.Len(t, run.StartSummaries, 3)
    require.NotNil(t, run.MeanBestCost)
    require.NotNil(t, run.StdDevBestCost)
    lowest := run.StartSummaries[0].BestCost
    for _, st := range run.StartSummaries { lowest = min(lowest, st.BestCost) }
    assert.Equal(t, lowest, *run.BestCost)
    assert.Equal(t, 2, run.Config.Vehicles, "vehicles come from the instance")
    assert.Equal(t, "even-split", run.Config.Construction)
}

func TestSolve_MultiStartFailureKeepsBest(t *testing.T) {
    _, h := newTestServer(t, testConfig(t))
    // no 1-3 arc: inserting 1 next to 3 fails mid-search
    body := `{"instance":{"name":"broken","capacity":3,"symmetric":true,` +
        `"nodes":[{"id":0},{"id":1,"demand":1},{"id":2,"demand":1},{"id":3,"demand":2}],` +
        `"arcs":[{"from":0,"to":1,"cost":10},{"from":0,"to":2,"cost":15},{"from":0,"to":3,"cost":20},{"from":1,"to":2,"cost":35},{"from":2,"to":3,"cost":30}]},` +
        `"starts":3,"config":{"algorithm":"lns","maxIterations":200,"removalCount":1,"seed":4}}`
    rr := do(t, h, http.MethodPost, "/v1/solve?wait=true", body, nil)
    require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
    run := decode[model.Run](t, rr)
    assert.Equal(t, model.RunFailed, run.Status)
    assert.Contains(t, run.Error, "undefined edge")
    require.NotNil(t, run.BestCost)
    assert.Equal(t, 100.0, *run.BestCost)
    assert.NotEmpty(t, run.Routes)
    assert.Len(t, run.StartSummaries, 1)
}

func TestSolve_Rejects(t *testing.T) {
    _, h := newTestServer(t, testConfig(t))
    infeasible := `{"instance":{"name":"x","capacity":1,"symmetric":true,"nodes":[{"id":0,"demand":0},{"id":1,"demand":2}],"arcs":[{"from":0,"to":1,"cost":1}]}}`
    cases := []struct {
        name, body string
        status     int
    }{
        {"empty", `{}`, 400},
        {"malformed", `{"instanceName":`, 400},
        {"unknown field", `{"instanceName":"classic4","bogus":1}`, 400},
        {"both sources", `{"instanceName":"classic4","instance":{"name":"x","capacity":1,"nodes":[{"id":1,"demand":1,"x":0,"y":0}]}}`, 400},
        {"unknown builtin", `{"instanceName":"nope"}`, 400},
        {"too many starts", `{"instanceName":"classic4","starts":99}`, 400},
        {"negative starts", `{"instanceName":"classic4","starts":-1}`, 400},
        {"bad callback", `{"instanceName":"classic4","callbackUrl":"ftp://x"}`, 400},
        {"secret without url", `{"instanceName":"classic4","callbackSecret":"s"}`, 400},
        {"bad algorithm", `{"instanceName":"classic4","config":{"algorithm":"tabu"}}`, 400},
        {"unknown operator", `{"instanceName":"classic4","config":{"destroyOps":["worst"]}}`, 400},
        {"unknown profile", `{"instanceName":"classic4","profile":"missing"}`, 400},
        {"invalid instance", `{"instance":{"name":"x","capacity":0,"nodes":[{"id":1,"demand":1,"x":0,"y":0}]}}`, 400},
        {"infeasible", infeasible, 422},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            rr := do(t, h, http.MethodPost, "/v1/solve", tc.body, nil)
            assert.Equal(t, tc.status, rr.Code, rr.Body.String())
            assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
        })
    }
    assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/v1/solve", "", nil).Code)
}

func TestSolve_RateLimited(t *testing.T) {
    cfg := testConfig(t)
    cfg.RateRPS = 0.001
    cfg.RateBurst = 1
    _, h := newTestServer(t, cfg)
    body := `{"instanceName":"classic4","config":{"maxIterations":1}}`
    assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/solve?wait=true", body, nil).Code)
    rr := do(t, h, http.MethodPost, "/v1/solve?wait=true", body, nil)
    assert.Equal(t, http.StatusTooManyRequests, rr.Code)
    assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestRuns_OwnershipAndPaging(t *testing.T) {
    _, h := newTestServer(t, testConfig(t))
    body := `{"instanceName":"classic4","config":{"maxIterations":2}}`
    alice := hdr{"X-User": "alice"}
    var ids []string
    for i := 0; i < 3; i++ {
        rr := do(t, h, http.MethodPost, "/v1/solve?wait=true", body, alice)
        require.Equal(t, http.StatusOK, rr.Code)
        ids = append(ids, decode[model.Run](t, rr).ID)
    }
    require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/solve?wait=true", body, hdr{"X-User": "bob"}).Code)

    rr := do(t, h, http.MethodGet, "/v1/runs?limit=2", "", alice)
    require.Equal(t, http.StatusOK, rr.Code)
    page := decode[model.RunList](t, rr)
    require.Len(t, page.Items, 2)
    assert.Equal(t, ids[2], page.Items[0].ID, "newest first")
    require.NotEmpty(t, page.NextCursor)

    rr = do(t, h, http.MethodGet, "/v1/runs?limit=2&cursor="+page.NextCursor, "", alice)
    page = decode[model.RunList](t, rr)
    require.Len(t, page.Items, 1)
    assert.Equal(t, ids[0], page.Items[0].ID)
    assert.Empty(t, page.NextCursor)

    page = decode[model.RunList](t, do(t, h, http.MethodGet, "/v1/runs?limit=3", "", alice))
    require.Len(t, page.Items, 3)
    assert.Empty(t, page.NextCursor, "an exactly full last page has no next cursor")
    assert.Equal(t, 400, do(t, h, http.MethodGet, "/v1/runs?cursor=unknown", "", alice).Code)

    assert.Len(t, decode[model.RunList](t, do(t, h, http.MethodGet, "/v1/runs", "", admin)).Items, 4)
    assert.Len(t, decode[model.RunList](t, do(t, h, http.MethodGet, "/v1/runs?owner=bob", "", admin)).Items, 1)
    assert.Equal(t, 400, do(t, h, http.MethodGet, "/v1/runs?limit=x", "", alice).Code)

    assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/runs/"+ids[0], "", hdr{"X-User": "bob"}).Code)
    assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/runs/"+ids[0], "", admin).Code)
    assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/runs/does-not-exist", "", admin).Code)
    assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/runs/"+ids[0]+"/nope", "", admin).Code)
}

func TestRuns_Cancel(t *testing.T) {
    s, h := newTestServer(t, testConfig(t))
    rr := do(t, h, http.MethodPost, "/v1/solve",
        `{"instanceName":"gvrp5","config":{"algorithm":"sa","maxIterations":100000000,"logEvery":1000000}}`, admin)
    require.Equal(t, http.StatusAccepted, rr.Code)
    id := decode[model.SolveAccepted](t, rr).RunID

    assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodDelete, "/v1/runs/"+id, "", hdr{"X-User": "root"}).Code)
    rr = do(t, h, http.MethodDelete, "/v1/runs/"+id, "", admin)
    require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

    run := waitTerminal(t, s, id)
    assert.Equal(t, model.RunCancelled, run.Status)
    assert.True(t, run.Stopped)
    require.NotNil(t, run.BestCost, "the best solution so far is kept")

    assert.Equal(t, http.StatusConflict, do(t, h, http.MethodDelete, "/v1/runs/"+id, "", admin).Code)
}

func TestRuns_WebhookEnqueued(t *testing.T) {
    _, h := newTestServer(t, testConfig(t))
    rr := do(t, h, http.MethodPost, "/v1/solve?wait=true",
        `{"instanceName":"classic4","config":{"maxIterations":5},"callbackUrl":"http://hooks.example/run","callbackSecret":"topsecret-value"}`, admin)
    require.Equal(t, http.StatusOK, rr.Code)
    run := decode[model.Run](t, rr)
    assert.Empty(t, run.CallbackSecret)
    assert.NotContains(t, rr.Body.String(), "topsecret-value")

    assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/v1/runs/"+run.ID+"/webhooks", "", hdr{"X-User": "root"}).Code)
    rr = do(t, h, http.MethodGet, "/v1/runs/"+run.ID+"/webhooks", "", admin)
    require.Equal(t, http.StatusOK, rr.Code)
    body := decode[struct{ Items []store.WebhookDelivery `json:"items"` }](t, rr)
    require.Len(t, body.Items, 1)
    assert.Equal(t, model.EventRunFinished, body.Items[0].EventType)
    assert.Equal(t, "http://hooks.example/run", body.Items[0].URL)
    assert.Equal(t, store.DeliveryPending, body.Items[0].Status)
}

func TestProfiles(t *testing.T) {
    _, h := newTestServer(t, testConfig(t))
    profile := `{"config":{"algorithm":"vns","maxIterations":7,"seed":9}}`
    assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPut, "/v1/admin/solver/profiles/quick", profile, nil).Code)
    rr := do(t, h, http.MethodPut, "/v1/admin/solver/profiles/quick", profile, admin)
    require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
    assert.Equal(t, 400, do(t, h, http.MethodPut, "/v1/admin/solver/profiles/bad", `{"config":{"algorithm":"tabu"}}`, admin).Code)
    assert.Equal(t, 400, do(t, h, http.MethodPut, "/v1/admin/solver/profiles/bad", `{}`, admin).Code)

    rr = do(t, h, http.MethodGet, "/v1/admin/solver/profiles", "", admin)
    require.Equal(t, http.StatusOK, rr.Code)
    list := decode[struct{ Items []model.Profile `json:"items"` }](t, rr)
    require.Len(t, list.Items, 1)
    assert.Equal(t, "quick", list.Items[0].Name)
    assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/admin/solver/profiles/missing", "", admin).Code)

    rr = do(t, h, http.MethodGet, "/v1/solver/config?profile=quick", "", nil)
    require.Equal(t, http.StatusOK, rr.Code)
    eff := decode[struct{ Config map[string]any `json:"config"` }](t, rr)
    assert.Equal(t, "vns", eff.Config["algorithm"])
    assert.EqualValues(t, 7, eff.Config["maxIterations"])
    assert.NotEmpty(t, eff.Config["neighborhoods"])
    assert.Equal(t, 400, do(t, h, http.MethodGet, "/v1/solver/config?profile=missing", "", nil).Code)
    assert.Equal(t, 400, do(t, h, http.MethodGet, "/v1/solver/config?algorithm=tabu", "", nil).Code)

    // request config overrides the profile field by field
    rr = do(t, h, http.MethodPost, "/v1/solve?wait=true", `{"instanceName":"classic4","profile":"quick","config":{"maxIterations":3}}`, nil)
    require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
    run := decode[model.Run](t, rr)
    assert.Equal(t, "vns", string(run.Config.Algorithm))
    assert.Equal(t, 3, run.Config.MaxIterations)
    assert.Equal(t, int64(9), run.Config.Seed)

    // an explicit zero still overrides the profile
    rr = do(t, h, http.MethodPost, "/v1/solve?wait=true", `{"instanceName":"classic4","profile":"quick","config":{"seed":0}}`, nil)
    require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
    run = decode[model.Run](t, rr)
    assert.Zero(t, run.Config.Seed)
    assert.Equal(t, 7, run.Config.MaxIterations)
}

func TestHMACAuth(t *testing.T) {
    cfg := testConfig(t)
    cfg.AuthMode = "hmac"
    cfg.AuthHMACSecret = "k"
    _, h := newTestServer(t, cfg)
    profile := `{"config":{"algorithm":"lns"}}`

    // headers are ignored outside dev mode
    assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPut, "/v1/admin/solver/profiles/p", profile, admin).Code)
    tok, err := auth.SignHS256([]byte("k"), map[string]any{"sub": "ops", "role": "admin", "exp": time.Now().Add(time.Hour).Unix()})
    require.NoError(t, err)
    assert.Equal(t, http.StatusOK, do(t, h, http.MethodPut, "/v1/admin/solver/profiles/p", profile, hdr{"Authorization": "Bearer " + tok}).Code)
    bad, err := auth.SignHS256([]byte("other"), map[string]any{"sub": "ops", "role": "admin"})
    require.NoError(t, err)
    assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPut, "/v1/admin/solver/profiles/p", profile, hdr{"Authorization": "Bearer " + bad}).Code)
}

func TestInstancesDebugMetricsDocs(t *testing.T) {
    _, h := newTestServer(t, testConfig(t))
    rr := do(t, h, http.MethodGet, "/v1/instances", "", nil)
    require.Equal(t, http.StatusOK, rr.Code)
    assert.Contains(t, rr.Body.String(), "classic4")
    assert.Contains(t, rr.Body.String(), "gvrp5")

    rr = do(t, h, http.MethodGet, "/debug/info", "", nil)
    require.Equal(t, http.StatusOK, rr.Code)
    info := decode[map[string]any](t, rr)
    assert.Contains(t, info, "build")
    assert.Equal(t, "memory", info["config"].(map[string]any)["DATABASE"])

    require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/solve?wait=true", `{"instanceName":"classic4","config":{"maxIterations":1}}`, nil).Code)
    rr = do(t, h, http.MethodGet, "/metrics", "", nil)
    require.Equal(t, http.StatusOK, rr.Code)
    assert.Contains(t, rr.Body.String(), "search_runs_total")
    assert.Contains(t, rr.Body.String(), `path="/v1/solve"`)

    rr = do(t, h, http.MethodGet, "/openapi.json", "", nil)
    require.Equal(t, http.StatusOK, rr.Code)
    assert.Contains(t, decode[map[string]any](t, rr), "paths")
    assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/openapi.yaml", "", nil).Code)
}

func TestRunEvents_SSE(t *testing.T) {
    _, h := newTestServer(t, testConfig(t))
    ts := httptest.NewServer(h)
    defer ts.Close()

    rr := do(t, h, http.MethodPost, "/v1/solve", `{"instanceName":"classic4","config":{"algorithm":"alns","maxIterations":200,"logEvery":10}}`, nil)
    require.Equal(t, http.StatusAccepted, rr.Code)
    id := decode[model.SolveAccepted](t, rr).RunID

    resp, err := http.Get(ts.URL + "/v1/runs/" + id + "/events/stream")
    require.NoError(t, err)
    defer func() { _ = resp.Body.Close() }()
    assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

    var events []string
    var last model.RunEvent
    sc := bufio.NewScanner(resp.Body)
    for sc.Scan() {
        line := sc.Text()
        if strings.HasPrefix(line, "event: ") { events = append(events, strings.TrimPrefix(line, "event: ")) }
        if strings.HasPrefix(line, "data: ") && len(events) > 0 && events[len(events)-1] == model.EventRunFinished {
            require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last))
        }
    }
    require.NotEmpty(t, events)
    assert.Equal(t, "heartbeat", events[0])
    assert.Equal(t, model.EventRunFinished, events[len(events)-1], "the stream ends after run.finished")
    assert.Equal(t, model.RunSucceeded, last.Status)
}

func TestRunEvents_WebSocket(t *testing.T) {
    _, h := newTestServer(t, testConfig(t))
    ts := httptest.NewServer(h)
    defer ts.Close()

    rr := do(t, h, http.MethodPost, "/v1/solve", `{"instanceName":"classic4","config":{"algorithm":"vns","maxIterations":50}}`, nil)
    require.Equal(t, http.StatusAccepted, rr.Code)
    id := decode[model.SolveAccepted](t, rr).RunID

    url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/runs/" + id + "/ws"
    c, _, err := websocket.DefaultDialer.Dial(url, nil)
    require.NoError(t, err)
    defer func() { _ = c.Close() }()
    _ = c.SetReadDeadline(time.Now().Add(10 * time.Second))

    require.NoError(t, c.WriteJSON(wsMessage{Type: "subscribe", ID: "early"}))
    var msg wsMessage
    require.NoError(t, c.ReadJSON(&msg))
    assert.Equal(t, "error", msg.Type, "subscribe before connection_init")

    require.NoError(t, c.WriteJSON(wsMessage{Type: "connection_init"}))
    require.NoError(t, c.ReadJSON(&msg))
    require.Equal(t, "connection_ack", msg.Type)

    require.NoError(t, c.WriteJSON(wsMessage{Type: "subscribe", ID: "1"}))
    var final model.RunEvent
    for {
        require.NoError(t, c.ReadJSON(&msg))
        if msg.Type == "complete" {
            assert.Equal(t, "1", msg.ID)
            break
        }
        if msg.Type != "next" { continue }
        var payload struct {
            Data struct{ RunEvents model.RunEvent `json:"runEvents"` } `json:"data"`
        }
        require.NoError(t, json.Unmarshal(msg.Payload, &payload))
        final = payload.Data.RunEvents
    }
    assert.Equal(t, model.EventRunFinished, final.Type)
    assert.Equal(t, id, final.RunID)
}
