package api

import (
    "encoding/json"
    "fmt"
    "net/http"
    "sync"
    "time"

    "github.com/gorilla/websocket"

    "vrpsearch/internal/model"
)

var heartbeatInterval = 15 * time.Second

// finishedEvent is the terminal event of an already finished run.
func finishedEvent(run model.Run) model.RunEvent {
    evt := model.RunEvent{RunID: run.ID, Type: model.EventRunFinished, Status: run.Status, At: time.Now().UTC()}
    if run.BestCost != nil { evt.BestCost = *run.BestCost }
    if run.Metrics != nil { evt.Iteration = run.Metrics.Iterations }
    if run.FinishedAt != nil { evt.At = *run.FinishedAt }
    return evt
}

// subscribeRun subscribes to a run's events. When the run already finished
// the returned event is its terminal event and the caller should not wait.
func (s *Server) subscribeRun(r *http.Request, run model.Run) (chan model.RunEvent, *model.RunEvent) {
    ch := s.Broker.Subscribe(run.ID)
    // re-read after subscribing so a run finishing in between is not missed
    if cur, err := s.Store.GetRun(r.Context(), run.ID); err == nil {
        run = cur
    }
    if run.Status.Terminal() {
        evt := finishedEvent(run)
        return ch, &evt
    }
    return ch, nil
}

func writeSSE(w http.ResponseWriter, event string, v any) {
    b, _ := json.Marshal(v)
    fmt.Fprintf(w, "event: %s\n", event)
    fmt.Fprintf(w, "data: %s\n\n", b)
}

// streamRunEvents handles GET /v1/runs/{id}/events/stream. The stream ends
// after the run.finished event.
func (s *Server) streamRunEvents(w http.ResponseWriter, r *http.Request, run model.Run) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")

    ch, done := s.subscribeRun(r, run)
    defer s.Broker.Unsubscribe(run.ID, ch)
    heartbeat := func() {
        writeSSE(w, "heartbeat", map[string]string{"runId": run.ID, "ts": time.Now().UTC().Format(time.RFC3339)})
        flusher.Flush()
    }
    heartbeat()
    if done != nil {
        writeSSE(w, done.Type, done)
        flusher.Flush()
        return
    }
    ticker := time.NewTicker(heartbeatInterval)
    defer ticker.Stop()
    for {
        select {
        case <-r.Context().Done():
            return
        case evt, ok := <-ch:
            if !ok { return }
            writeSSE(w, evt.Type, evt)
            flusher.Flush()
            if evt.Type == model.EventRunFinished { return }
        case <-ticker.C:
            heartbeat()
        }
    }
}

// WebSocket stream of run events, graphql-transport-ws like:
// connection_init -> connection_ack, subscribe -> next* -> complete.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
    Type    string          `json:"type"`
    ID      string          `json:"id,omitempty"`
    Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
    mu   sync.Mutex
    conn *websocket.Conn
}

func (c *wsConn) write(msg wsMessage) error {
    c.mu.Lock(); defer c.mu.Unlock()
    _ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
    return c.conn.WriteJSON(msg)
}

func (c *wsConn) next(id string, evt model.RunEvent) error {
    payload, _ := json.Marshal(map[string]any{"data": map[string]any{"runEvents": evt}})
    return c.write(wsMessage{Type: "next", ID: id, Payload: payload})
}

// RunEventsWSHandler handles /v1/runs/{id}/ws.
func (s *Server) RunEventsWSHandler(w http.ResponseWriter, r *http.Request, run model.Run) {
    conn, err := upgrader.Upgrade(w, r, nil)
    if err != nil {
        return
    }
    defer func() { _ = conn.Close() }()
    c := &wsConn{conn: conn}

    closed := make(chan struct{})
    var wg sync.WaitGroup
    subs := map[string]chan model.RunEvent{}
    defer func() {
        close(closed)
        for id, ch := range subs {
            s.Broker.Unsubscribe(run.ID, ch)
            delete(subs, id)
        }
        wg.Wait()
    }()

    conn.SetReadLimit(1 << 20)
    _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
    conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

    acked := false
    for {
        var msg wsMessage
        if err := conn.ReadJSON(&msg); err != nil {
            return
        }
        _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
        switch msg.Type {
        case "connection_init":
            if acked { continue }
            acked = true
            _ = c.write(wsMessage{Type: "connection_ack"})
            wg.Add(1)
            go func() {
                defer wg.Done()
                ticker := time.NewTicker(heartbeatInterval)
                defer ticker.Stop()
                for {
                    select {
                    case <-closed:
                        return
                    case <-ticker.C:
                        if err := c.write(wsMessage{Type: "ping"}); err != nil { return }
                    }
                }
            }()
        case "ping":
            _ = c.write(wsMessage{Type: "pong"})
        case "subscribe":
            if !acked {
                _ = c.write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"connection_init required"}`)})
                continue
            }
            if _, dup := subs[msg.ID]; dup || msg.ID == "" {
                _ = c.write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"subscription id must be unique"}`)})
                continue
            }
            ch, done := s.subscribeRun(r, run)
            if done != nil {
                s.Broker.Unsubscribe(run.ID, ch)
                _ = c.next(msg.ID, *done)
                _ = c.write(wsMessage{Type: "complete", ID: msg.ID})
                continue
            }
            subs[msg.ID] = ch
            wg.Add(1)
            go func(id string, ch chan model.RunEvent) {
                defer wg.Done()
                for evt := range ch {
                    if err := c.next(id, evt); err != nil { return }
                    if evt.Type == model.EventRunFinished { break }
                }
                _ = c.write(wsMessage{Type: "complete", ID: id})
            }(msg.ID, ch)
        case "complete":
            if ch, ok := subs[msg.ID]; ok {
                s.Broker.Unsubscribe(run.ID, ch)
                delete(subs, msg.ID)
            }
        default:
            // ignore
        }
    }
}
