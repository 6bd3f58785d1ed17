package api

import (
    "sync"

    "vrpsearch/internal/model"
)

// Broker fans run events out to in-process subscribers.
type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan model.RunEvent]struct{} // runId -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan model.RunEvent]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan model.RunEvent {
    ch := make(chan model.RunEvent, 32)
    b.mu.Lock()
    if b.subs[runID] == nil { b.subs[runID] = map[chan model.RunEvent]struct{}{} }
    b.subs[runID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

// Unsubscribe closes ch once; unknown or already removed channels are ignored.
func (b *Broker) Unsubscribe(runID string, ch chan model.RunEvent) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[runID]
    if _, ok := m[ch]; !ok { return }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, runID) }
    close(ch)
}

// Publish never blocks; slow subscribers miss progress events.
func (b *Broker) Publish(runID string, evt model.RunEvent) {
    b.mu.Lock()
    defer b.mu.Unlock()
    for ch := range b.subs[runID] {
        deliver(ch, evt)
    }
}

// deliver sends without blocking. A full subscriber loses events, except
// the terminal one, which replaces the oldest buffered event.
func deliver(ch chan model.RunEvent, evt model.RunEvent) {
    select {
    case ch <- evt:
        return
    default:
    }
    if evt.Type != model.EventRunFinished { return }
    select { case <-ch: default: }
    select { case ch <- evt: default: }
}

func (b *Broker) Close() error { return nil }
