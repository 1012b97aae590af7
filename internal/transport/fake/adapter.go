// Package fake provides an in-memory transport.Adapter for tests.
package fake

import (
	"context"
	"sync"

	kit "rankbot/internal/transport"
)

// Sent is one outbound delivery.
type Sent struct {
	To   kit.ChatTarget
	Kind string // "text", "edit", "image", "document"
	Text string
	HTML bool
	File kit.File
}

// Adapter records every send. It never fails unless Err is set.
type Adapter struct {
	mu   sync.Mutex
	sent []Sent
	next int
	Err  error
}

func (a *Adapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (a *Adapter) Stop(context.Context) error                     { return nil }

func (a *Adapter) record(s Sent) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return kit.MessageRef{}, a.Err
	}
	a.next++
	a.sent = append(a.sent, s)
	return kit.MessageRef{ChatID: s.To.ChatID, ThreadID: s.To.ThreadID, MessageID: a.next}, nil
}

func (a *Adapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return a.record(Sent{To: to, Kind: "text", Text: text, HTML: opt != nil && opt.ParseMode == "HTML"})
}

func (a *Adapter) EditText(_ context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	_, err := a.record(Sent{To: kit.ChatTarget{ChatID: ref.ChatID, ThreadID: ref.ThreadID}, Kind: "edit", Text: text, HTML: opt != nil && opt.ParseMode == "HTML"})
	return err
}

func (a *Adapter) SendImage(_ context.Context, to kit.ChatTarget, f kit.File) (kit.MessageRef, error) {
	return a.record(Sent{To: to, Kind: "image", File: f, Text: f.Caption})
}

func (a *Adapter) SendDocument(_ context.Context, to kit.ChatTarget, f kit.File) (kit.MessageRef, error) {
	return a.record(Sent{To: to, Kind: "document", File: f, Text: f.Caption})
}

// Sent returns a copy of everything delivered so far.
func (a *Adapter) Sent() []Sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Sent(nil), a.sent...)
}

// Texts returns the text of text and edit deliveries.
func (a *Adapter) Texts() []string {
	var out []string
	for _, s := range a.Sent() {
		if s.Kind == "text" || s.Kind == "edit" {
			out = append(out, s.Text)
		}
	}
	return out
}

// Reset forgets recorded deliveries.
func (a *Adapter) Reset() {
	a.mu.Lock()
	a.sent = nil
	a.mu.Unlock()
}
