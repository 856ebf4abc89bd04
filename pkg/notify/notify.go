// Package notify is the port for member and admin notifications. Delivery is always
// best-effort: a failed notification never undoes the write that triggered it.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind tags a notification for routing and templates.
type Kind string

const (
	KindLoanSubmitted  Kind = "loan.submitted"
	KindLoanApproved   Kind = "loan.approved"
	KindLoanRejected   Kind = "loan.rejected"
	KindPenaltyApplied Kind = "penalty.applied"
)

// Message is a notification to one or more members.
type Message struct {
	Kind       Kind              `json:"kind"`
	Recipients []uuid.UUID       `json:"recipients"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Nop discards every message.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Message) error { return nil }

// Async sends through the wrapped notifier on a background goroutine, detached from
// the caller's cancellation, and logs failures instead of returning them.
type Async struct {
	next    Notifier
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync wraps next. timeout bounds each delivery; zero means ten seconds.
func NewAsync(next Notifier, logger *slog.Logger, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{next: next, logger: logger.With("component", "notify"), timeout: timeout}
}

// Notify schedules delivery and returns immediately.
func (a *Async) Notify(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return nil
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("panic recovered while notifying", "kind", msg.Kind, "panic", r)
			}
		}()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(sendCtx, msg); err != nil {
			a.logger.Warn("notification failed", "kind", msg.Kind, "recipients", len(msg.Recipients), "error", err)
		}
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish. Used on shutdown and in tests.
func (a *Async) Wait() {
	a.wg.Wait()
}
