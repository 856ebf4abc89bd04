// Package eventbus carries committed document changes to subscribers.
package eventbus

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Collections that publish changes.
const (
	CollectionTransactions  = "transactions"
	CollectionLoanRequests  = "loan_requests"
	CollectionMembers       = "members"
	CollectionPenaltyAudits = "penalty_audits"
)

// Op is the kind of write that produced a change.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
)

// Change describes one committed write. Attrs holds the indexed fields subscribers
// may filter on (member_id, status, ...). Doc is the read model of the document.
type Change struct {
	Collection string            `json:"collection"`
	ID         uuid.UUID         `json:"id"`
	Op         Op                `json:"op"`
	Attrs      map[string]string `json:"attrs,omitempty"`
	Doc        any               `json:"doc,omitempty"`
	At         time.Time         `json:"at"`
}

// Filter matches a change when every key equals the change attribute of the same name.
// An empty filter matches everything.
type Filter map[string]string

// Match reports whether c satisfies f.
func (f Filter) Match(c Change) bool {
	for k, v := range f {
		if c.Attrs[k] != v {
			return false
		}
	}
	return true
}

// HandlerFunc receives matching changes.
type HandlerFunc func(ctx context.Context, c Change) error

// Bus is the change-subscription port.
type Bus interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe delivers changes of collection matching filter until the returned
	// cancel function is called or ctx is done.
	Subscribe(ctx context.Context, collection string, filter Filter, handler HandlerFunc) (cancel func(), err error)
}

// Emit publishes changes after a commit. Failures are logged and never returned:
// the write they describe has already happened.
func Emit(ctx context.Context, bus Bus, logger *slog.Logger, changes ...Change) {
	if bus == nil {
		return
	}
	for _, c := range changes {
		if c.At.IsZero() {
			c.At = time.Now().UTC()
		}
		if err := bus.Publish(ctx, c); err != nil {
			logger.Warn("failed to publish change", "collection", c.Collection, "id", c.ID, "error", err)
		}
	}
}
