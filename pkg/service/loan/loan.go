// Package loan provides the loan governance service: submission of loan requests
// against a frozen admin snapshot, vote casting with optimistic retries, and
// finalization of approved requests into the ledger.
package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/loan"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/kikoba/kikoba/pkg/metrics"
	"github.com/kikoba/kikoba/pkg/notify"
	"github.com/kikoba/kikoba/pkg/repository"
	"github.com/shopspring/decimal"
)

const defaultVoteMaxRetries = 3

// Service drives loan requests from submission to a terminal status.
type Service struct {
	uow        repository.UnitOfWork
	bus        eventbus.Bus
	notifier   notify.Notifier
	logger     *slog.Logger
	maxRetries int
	now        func() time.Time
}

// NewService creates a new Service with the provided dependencies.
func NewService(deps config.Deps) *Service {
	s := &Service{
		uow:        deps.Uow,
		bus:        deps.EventBus,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		maxRetries: defaultVoteMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if deps.Config != nil && deps.Config.Loan != nil && deps.Config.Loan.VoteMaxRetries > 0 {
		s.maxRetries = deps.Config.Loan.VoteMaxRetries
	}
	return s
}

// SubmitCommand is a member's request for a loan.
type SubmitCommand struct {
	MemberID    uuid.UUID
	Amount      decimal.Decimal
	Type        loan.Type
	Description string
}

// Submit persists a new Pending request with the currently active admins as its
// frozen approver set and notifies those admins.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*loan.Request, error) {
	logger := s.logger.With("member_id", cmd.MemberID, "type", cmd.Type, "amount", cmd.Amount.String())
	if err := loan.ValidateSubmission(cmd.Amount, cmd.Type, cmd.Description); err != nil {
		logger.Warn("Submit rejected: invalid input", "error", err)
		return nil, err
	}

	var req *loan.Request
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		applicant, err := members.Get(ctx, cmd.MemberID)
		if err != nil {
			return err
		}
		admins, err := members.List(ctx, repository.MemberFilter{Role: member.RoleAdmin, Status: member.StatusActive})
		if err != nil {
			return err
		}
		approvers := make([]loan.Approver, 0, len(admins))
		for _, a := range admins {
			approvers = append(approvers, loan.Approver{ID: a.ID, Name: a.DisplayName})
		}

		req, err = loan.NewRequest(
			loan.Applicant{ID: applicant.ID, Code: applicant.Code, Name: applicant.DisplayName},
			cmd.Amount,
			cmd.Type,
			cmd.Description,
			approvers,
			s.now(),
		)
		if err != nil {
			return err
		}
		requests, err := uow.LoanRequestRepository()
		if err != nil {
			return err
		}
		return requests.Create(ctx, req)
	})
	if err != nil {
		logger.Error("Submit failed", "error", err)
		return nil, domain.External("submit loan request", err)
	}

	logger.Info("loan request submitted", "request_id", req.ID, "approvers", len(req.Approvals))
	metrics.LoanRequestsSubmitted.WithLabelValues(string(req.Type)).Inc()

	if err := s.notifier.Notify(ctx, notify.Message{
		Kind:       notify.KindLoanSubmitted,
		Recipients: req.PendingVoters(),
		Title:      "New loan request",
		Body:       fmt.Sprintf("%s requested a %s loan of %s: %s", req.MemberName, req.Type, req.Amount.String(), req.Description),
		Data:       map[string]string{"request_id": req.ID.String()},
	}); err != nil {
		logger.Warn("admin notification failed", "request_id", req.ID, "error", err)
	}
	eventbus.Emit(ctx, s.bus, logger, eventbus.LoanRequestChange(req, eventbus.OpCreate))
	return req, nil
}

// VoteCommand is one admin's decision on a request.
type VoteCommand struct {
	RequestID uuid.UUID
	AdminID   uuid.UUID
	Decision  loan.Decision
	Reason    string
}

// CastVote records a vote through a conditional update. On unanimous approval the
// Loan transaction is appended in the same atomic unit. Concurrent modifications are
// retried a bounded number of times before surfacing ErrConcurrentModification.
func (s *Service) CastVote(ctx context.Context, cmd VoteCommand) (*loan.Request, error) {
	logger := s.logger.With("request_id", cmd.RequestID, "admin_id", cmd.AdminID, "decision", cmd.Decision)

	var (
		req    *loan.Request
		loanTx *ledger.Transaction
		err    error
	)
	for attempt := 1; ; attempt++ {
		req, loanTx, err = s.castVoteOnce(ctx, cmd)
		if err == nil || !errors.Is(err, domain.ErrConcurrentModification) || attempt >= s.maxRetries {
			break
		}
		metrics.VoteConflicts.Inc()
		logger.Warn("CastVote conflicted, retrying", "attempt", attempt)
	}
	if err != nil {
		metrics.VotesCast.WithLabelValues(string(cmd.Decision), "error").Inc()
		logger.Warn("CastVote failed", "error", err)
		return nil, domain.External("cast vote", err)
	}

	metrics.VotesCast.WithLabelValues(string(cmd.Decision), string(req.Status)).Inc()
	logger.Info("vote recorded", "status", req.Status)

	changes := []eventbus.Change{eventbus.LoanRequestChange(req, eventbus.OpUpdate)}
	if req.Status.Terminal() {
		metrics.LoanDecisions.WithLabelValues(string(req.Status), string(req.Type)).Inc()
		s.notifyDecision(ctx, logger, req)
	}
	if loanTx != nil {
		logger.Info("loan finalized to ledger", "transaction_id", loanTx.ID, "amount", loanTx.Amount.String())
		changes = append(changes, eventbus.TransactionChange(loanTx, eventbus.OpCreate))
	}
	eventbus.Emit(ctx, s.bus, logger, changes...)
	return req, nil
}

func (s *Service) castVoteOnce(ctx context.Context, cmd VoteCommand) (*loan.Request, *ledger.Transaction, error) {
	var (
		req    *loan.Request
		loanTx *ledger.Transaction
	)
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		requests, err := uow.LoanRequestRepository()
		if err != nil {
			return err
		}
		req, err = requests.Get(ctx, cmd.RequestID)
		if err != nil {
			return err
		}
		expected := req.Version
		status, err := req.CastVote(cmd.AdminID, cmd.Decision, cmd.Reason, s.now())
		if err != nil {
			return err
		}
		if status == loan.StatusApproved {
			terms, err := req.LoanTerms(cmd.AdminID.String())
			if err != nil {
				return err
			}
			loanTx, err = ledger.NewLoan(terms)
			if err != nil {
				return err
			}
			txs, err := uow.TransactionRepository()
			if err != nil {
				return err
			}
			if err := txs.Create(ctx, loanTx); err != nil {
				return err
			}
			id := loanTx.ID
			req.TransactionID = &id
		}
		return requests.Update(ctx, req, expected)
	})
	if err != nil {
		return nil, nil, err
	}
	return req, loanTx, nil
}

func (s *Service) notifyDecision(ctx context.Context, logger *slog.Logger, req *loan.Request) {
	msg := notify.Message{
		Recipients: []uuid.UUID{req.MemberID},
		Data:       map[string]string{"request_id": req.ID.String(), "status": string(req.Status)},
	}
	switch req.Status {
	case loan.StatusApproved:
		msg.Kind = notify.KindLoanApproved
		msg.Title = "Loan approved"
		msg.Body = fmt.Sprintf("Your %s loan of %s has been approved.", req.Type, req.Amount.String())
	case loan.StatusRejected:
		msg.Kind = notify.KindLoanRejected
		msg.Title = "Loan rejected"
		msg.Body = fmt.Sprintf("Your %s loan of %s was rejected: %s", req.Type, req.Amount.String(), req.RejectionReason)
	default:
		return
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		logger.Warn("decision notification failed", "status", req.Status, "error", err)
	}
}

// Get returns a loan request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*loan.Request, error) {
	requests, err := s.uow.LoanRequestRepository()
	if err != nil {
		return nil, err
	}
	req, err := requests.Get(ctx, id)
	if err != nil {
		return nil, domain.External("get loan request", err)
	}
	return req, nil
}

// ListQuery selects loan requests. PendingFor lists the requests still waiting
// for that admin's vote.
type ListQuery struct {
	MemberID   *uuid.UUID
	Status     loan.Status
	PendingFor *uuid.UUID
	Limit      int
}

// List returns loan requests newest first.
func (s *Service) List(ctx context.Context, q ListQuery) ([]*loan.Request, error) {
	requests, err := s.uow.LoanRequestRepository()
	if err != nil {
		return nil, err
	}
	out, err := requests.List(ctx, repository.LoanRequestFilter{
		MemberID:   q.MemberID,
		Status:     q.Status,
		PendingFor: q.PendingFor,
		Limit:      q.Limit,
	})
	if err != nil {
		return nil, domain.External("list loan requests", err)
	}
	return out, nil
}
