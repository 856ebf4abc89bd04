package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/loan"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// conditionalUpdate applies updates to the row only if it still has expectedVersion
// and bumps the version. A row that exists with another version is a concurrent
// modification.
func conditionalUpdate(
	ctx context.Context,
	db *gorm.DB,
	model any,
	id uuid.UUID,
	expectedVersion int64,
	updates map[string]any,
	notFound error,
) error {
	updates["version"] = expectedVersion + 1
	updates["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return MapGormErrorToDomain(err)
	}
	if count == 0 {
		return notFound
	}
	return domain.ErrConcurrentModification
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a transaction repository on db.
func NewTransactionRepository(db *gorm.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var m Transaction
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, domain.ErrTransactionNotFound)
	}
	return mapModelToTransaction(&m), nil
}

// GetForUpdate locks the row until the surrounding transaction ends.
func (r *transactionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var m Transaction
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, domain.ErrTransactionNotFound)
	}
	return mapModelToTransaction(&m), nil
}

func (r *transactionRepository) List(ctx context.Context, f repository.TransactionFilter) ([]*ledger.Transaction, error) {
	q := r.db.WithContext(ctx).Model(&Transaction{})
	if f.MemberID != nil {
		q = q.Where("member_id = ?", *f.MemberID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if f.Category != "" {
		q = q.Where("category = ?", string(f.Category))
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.PenaltyApplied != nil {
		q = q.Where("penalty_applied = ?", *f.PenaltyApplied)
	}
	if f.RequestID != nil {
		q = q.Where("request_id = ?", *f.RequestID)
	}
	if f.Reference != "" {
		q = q.Where("reference = ?", f.Reference)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []Transaction
	if err := q.Order("date ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]*ledger.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, mapModelToTransaction(&rows[i]))
	}
	return out, nil
}

func (r *transactionRepository) Create(ctx context.Context, t *ledger.Transaction) error {
	m := mapTransactionToModel(t)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(m).Error
	})
}

// Update persists the penalty fields, the only ones that change after creation.
func (r *transactionRepository) Update(ctx context.Context, t *ledger.Transaction, expectedVersion int64) error {
	m := mapTransactionToModel(t)
	err := conditionalUpdate(ctx, r.db, &Transaction{}, t.ID, expectedVersion, map[string]any{
		"amount":                         m.Amount,
		"penalty_applied":                m.PenaltyApplied,
		"penalty_date":                   m.PenaltyDate,
		"original_amount_before_penalty": m.OriginalAmountBeforePenalty,
		"status":                         m.Status,
	}, domain.ErrTransactionNotFound)
	if err != nil {
		return err
	}
	t.Version = expectedVersion + 1
	return nil
}

type loanRequestRepository struct {
	db *gorm.DB
}

// NewLoanRequestRepository creates a loan request repository on db.
func NewLoanRequestRepository(db *gorm.DB) repository.LoanRequestRepository {
	return &loanRequestRepository{db: db}
}

func (r *loanRequestRepository) Get(ctx context.Context, id uuid.UUID) (*loan.Request, error) {
	var m LoanRequest
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, domain.ErrRequestNotFound)
	}
	return mapModelToLoanRequest(&m), nil
}

func (r *loanRequestRepository) List(ctx context.Context, f repository.LoanRequestFilter) ([]*loan.Request, error) {
	q := r.db.WithContext(ctx).Model(&LoanRequest{})
	if f.MemberID != nil {
		q = q.Where("member_id = ?", *f.MemberID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.PendingFor != nil {
		slot, err := json.Marshal([]map[string]string{{
			"admin_id": f.PendingFor.String(),
			"decision": string(loan.DecisionPending),
		}})
		if err != nil {
			return nil, err
		}
		q = q.Where("status = ? AND approvals @> ?::jsonb", string(loan.StatusPending), string(slot))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []LoanRequest
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]*loan.Request, 0, len(rows))
	for i := range rows {
		out = append(out, mapModelToLoanRequest(&rows[i]))
	}
	return out, nil
}

func (r *loanRequestRepository) Create(ctx context.Context, req *loan.Request) error {
	m := mapLoanRequestToModel(req)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(m).Error
	})
}

func (r *loanRequestRepository) Update(ctx context.Context, req *loan.Request, expectedVersion int64) error {
	m := mapLoanRequestToModel(req)
	err := conditionalUpdate(ctx, r.db, &LoanRequest{}, req.ID, expectedVersion, map[string]any{
		"status":           m.Status,
		"approvals":        m.Approvals,
		"rejection_reason": m.RejectionReason,
		"rejected_by":      m.RejectedBy,
		"decided_at":       m.DecidedAt,
		"transaction_id":   m.TransactionID,
	}, domain.ErrRequestNotFound)
	if err != nil {
		return err
	}
	req.Version = expectedVersion + 1
	return nil
}

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a member repository on db.
func NewMemberRepository(db *gorm.DB) repository.MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Get(ctx context.Context, id uuid.UUID) (*member.Member, error) {
	var m Member
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, domain.ErrMemberNotFound)
	}
	return mapModelToMember(&m), nil
}

func (r *memberRepository) GetByCode(ctx context.Context, code string) (*member.Member, error) {
	var m Member
	if err := r.db.WithContext(ctx).First(&m, "code_key = ?", member.NormalizeCode(code)).Error; err != nil {
		return nil, mapNotFound(err, domain.ErrMemberNotFound)
	}
	return mapModelToMember(&m), nil
}

func (r *memberRepository) List(ctx context.Context, f repository.MemberFilter) ([]*member.Member, error) {
	q := r.db.WithContext(ctx).Model(&Member{})
	if f.Role != "" {
		q = q.Where("role = ?", string(f.Role))
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	var rows []Member
	if err := q.Order("code ASC").Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]*member.Member, 0, len(rows))
	for i := range rows {
		out = append(out, mapModelToMember(&rows[i]))
	}
	return out, nil
}

func (r *memberRepository) Create(ctx context.Context, m *member.Member) error {
	row := mapMemberToModel(m)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(row).Error
	})
}

type groupCodeRepository struct {
	db *gorm.DB
}

// NewGroupCodeRepository creates a group code repository on db.
func NewGroupCodeRepository(db *gorm.DB) repository.GroupCodeRepository {
	return &groupCodeRepository{db: db}
}

func (r *groupCodeRepository) GetByCode(ctx context.Context, code string) (*member.GroupCode, error) {
	var m GroupCode
	if err := r.db.WithContext(ctx).First(&m, "code_key = ?", member.NormalizeCode(code)).Error; err != nil {
		return nil, mapNotFound(err, domain.ErrGroupCodeNotFound)
	}
	return mapModelToGroupCode(&m), nil
}

func (r *groupCodeRepository) Create(ctx context.Context, g *member.GroupCode) error {
	m := mapGroupCodeToModel(g)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(m).Error
	})
}

func (r *groupCodeRepository) Update(ctx context.Context, g *member.GroupCode, expectedVersion int64) error {
	err := conditionalUpdate(ctx, r.db, &GroupCode{}, g.ID, expectedVersion, map[string]any{
		"is_active":       g.IsActive,
		"expires_at":      g.ExpiresAt,
		"max_redemptions": g.MaxRedemptions,
		"redeemed_count":  g.RedeemedCount,
	}, domain.ErrGroupCodeNotFound)
	if err != nil {
		return err
	}
	g.Version = expectedVersion + 1
	return nil
}

type penaltyAuditRepository struct {
	db *gorm.DB
}

// NewPenaltyAuditRepository creates a penalty audit repository on db.
func NewPenaltyAuditRepository(db *gorm.DB) repository.PenaltyAuditRepository {
	return &penaltyAuditRepository{db: db}
}

func (r *penaltyAuditRepository) Create(ctx context.Context, a *ledger.PenaltyAudit) error {
	m := mapPenaltyAuditToModel(a)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(m).Error
	})
}

func (r *penaltyAuditRepository) ListByTransaction(ctx context.Context, id uuid.UUID) ([]*ledger.PenaltyAudit, error) {
	var rows []PenaltyAudit
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", id).
		Order("applied_at ASC").
		Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	out := make([]*ledger.PenaltyAudit, 0, len(rows))
	for i := range rows {
		out = append(out, mapModelToPenaltyAudit(&rows[i]))
	}
	return out, nil
}
