package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/kikoba/kikoba/pkg/metrics"
	"github.com/kikoba/kikoba/pkg/repository"
	"github.com/shopspring/decimal"
)

const defaultCommitConcurrency = 4

// Accepted date layouts, tried in order.
var dateLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006", "2/1/2006"}

// Service validates and commits bulk imports.
type Service struct {
	uow         repository.UnitOfWork
	bus         eventbus.Bus
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewService creates a new Service with the provided dependencies.
func NewService(deps config.Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		uow:         deps.Uow,
		bus:         deps.EventBus,
		logger:      logger.With("service", "bulk"),
		concurrency: defaultCommitConcurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if deps.Config != nil && deps.Config.Bulk != nil && deps.Config.Bulk.CommitConcurrency > 0 {
		s.concurrency = deps.Config.Bulk.CommitConcurrency
	}
	return s
}

// Validate checks every row against the member directory and balances derived from
// the full ledger, both read once per batch. Batch-level problems are returned as
// errors; row-level problems land in the report. ErrNoValidRows is returned together
// with the report.
func (s *Service) Validate(ctx context.Context, batch Batch) (*Report, error) {
	logger := s.logger.With("rows", len(batch.Rows))
	if len(batch.Rows) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if missing := missingColumns(batch.Columns); len(missing) > 0 {
		logger.Warn("batch rejected", "missing_columns", missing)
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumns, strings.Join(missing, ", "))
	}

	directory, err := s.directory(ctx)
	if err != nil {
		return nil, err
	}
	txRepo, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	history, err := txRepo.List(ctx, repository.TransactionFilter{})
	if err != nil {
		return nil, domain.External("list transactions", err)
	}
	balances := ledger.Derive(history)

	report := &Report{Total: len(batch.Rows)}
	accepted := make(map[string]int)
	for _, row := range batch.Rows {
		valid, errs := validateRow(normalizeFields(row.Fields), directory, balances)
		if len(errs) > 0 {
			report.Invalid = append(report.Invalid, RowError{
				Line:       row.Line,
				MemberCode: strings.TrimSpace(fieldOf(row.Fields, ColMemberID)),
				Errors:     errs,
			})
			continue
		}
		valid.Line = row.Line
		if first, ok := accepted[valid.key()]; ok {
			report.Duplicates = append(report.Duplicates, Duplicate{
				Line:        row.Line,
				DuplicateOf: first,
				MemberCode:  valid.MemberCode,
				Warning:     fmt.Sprintf("same member, date and amounts as line %d", first),
			})
			continue
		}
		accepted[valid.key()] = row.Line
		report.Valid = append(report.Valid, valid)
	}

	metrics.BulkRows.WithLabelValues("validate", "valid").Add(float64(len(report.Valid)))
	metrics.BulkRows.WithLabelValues("validate", "invalid").Add(float64(len(report.Invalid)))
	metrics.BulkRows.WithLabelValues("validate", "duplicate").Add(float64(len(report.Duplicates)))
	logger.Info("batch validated", "valid", len(report.Valid), "invalid", len(report.Invalid), "duplicates", len(report.Duplicates))

	if len(report.Valid) == 0 {
		return report, domain.ErrNoValidRows
	}
	return report, nil
}

func (s *Service) directory(ctx context.Context) (map[string]*member.Member, error) {
	members, err := s.uow.MemberRepository()
	if err != nil {
		return nil, err
	}
	all, err := members.List(ctx, repository.MemberFilter{})
	if err != nil {
		return nil, domain.External("list members", err)
	}
	out := make(map[string]*member.Member, len(all))
	for _, m := range all {
		out[member.NormalizeCode(m.Code)] = m
	}
	return out, nil
}

func missingColumns(columns []string) []string {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[NormalizeColumn(c)] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func normalizeFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[NormalizeColumn(k)] = strings.TrimSpace(v)
	}
	return out
}

func fieldOf(fields map[string]string, col string) string {
	for k, v := range fields {
		if NormalizeColumn(k) == col {
			return v
		}
	}
	return ""
}

func validateRow(fields map[string]string, directory map[string]*member.Member, balances ledger.Ledger) (ValidRow, []string) {
	var (
		row  ValidRow
		errs []string
	)

	code := fields[ColMemberID]
	var m *member.Member
	switch {
	case code == "":
		errs = append(errs, "member_id is required")
	default:
		m = directory[member.NormalizeCode(code)]
		switch {
		case m == nil:
			errs = append(errs, fmt.Sprintf("unknown member %q", code))
		case m.Status != member.StatusActive:
			errs = append(errs, fmt.Sprintf("member %q is not active", code))
			m = nil
		default:
			row.MemberID = m.ID
			row.MemberCode = m.Code
			row.MemberName = m.DisplayName
		}
	}

	date, err := parseDate(fields[ColDate])
	if err != nil {
		errs = append(errs, err.Error())
	}
	row.Date = date

	amounts := []struct {
		col string
		dst *decimal.Decimal
	}{
		{ColHisa, &row.Hisa},
		{ColJamii, &row.Jamii},
		{ColStandardRepay, &row.StandardRepay},
		{ColDharuraRepay, &row.DharuraRepay},
	}
	parsed := true
	for _, a := range amounts {
		v, err := parseAmount(a.col, fields[a.col])
		if err != nil {
			errs = append(errs, err.Error())
			parsed = false
			continue
		}
		*a.dst = v
	}
	if !parsed {
		return row, errs
	}

	if row.Hisa.IsZero() && row.Jamii.IsZero() && row.StandardRepay.IsZero() && row.DharuraRepay.IsZero() {
		errs = append(errs, "row has no amounts")
	}
	if m != nil {
		if row.StandardRepay.IsPositive() && !balances.For(m.ID, ledger.CategoryStandard).HasOutstanding() {
			errs = append(errs, "standard_repay: no active balance")
		}
		if row.DharuraRepay.IsPositive() && !balances.For(m.ID, ledger.CategoryDharura).HasOutstanding() {
			errs = append(errs, "dharura_repay: no active balance")
		}
	}
	return row, errs
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", v)
}

// parseAmount reads a non-negative amount. Blank is zero and "," thousands
// separators are ignored.
func parseAmount(col, v string) (decimal.Decimal, error) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q is not a number", col, v)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s: must not be negative", col)
	}
	return d, nil
}
