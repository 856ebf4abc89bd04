// Package bulk validates tabular contribution and repayment imports against the
// live ledger and commits the rows that pass.
package bulk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/shopspring/decimal"
)

// Column names, after normalization.
const (
	ColDate          = "date"
	ColMemberID      = "member_id"
	ColHisa          = "hisa"
	ColJamii         = "jamii"
	ColStandardRepay = "standard_repay"
	ColDharuraRepay  = "dharura_repay"
)

// RequiredColumns must all be present in a batch.
var RequiredColumns = []string{ColDate, ColMemberID, ColHisa, ColJamii, ColStandardRepay, ColDharuraRepay}

// NormalizeColumn makes column matching insensitive to case and spacing:
// " Standard Repay " and "standard-repay" both become "standard_repay".
func NormalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), "_")
}

// Row is one data row of an import. Line is its position in the source, used in
// every report entry.
type Row struct {
	Line   int               `json:"line"`
	Fields map[string]string `json:"fields"`
}

// Batch is a parsed tabular import.
type Batch struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Source produces a batch from an external tabular import.
type Source interface {
	Fetch(ctx context.Context) (Batch, error)
}

// FromRecords builds a batch from a header record followed by data records, the
// shape returned by spreadsheet and CSV readers. Blank records are dropped and
// short records are padded with empty fields.
func FromRecords(records [][]string) Batch {
	if len(records) == 0 {
		return Batch{}
	}
	header := records[0]
	b := Batch{Columns: append([]string(nil), header...)}
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		fields := make(map[string]string, len(header))
		for j, col := range header {
			if j < len(rec) {
				fields[col] = rec[j]
			} else {
				fields[col] = ""
			}
		}
		b.Rows = append(b.Rows, Row{Line: i + 2, Fields: fields})
	}
	return b
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ValidRow is a row that passed validation, resolved to a member.
type ValidRow struct {
	Line          int             `json:"line"`
	MemberID      uuid.UUID       `json:"member_id"`
	MemberCode    string          `json:"member_code"`
	MemberName    string          `json:"member_name"`
	Date          time.Time       `json:"date"`
	Hisa          decimal.Decimal `json:"hisa"`
	Jamii         decimal.Decimal `json:"jamii"`
	StandardRepay decimal.Decimal `json:"standard_repay"`
	DharuraRepay  decimal.Decimal `json:"dharura_repay"`
}

// Reference tags every transaction created from the row.
func (r ValidRow) Reference() string {
	return fmt.Sprintf("BULK-%s-%s", r.Date.Format("2006-01-02"), r.MemberCode)
}

func (r ValidRow) key() string {
	return strings.Join([]string{
		r.MemberID.String(),
		r.Date.Format("2006-01-02"),
		r.Hisa.String(), r.Jamii.String(), r.StandardRepay.String(), r.DharuraRepay.String(),
	}, "|")
}

// Entries builds the transactions for the row's non-zero amounts.
func (r ValidRow) Entries(actor string, now time.Time) ([]*ledger.Transaction, error) {
	base := ledger.Entry{
		MemberID:   r.MemberID,
		MemberName: r.MemberName,
		Date:       r.Date,
		CreatedBy:  actor,
		Source:     ledger.SourceBulk,
		Reference:  r.Reference(),
	}
	var out []*ledger.Transaction
	add := func(build func(ledger.Entry, time.Time) (*ledger.Transaction, error), c ledger.Category, amount decimal.Decimal) error {
		if !amount.IsPositive() {
			return nil
		}
		e := base
		e.Category = c
		e.Amount = amount
		t, err := build(e, now)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	}
	if err := add(ledger.NewContribution, ledger.CategoryHisa, r.Hisa); err != nil {
		return nil, err
	}
	if err := add(ledger.NewContribution, ledger.CategoryJamii, r.Jamii); err != nil {
		return nil, err
	}
	if err := add(ledger.NewRepayment, ledger.CategoryStandard, r.StandardRepay); err != nil {
		return nil, err
	}
	if err := add(ledger.NewRepayment, ledger.CategoryDharura, r.DharuraRepay); err != nil {
		return nil, err
	}
	return out, nil
}

// RowError lists everything wrong with one row.
type RowError struct {
	Line       int      `json:"line"`
	MemberCode string   `json:"member_code,omitempty"`
	Errors     []string `json:"errors"`
}

// Duplicate is a valid row that repeats an earlier accepted row or an import
// already in the ledger. Duplicates are never committed.
type Duplicate struct {
	Line        int    `json:"line"`
	DuplicateOf int    `json:"duplicate_of,omitempty"`
	MemberCode  string `json:"member_code"`
	Warning     string `json:"warning"`
}

// Report is the outcome of validating a batch.
type Report struct {
	Total      int         `json:"total"`
	Valid      []ValidRow  `json:"valid"`
	Invalid    []RowError  `json:"invalid"`
	Duplicates []Duplicate `json:"duplicates"`
}

// RowFailure is a valid row whose commit failed.
type RowFailure struct {
	Line       int    `json:"line"`
	MemberCode string `json:"member_code"`
	Error      string `json:"error"`
}

// CommittedRow lists the transactions created for one row.
type CommittedRow struct {
	Line           int         `json:"line"`
	Reference      string      `json:"reference"`
	TransactionIDs []uuid.UUID `json:"transaction_ids"`
}

// CommitResult is the outcome of committing a report.
type CommitResult struct {
	Committed []CommittedRow `json:"committed"`
	Failures  []RowFailure   `json:"failures"`
}
