// Package sheets reads bulk import batches from a Google Sheets range.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/service/bulk"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Source fetches one range of a spreadsheet. The first row of the range is the
// header.
type Source struct {
	svc           *gsheet.Service
	spreadsheetID string
	readRange     string
	logger        *slog.Logger
}

var _ bulk.Source = (*Source)(nil)

// New creates a Source from the sheets configuration using service account
// credentials read from CredentialsFile, falling back to
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg *config.Sheets, logger *slog.Logger) (*Source, error) {
	if cfg == nil || strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing SHEETS_SPREADSHEET_ID")
	}
	file := strings.TrimSpace(cfg.CredentialsFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set SHEETS_CREDENTIALS_FILE or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	credentialsJSON, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.Range, logger), nil
}

// NewWithService wraps an existing sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, readRange string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		logger:        logger.With("component", "sheets", "range", readRange),
	}
}

// WithRange returns a copy of s reading another range of the same spreadsheet.
func (s *Source) WithRange(readRange string) *Source {
	c := *s
	c.readRange = readRange
	c.logger = s.logger.With("range", readRange)
	return &c
}

// Fetch implements bulk.Source.
func (s *Source) Fetch(ctx context.Context) (bulk.Batch, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return bulk.Batch{}, fmt.Errorf("read %s: %w", s.readRange, err)
	}
	records := toRecords(resp.Values)
	s.logger.InfoContext(ctx, "import range read", "rows", len(records))
	return bulk.FromRecords(records), nil
}

func toRecords(values [][]any) [][]string {
	out := make([][]string, 0, len(values))
	for _, row := range values {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = strings.TrimSpace(fmt.Sprint(v))
		}
		out = append(out, rec)
	}
	return out
}
