package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/service/bulk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return NewWithService(svc, "sheet-1", "Import!A1:F", nil)
}

func TestSource_FetchBuildsBatch(t *testing.T) {
	var path string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"range": "Import!A1:F4",
			"majorDimension": "ROWS",
			"values": [
				["Date", "Member ID", "Hisa", "Jamii", "Standard Repay", "Dharura Repay"],
				["2025-03-01", "M-001", "10,000", "2000"],
				[],
				["2025-03-01", "M-002", "5000", "", "", "1500"]
			]
		}`))
	})

	batch, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "/v4/spreadsheets/sheet-1/values/"), path)

	require.Len(t, batch.Rows, 2)
	assert.Equal(t, 2, batch.Rows[0].Line)
	assert.Equal(t, "10,000", batch.Rows[0].Fields["Hisa"])
	assert.Equal(t, "", batch.Rows[0].Fields["Dharura Repay"])
	assert.Equal(t, 4, batch.Rows[1].Line)
	assert.Equal(t, "1500", batch.Rows[1].Fields["Dharura Repay"])

	for _, col := range bulk.RequiredColumns {
		found := false
		for _, c := range batch.Columns {
			if bulk.NormalizeColumn(c) == col {
				found = true
			}
		}
		assert.True(t, found, col)
	}
}

func TestSource_FetchPropagatesAPIError(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	})

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read Import!A1:F")
}

func TestSource_WithRangeKeepsOriginal(t *testing.T) {
	src := NewWithService(nil, "sheet-1", "Import!A1:F", nil)
	other := src.WithRange("March!A1:F")
	assert.Equal(t, "Import!A1:F", src.readRange)
	assert.Equal(t, "March!A1:F", other.readRange)
}

func TestNew_RequiresConfiguration(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), &config.Sheets{}, nil)
	assert.EqualError(t, err, "missing SHEETS_SPREADSHEET_ID")

	_, err = New(context.Background(), &config.Sheets{SpreadsheetID: "sheet-1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")

	_, err = New(context.Background(), &config.Sheets{
		SpreadsheetID:   "sheet-1",
		CredentialsFile: t.TempDir() + "/missing.json",
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestToRecords(t *testing.T) {
	got := toRecords([][]any{{" a ", 1.5, true}, {}})
	assert.Equal(t, [][]string{{"a", "1.5", "true"}, {}}, got)
}
