// Package testutils builds a fully wired HTTP app over the in-memory store for
// handler tests, plus helpers to seed members and sign caller tokens.
package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	infraeventbus "github.com/kikoba/kikoba/infra/eventbus"
	"github.com/kikoba/kikoba/infra/repository/memory"
	"github.com/kikoba/kikoba/pkg/app"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/notify"
	"github.com/kikoba/kikoba/webapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// JwtSecret signs every token issued by Token.
const JwtSecret = "kikoba-test-secret"

// Env is a wired app backed by the memory store.
type Env struct {
	App    *fiber.App
	Kikoba *app.App
	Deps   *config.Deps
}

// Config returns an application config suitable for handler tests. Rate limiting
// is disabled.
func Config() *config.App {
	return &config.App{
		Env:       "test",
		Auth:      &config.Auth{Jwt: &config.Jwt{Secret: JwtSecret}},
		RateLimit: &config.RateLimit{},
		Loan:      &config.Loan{VoteMaxRetries: 3},
		Penalty: &config.Penalty{
			Amount:     decimal.NewFromInt(60000),
			Threshold:  30 * 24 * time.Hour,
			MaxRetries: 3,
		},
		Bulk: &config.Bulk{CommitConcurrency: 2},
	}
}

// NewEnv wires the app over a fresh memory store.
func NewEnv(t testing.TB) *Env {
	t.Helper()
	return NewEnvWithConfig(t, Config())
}

// NewEnvWithConfig is NewEnv with a caller supplied config.
func NewEnvWithConfig(t testing.TB, cfg *config.App) *Env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := &config.Deps{
		Uow:      memory.NewUoW(memory.New()),
		EventBus: infraeventbus.NewWithMemory(logger),
		Notifier: notify.Nop{},
		Logger:   logger,
		Config:   cfg,
	}
	k := app.New(deps)
	return &Env{App: webapi.SetupApp(k), Kikoba: k, Deps: deps}
}

// Token signs a caller token for memberID.
func Token(t testing.TB, memberID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": memberID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(JwtSecret))
	require.NoError(t, err)
	return s
}

// Request sends a request through the app. body is sent as JSON when not nil.
func (e *Env) Request(t testing.TB, method, path string, body any, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.App.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// Envelope is the decoded success or problem body.
type Envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Title   string          `json:"title"`
	Detail  string          `json:"detail"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

// Decode reads and closes the response body.
func Decode(t testing.TB, resp *http.Response) Envelope {
	t.Helper()
	defer resp.Body.Close() //nolint: errcheck
	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

// DecodeData unmarshals the data field of a success envelope into v.
func DecodeData(t testing.TB, resp *http.Response, v any) Envelope {
	t.Helper()
	env := Decode(t, resp)
	require.NoError(t, json.Unmarshal(env.Data, v))
	return env
}

// SeedMember stores an active member with the given role.
func (e *Env) SeedMember(t testing.TB, code, name string, role member.Role) *member.Member {
	t.Helper()
	m, err := member.New(code, name, "", time.Now().UTC())
	require.NoError(t, err)
	m.Role = role
	members, err := e.Deps.Uow.MemberRepository()
	require.NoError(t, err)
	require.NoError(t, members.Create(context.Background(), m))
	return m
}

// SeedLoan appends a completed loan for m approved at approvedAt.
func (e *Env) SeedLoan(t testing.TB, m *member.Member, category ledger.Category, principal int64, approvedAt time.Time) *ledger.Transaction {
	t.Helper()
	tx, err := ledger.NewLoan(ledger.LoanTerms{
		RequestID:   uuid.New(),
		MemberID:    m.ID,
		MemberName:  m.DisplayName,
		Principal:   decimal.NewFromInt(principal),
		Category:    category,
		Description: "seeded",
		ApprovedBy:  "seed",
		ApprovedAt:  approvedAt,
	})
	require.NoError(t, err)
	repo, err := e.Deps.Uow.TransactionRepository()
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), tx))
	return tx
}
