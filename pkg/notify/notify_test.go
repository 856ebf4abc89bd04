package notify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, msg notify.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestAsync_DetachesAndSwallowsErrors(t *testing.T) {
	next := &mockNotifier{}
	next.On("Notify", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.AnythingOfType("notify.Message")).Return(errors.New("broker down")).Once()

	a := notify.NewAsync(next, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.Notify(ctx, notify.Message{Kind: notify.KindLoanApproved, Recipients: []uuid.UUID{uuid.New()}})
	assert.NoError(t, err)
	a.Wait()
	next.AssertExpectations(t)
}

func TestAsync_SkipsEmptyRecipients(t *testing.T) {
	next := &mockNotifier{}
	a := notify.NewAsync(next, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	assert.NoError(t, a.Notify(context.Background(), notify.Message{Kind: notify.KindLoanSubmitted}))
	a.Wait()
	next.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	assert.NoError(t, notify.Nop{}.Notify(context.Background(), notify.Message{}))
}
