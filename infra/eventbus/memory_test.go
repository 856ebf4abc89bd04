package eventbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryBus_SubscribeFiltersAndCancels(t *testing.T) {
	bus := NewWithMemory(discardLogger())
	member := uuid.New().String()

	var got []eventbus.Change
	cancel, err := bus.Subscribe(context.Background(), eventbus.CollectionLoanRequests,
		eventbus.Filter{"member_id": member},
		func(_ context.Context, c eventbus.Change) error {
			got = append(got, c)
			return nil
		})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, eventbus.Change{Collection: eventbus.CollectionLoanRequests, ID: uuid.New(), Attrs: map[string]string{"member_id": member}}))
	require.NoError(t, bus.Publish(ctx, eventbus.Change{Collection: eventbus.CollectionLoanRequests, ID: uuid.New(), Attrs: map[string]string{"member_id": "other"}}))
	require.NoError(t, bus.Publish(ctx, eventbus.Change{Collection: eventbus.CollectionTransactions, ID: uuid.New(), Attrs: map[string]string{"member_id": member}}))
	assert.Len(t, got, 1)

	cancel()
	cancel()
	require.NoError(t, bus.Publish(ctx, eventbus.Change{Collection: eventbus.CollectionLoanRequests, ID: uuid.New(), Attrs: map[string]string{"member_id": member}}))
	assert.Len(t, got, 1)
	assert.Len(t, bus.Published(), 4)
}

func TestMemoryBus_HandlerFailuresAreContained(t *testing.T) {
	bus := NewWithMemory(discardLogger())
	calls := 0
	_, err := bus.Subscribe(context.Background(), "c", nil, func(context.Context, eventbus.Change) error {
		calls++
		panic("boom")
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), "c", nil, func(context.Context, eventbus.Change) error {
		calls++
		return errors.New("handler failed")
	})
	require.NoError(t, err)

	assert.NoError(t, bus.Publish(context.Background(), eventbus.Change{Collection: "c"}))
	assert.Equal(t, 2, calls)
}

func TestEmit_StampsTime(t *testing.T) {
	bus := NewWithMemory(discardLogger())
	eventbus.Emit(context.Background(), bus, discardLogger(), eventbus.Change{Collection: "c", ID: uuid.New()})
	published := bus.Published()
	require.Len(t, published, 1)
	assert.False(t, published[0].At.IsZero())

	eventbus.Emit(context.Background(), nil, discardLogger(), eventbus.Change{Collection: "c"})
}
