package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type handlerFunc func(context.Context, StockChangedEvent) error

func (f handlerFunc) HandleStockChanged(ctx context.Context, evt StockChangedEvent) error {
	return f(ctx, evt)
}

func TestPublishIgnoresRequestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got []StockChangedEvent
	h := handlerFunc(func(ctx context.Context, evt StockChangedEvent) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		got = append(got, evt)
		return nil
	})

	Publish(ctx, h, StockChangedEvent{Kind: MovementIssue, Reference: "sale:1"}, nil)
	require.Len(t, got, 1)
	require.Equal(t, "sale:1", got[0].Reference)
}

func TestPublishSwallowsHandlerErrors(t *testing.T) {
	calls := 0
	h := handlerFunc(func(context.Context, StockChangedEvent) error {
		calls++
		return errors.New("cache unavailable")
	})

	require.NotPanics(t, func() {
		Publish(context.Background(), h, StockChangedEvent{Kind: MovementReceive}, nil)
		Publish(context.Background(), nil, StockChangedEvent{Kind: MovementReceive}, nil)
	})
	require.Equal(t, 1, calls)
}
