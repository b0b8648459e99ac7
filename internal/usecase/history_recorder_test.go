package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"
	"github.com/Israr974/BuyZaar-sub001/internal/infra/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 51件目で一番古いものが消え、新しいものが残る
func TestHistoryRecorder_CapsAtLimit(t *testing.T) {
	store := memory.NewStore()
	buyer := store.AddUser(model.User{Email: "b@example.com", IsActive: true})
	h := NewHistoryRecorder(store.History(), model.HistoryLimit, time.Second)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= model.HistoryLimit+1; i++ {
		err := h.Record(ctx, model.Order{
			ID:          int64(i),
			OrderNumber: fmt.Sprintf("ORD-%03d", i),
			UserID:      buyer.ID,
			Status:      model.OrderStatusPending,
			Price:       model.PriceBreakdown{Total: decimal.NewFromInt(int64(i))},
			Payment:     model.Payment{Method: model.PaymentMethodUPI},
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}, 1)
		require.NoError(t, err)
	}

	entries, err := h.List(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, entries, model.HistoryLimit)
	assert.Equal(t, "ORD-051", entries[0].OrderNumber)
	assert.Equal(t, "ORD-002", entries[len(entries)-1].OrderNumber)
	for _, e := range entries {
		assert.NotEqual(t, "ORD-001", e.OrderNumber)
	}
}

func TestHistoryRecorder_UnknownBuyer(t *testing.T) {
	store := memory.NewStore()
	h := NewHistoryRecorder(store.History(), 0, time.Second)

	err := h.Record(context.Background(), model.Order{ID: 1, UserID: 404}, 1)
	assert.Error(t, err)
}
