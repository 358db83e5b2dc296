package payout

import (
	"testing"

	errs "paylock/internal/errors"
	"paylock/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayouts_TwoSellers(t *testing.T) {
	// 10000 minor units, 3 items from 2 sellers, 5% fee.
	p := &models.Payment{ID: 1, OrderID: 7, Amount: 10000, Currency: "usd"}
	items := []models.OrderItem{
		{ID: 1, OrderID: 7, SellerID: 10, StripeAccountID: "acct_a", Subtotal: 3500},
		{ID: 2, OrderID: 7, SellerID: 10, StripeAccountID: "acct_a", Subtotal: 2500},
		{ID: 3, OrderID: 7, SellerID: 20, StripeAccountID: "acct_b", Subtotal: 4000},
	}

	out, err := BuildPayouts(p, items, 500)
	require.NoError(t, err)
	require.Len(t, out.Payouts, 2)

	sellerA := out.Payouts[0]
	assert.Equal(t, uint(10), sellerA.SellerID)
	assert.Equal(t, int64(5700), sellerA.NetAmount)
	assert.Equal(t, int64(300), sellerA.FeeAmount)
	assert.Equal(t, "acct_a", sellerA.StripeAccountID)
	assert.Equal(t, models.PayoutStatusPending, sellerA.Status)

	sellerB := out.Payouts[1]
	assert.Equal(t, uint(20), sellerB.SellerID)
	assert.Equal(t, int64(3800), sellerB.NetAmount)
	assert.Equal(t, int64(200), sellerB.FeeAmount)

	assert.Equal(t, int64(500), out.TotalFee)
}

func TestBuildPayouts_Conservation(t *testing.T) {
	tests := []struct {
		name      string
		amount    int64
		subtotals map[uint][]int64
		feeBps    int64
	}{
		{
			name:      "rounding edges at 2.5% fee",
			amount:    301,
			subtotals: map[uint][]int64{1: {100}, 2: {101}, 3: {100}},
			feeBps:    250,
		},
		{
			name:      "single unit items",
			amount:    7,
			subtotals: map[uint][]int64{1: {1, 1, 1}, 2: {2, 2}},
			feeBps:    500,
		},
		{
			name:      "residual goes to fee ledger",
			amount:    10010,
			subtotals: map[uint][]int64{1: {6000}, 2: {4000}},
			feeBps:    500,
		},
		{
			name:      "zero fee rate",
			amount:    9999,
			subtotals: map[uint][]int64{1: {3333}, 2: {3333}, 3: {3333}},
			feeBps:    0,
		},
		{
			name:      "full fee rate",
			amount:    500,
			subtotals: map[uint][]int64{1: {500}},
			feeBps:    10000,
		},
		{
			name:      "odd split provoking half-to-even",
			amount:    150,
			subtotals: map[uint][]int64{1: {10}, 2: {30}, 3: {50}, 4: {60}},
			feeBps:    500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &models.Payment{ID: 1, OrderID: 1, Amount: tt.amount, Currency: "usd"}
			var items []models.OrderItem
			var id uint
			for seller, subs := range tt.subtotals {
				for _, sub := range subs {
					id++
					items = append(items, models.OrderItem{
						ID: id, OrderID: 1, SellerID: seller,
						StripeAccountID: "acct", Subtotal: sub,
					})
				}
			}

			out, err := BuildPayouts(p, items, tt.feeBps)
			require.NoError(t, err)

			var netSum, feeSum int64
			for _, po := range out.Payouts {
				netSum += po.NetAmount
				feeSum += po.FeeAmount
				assert.GreaterOrEqual(t, po.NetAmount, int64(0))
			}
			assert.Equal(t, tt.amount, netSum+out.TotalFee,
				"sum(net) + total fee must equal the payment amount exactly")
			assert.GreaterOrEqual(t, out.TotalFee, feeSum)
		})
	}
}

func TestBuildPayouts_HalfToEvenRounding(t *testing.T) {
	// 5% of 10 is 0.5: banker's rounding takes it to 0, not 1.
	p := &models.Payment{ID: 1, OrderID: 1, Amount: 10, Currency: "usd"}
	items := []models.OrderItem{{ID: 1, OrderID: 1, SellerID: 1, StripeAccountID: "acct", Subtotal: 10}}

	out, err := BuildPayouts(p, items, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Payouts[0].FeeAmount)
	assert.Equal(t, int64(10), out.Payouts[0].NetAmount)

	// 5% of 30 is 1.5: rounds to 2.
	p.Amount = 30
	items[0].Subtotal = 30
	out, err = BuildPayouts(p, items, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Payouts[0].FeeAmount)
	assert.Equal(t, int64(28), out.Payouts[0].NetAmount)
}

func TestBuildPayouts_Validation(t *testing.T) {
	p := &models.Payment{ID: 1, OrderID: 1, Amount: 100, Currency: "usd"}

	t.Run("no items", func(t *testing.T) {
		_, err := BuildPayouts(p, nil, 500)
		var dErr *errs.DomainError
		require.ErrorAs(t, err, &dErr)
		assert.Equal(t, errs.CodeValidation, dErr.Code)
	})

	t.Run("items exceed payment amount", func(t *testing.T) {
		items := []models.OrderItem{{ID: 1, OrderID: 1, SellerID: 1, StripeAccountID: "acct", Subtotal: 200}}
		_, err := BuildPayouts(p, items, 500)
		assert.Error(t, err)
	})

	t.Run("fee rate out of range", func(t *testing.T) {
		items := []models.OrderItem{{ID: 1, OrderID: 1, SellerID: 1, StripeAccountID: "acct", Subtotal: 100}}
		_, err := BuildPayouts(p, items, 10001)
		assert.Error(t, err)
	})
}
