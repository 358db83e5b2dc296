package refund

import (
	"context"
	"errors"
	"testing"
	"time"

	"paylock/internal/clock"
	errs "paylock/internal/errors"
	"paylock/internal/gateway"
	"paylock/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubRunner struct{}

func (stubRunner) Serialized(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type MockPaymentRepo struct{ mock.Mock }

func (m *MockPaymentRepo) Create(tx *gorm.DB, p *models.Payment) error {
	return m.Called(p).Error(0)
}
func (m *MockPaymentRepo) Update(tx *gorm.DB, p *models.Payment) error {
	return m.Called(p).Error(0)
}
func (m *MockPaymentRepo) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}
func (m *MockPaymentRepo) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	args := m.Called(intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}
func (m *MockPaymentRepo) FindReleasable(ctx context.Context, now time.Time, limit int) ([]models.Payment, error) {
	args := m.Called(now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

type MockRefundRepo struct{ mock.Mock }

func (m *MockRefundRepo) Create(ctx context.Context, r *models.RefundRequest) error {
	return m.Called(r).Error(0)
}
func (m *MockRefundRepo) Update(tx *gorm.DB, r *models.RefundRequest) error {
	return m.Called(r).Error(0)
}
func (m *MockRefundRepo) GetByID(ctx context.Context, id uint) (*models.RefundRequest, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefundRequest), args.Error(1)
}
func (m *MockRefundRepo) GetByStripeRefundID(ctx context.Context, refundID string) (*models.RefundRequest, error) {
	args := m.Called(refundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefundRequest), args.Error(1)
}
func (m *MockRefundRepo) ListByPayment(ctx context.Context, paymentID uint) ([]models.RefundRequest, error) {
	args := m.Called(paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RefundRequest), args.Error(1)
}
func (m *MockRefundRepo) SumOutstanding(tx *gorm.DB, paymentID uint) (int64, error) {
	args := m.Called(paymentID)
	return args.Get(0).(int64), args.Error(1)
}

type MockLocks struct{ mock.Mock }

func (m *MockLocks) LockPayment(tx *gorm.DB, id uint) (*models.Payment, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}
func (m *MockLocks) LockPayoutsForPayment(tx *gorm.DB, paymentID uint) ([]models.SellerPayout, error) {
	args := m.Called(paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SellerPayout), args.Error(1)
}
func (m *MockLocks) LockRefund(tx *gorm.DB, id uint) (*models.RefundRequest, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefundRequest), args.Error(1)
}

type gatewayMock struct{ mock.Mock }

func (m *gatewayMock) Refund(ctx context.Context, paymentIntentID string, amount int64, idempotencyKey string) (*gateway.RefundResult, error) {
	args := m.Called(ctx, paymentIntentID, amount, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResult), args.Error(1)
}

func newTestService(payments *MockPaymentRepo, refunds *MockRefundRepo, locks *MockLocks, gw *gatewayMock) Service {
	return NewService(Config{
		Runner:   stubRunner{},
		Payments: payments,
		Refunds:  refunds,
		Locks:    locks,
		Gateway:  gw,
		Clock:    &clock.Fixed{Instant: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	})
}

func TestApprove_BoundViolationLeavesStateUntouched(t *testing.T) {
	payments := new(MockPaymentRepo)
	refunds := new(MockRefundRepo)
	locks := new(MockLocks)
	gw := new(gatewayMock)

	p := &models.Payment{ID: 1, Status: models.PaymentStatusHeld, IsHeld: true,
		Amount: 10000, AmountRefunded: 4000, StripePaymentIntentID: "pi_1"}
	r := &models.RefundRequest{ID: 5, PaymentID: 1, Amount: 5000, Status: models.RefundStatusPending}

	refunds.On("GetByID", uint(5)).Return(r, nil)
	locks.On("LockPayment", uint(1)).Return(p, nil)
	locks.On("LockRefund", uint(5)).Return(r, nil)
	// 2000 already approved or in flight: 5000 > 10000-4000-2000.
	refunds.On("SumOutstanding", uint(1)).Return(int64(2000), nil)

	svc := newTestService(payments, refunds, locks, gw)
	_, err := svc.Approve(context.Background(), 5, 9)

	assert.ErrorIs(t, err, errs.ErrRefundExceedsBalance)
	assert.Equal(t, models.RefundStatusPending, r.Status)
	refunds.AssertNotCalled(t, "Update", mock.Anything)
	gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApprove_SubmitsWithStableIdempotencyKey(t *testing.T) {
	payments := new(MockPaymentRepo)
	refunds := new(MockRefundRepo)
	locks := new(MockLocks)
	gw := new(gatewayMock)

	p := &models.Payment{ID: 1, Status: models.PaymentStatusHeld, IsHeld: true,
		Amount: 10000, StripePaymentIntentID: "pi_1"}
	r := &models.RefundRequest{ID: 5, PaymentID: 1, Amount: 3000, Status: models.RefundStatusPending}

	refunds.On("GetByID", uint(5)).Return(r, nil)
	locks.On("LockPayment", uint(1)).Return(p, nil)
	locks.On("LockRefund", uint(5)).Return(r, nil)
	refunds.On("SumOutstanding", uint(1)).Return(int64(0), nil)
	refunds.On("Update", r).Return(nil)
	gw.On("Refund", mock.Anything, "pi_1", int64(3000), "refund-5").
		Return(&gateway.RefundResult{RefundID: "re_1"}, nil)

	svc := newTestService(payments, refunds, locks, gw)
	got, err := svc.Approve(context.Background(), 5, 9)
	require.NoError(t, err)

	assert.Equal(t, models.RefundStatusProcessing, got.Status)
	assert.Equal(t, "re_1", got.StripeRefundID)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, uint(9), *got.ReviewedBy)
	gw.AssertExpectations(t)
}

func TestApprove_GatewayFailureStaysApproved(t *testing.T) {
	payments := new(MockPaymentRepo)
	refunds := new(MockRefundRepo)
	locks := new(MockLocks)
	gw := new(gatewayMock)

	p := &models.Payment{ID: 1, Status: models.PaymentStatusHeld, IsHeld: true,
		Amount: 10000, StripePaymentIntentID: "pi_1"}
	r := &models.RefundRequest{ID: 5, PaymentID: 1, Amount: 3000, Status: models.RefundStatusPending}

	refunds.On("GetByID", uint(5)).Return(r, nil)
	locks.On("LockPayment", uint(1)).Return(p, nil)
	locks.On("LockRefund", uint(5)).Return(r, nil)
	refunds.On("SumOutstanding", uint(1)).Return(int64(0), nil)
	refunds.On("Update", r).Return(nil)
	gw.On("Refund", mock.Anything, "pi_1", int64(3000), "refund-5").
		Return(nil, errors.New("provider unavailable"))

	svc := newTestService(payments, refunds, locks, gw)
	got, err := svc.Approve(context.Background(), 5, 9)

	var dErr *errs.DomainError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, errs.CodeGatewayFailed, dErr.Code)
	// Approved, not processing: a retry reuses the same idempotency key.
	assert.Equal(t, models.RefundStatusApproved, got.Status)
	assert.Contains(t, got.FailureReason, "provider unavailable")
}

func TestReject(t *testing.T) {
	refunds := new(MockRefundRepo)
	locks := new(MockLocks)

	r := &models.RefundRequest{ID: 5, PaymentID: 1, Amount: 3000, Status: models.RefundStatusPending}
	locks.On("LockRefund", uint(5)).Return(r, nil)
	refunds.On("Update", r).Return(nil)

	svc := newTestService(new(MockPaymentRepo), refunds, locks, new(gatewayMock))
	got, err := svc.Reject(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusRejected, got.Status)

	// Second reject is a no-op success.
	got, err = svc.Reject(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusRejected, got.Status)
	refunds.AssertNumberOfCalls(t, "Update", 1)
}

func TestHandleRefundSucceeded(t *testing.T) {
	tests := []struct {
		name           string
		payment        *models.Payment
		refundAmount   int64
		payouts        []models.SellerPayout
		wantStatus     string
		wantReconcile  bool
		wantRefundedTo int64
	}{
		{
			name: "partial refund before release",
			payment: &models.Payment{ID: 1, Status: models.PaymentStatusHeld,
				IsHeld: true, Amount: 10000},
			refundAmount:   3000,
			payouts:        nil,
			wantStatus:     models.PaymentStatusPartiallyRefunded,
			wantRefundedTo: 3000,
		},
		{
			name: "full refund before release",
			payment: &models.Payment{ID: 1, Status: models.PaymentStatusHeld,
				IsHeld: true, Amount: 10000},
			refundAmount:   10000,
			payouts:        nil,
			wantStatus:     models.PaymentStatusRefunded,
			wantRefundedTo: 10000,
		},
		{
			name: "refund covered by unpaid payouts",
			payment: &models.Payment{ID: 1,
				Status: models.PaymentStatusReleased, Amount: 10000},
			refundAmount: 3000,
			payouts: []models.SellerPayout{
				{ID: 1, PaymentID: 1, Status: models.PayoutStatusPending, NetAmount: 5700, FeeAmount: 300},
				{ID: 2, PaymentID: 1, Status: models.PayoutStatusPending, NetAmount: 3800, FeeAmount: 200},
			},
			wantStatus:     models.PaymentStatusPartiallyRefunded,
			wantRefundedTo: 3000,
		},
		{
			name: "refund past paid-out funds flags reconciliation",
			payment: &models.Payment{ID: 1,
				Status: models.PaymentStatusSettled, Amount: 10000},
			refundAmount: 3000,
			payouts: []models.SellerPayout{
				{ID: 1, PaymentID: 1, Status: models.PayoutStatusPaid, NetAmount: 5700, FeeAmount: 300},
				{ID: 2, PaymentID: 1, Status: models.PayoutStatusPaid, NetAmount: 3800, FeeAmount: 200},
			},
			wantStatus:     models.PaymentStatusPartiallyRefunded,
			wantReconcile:  true,
			wantRefundedTo: 3000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := new(MockPaymentRepo)
			refunds := new(MockRefundRepo)
			locks := new(MockLocks)

			r := &models.RefundRequest{ID: 5, PaymentID: 1, Amount: tt.refundAmount,
				Status: models.RefundStatusProcessing, StripeRefundID: "re_1"}

			refunds.On("GetByStripeRefundID", "re_1").Return(r, nil)
			locks.On("LockPayment", uint(1)).Return(tt.payment, nil)
			locks.On("LockPayoutsForPayment", uint(1)).Return(tt.payouts, nil)
			locks.On("LockRefund", uint(5)).Return(r, nil)
			refunds.On("Update", r).Return(nil)
			payments.On("Update", tt.payment).Return(nil)

			svc := newTestService(payments, refunds, locks, new(gatewayMock))
			err := svc.HandleRefundSucceeded(context.Background(), "re_1")
			require.NoError(t, err)

			assert.Equal(t, models.RefundStatusCompleted, r.Status)
			assert.Equal(t, tt.wantStatus, tt.payment.Status)
			assert.Equal(t, tt.wantRefundedTo, tt.payment.AmountRefunded)
			assert.Equal(t, tt.wantReconcile, tt.payment.NeedsReconciliation)
		})
	}
}

func TestHandleRefundSucceeded_ReplayIsNoOp(t *testing.T) {
	payments := new(MockPaymentRepo)
	refunds := new(MockRefundRepo)
	locks := new(MockLocks)

	p := &models.Payment{ID: 1, Status: models.PaymentStatusPartiallyRefunded,
		Amount: 10000, AmountRefunded: 3000}
	r := &models.RefundRequest{ID: 5, PaymentID: 1, Amount: 3000,
		Status: models.RefundStatusCompleted, StripeRefundID: "re_1"}

	refunds.On("GetByStripeRefundID", "re_1").Return(r, nil)
	locks.On("LockPayment", uint(1)).Return(p, nil)
	locks.On("LockPayoutsForPayment", uint(1)).Return([]models.SellerPayout(nil), nil)
	locks.On("LockRefund", uint(5)).Return(r, nil)

	svc := newTestService(payments, refunds, locks, new(gatewayMock))
	err := svc.HandleRefundSucceeded(context.Background(), "re_1")
	require.NoError(t, err)

	// The refunded ledger is not double-counted.
	assert.Equal(t, int64(3000), p.AmountRefunded)
	payments.AssertNotCalled(t, "Update", mock.Anything)
}

func TestRequest_SoftBound(t *testing.T) {
	payments := new(MockPaymentRepo)
	refunds := new(MockRefundRepo)

	p := &models.Payment{ID: 1, Status: models.PaymentStatusHeld, IsHeld: true,
		Amount: 10000, AmountRefunded: 8000}
	payments.On("GetByID", uint(1)).Return(p, nil)

	svc := newTestService(payments, refunds, new(MockLocks), new(gatewayMock))
	_, err := svc.Request(context.Background(), RequestParams{
		PaymentID: 1, RequesterID: 2, Amount: 3000, Reason: "damaged item",
	})
	assert.ErrorIs(t, err, errs.ErrRefundExceedsBalance)

	refunds.On("Create", mock.Anything).Return(nil)
	req, err := svc.Request(context.Background(), RequestParams{
		PaymentID: 1, RequesterID: 2, Amount: 2000, Reason: "damaged item",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusPending, req.Status)
}

func TestRequest_RejectsNonLivePayment(t *testing.T) {
	payments := new(MockPaymentRepo)
	p := &models.Payment{ID: 1, Status: models.PaymentStatusFailed, Amount: 10000}
	payments.On("GetByID", uint(1)).Return(p, nil)

	svc := newTestService(payments, new(MockRefundRepo), new(MockLocks), new(gatewayMock))
	_, err := svc.Request(context.Background(), RequestParams{
		PaymentID: 1, RequesterID: 2, Amount: 1000, Reason: "changed my mind",
	})
	assert.ErrorIs(t, err, ErrPaymentNotLive)
}
