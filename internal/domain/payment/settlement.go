package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// PayoutState says where the booking's funds currently sit. It is derived
// once from the booking's transfer metadata and passed explicitly, so the
// routing decision never infers intent from nullable fields.
type PayoutState string

const (
	// PayoutPending: funds are still with the platform; a direct refund
	// against the original charge is possible.
	PayoutPending PayoutState = "payout_pending"
	// PaidOut: funds were transferred to the provider; refunding requires a
	// transfer reversal first, or the platform would be left underfunded.
	PaidOut PayoutState = "paid_out"
)

// RefundMethod records which money-movement strategy was used.
type RefundMethod string

const (
	MethodNone             RefundMethod = "none"
	MethodDirect           RefundMethod = "direct"
	MethodTransferReversal RefundMethod = "transfer_reversal"
)

// SettlementStatus is the outcome of the refund sub-step.
type SettlementStatus string

const (
	// SettlementSkipped: nothing was owed, no processor call was made.
	SettlementSkipped SettlementStatus = "skipped"
	// SettlementProcessed: the refund went through.
	SettlementProcessed SettlementStatus = "processed"
	// SettlementFailed: the refund could not be completed and needs manual
	// provider-side resolution. The cancellation itself still commits.
	SettlementFailed SettlementStatus = "failed"
)

// SettlementRequest carries everything the router needs to move the money.
type SettlementRequest struct {
	BookingID          string
	AmountCents        int64
	Currency           string
	ChargeRef          string
	PayoutState        PayoutState
	PayoutRef          string
	ProviderAccountRef string
}

// RefundOutcome reports what the router did. Failures are encoded here, never
// returned as Go errors: the cancellation must commit regardless.
type RefundOutcome struct {
	Status        SettlementStatus `json:"status"`
	Method        RefundMethod     `json:"method"`
	RefundRef     string           `json:"refund_ref,omitempty"`
	ReversalRef   string           `json:"reversal_ref,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
}

// SettlementRouter executes refunds, choosing between a direct refund and a
// transfer reversal depending on whether the provider has been paid out.
type SettlementRouter struct {
	gateway Gateway
	logger  *zap.Logger
}

// NewSettlementRouter creates a SettlementRouter over the given gateway.
func NewSettlementRouter(gateway Gateway, logger *zap.Logger) *SettlementRouter {
	return &SettlementRouter{gateway: gateway, logger: logger}
}

// Settle executes the refund for a cancellation. With funds still on the
// platform it refunds the original charge directly. With funds already paid
// out it first checks the provider's balance, reverses the payout, and then
// refunds the customer from the platform balance; an uncovered reversal fails
// the refund (not the cancellation) for manual settlement.
func (r *SettlementRouter) Settle(ctx context.Context, req SettlementRequest) RefundOutcome {
	if req.AmountCents <= 0 {
		return RefundOutcome{Status: SettlementSkipped, Method: MethodNone}
	}

	switch req.PayoutState {
	case PayoutPending:
		return r.directRefund(ctx, req)
	case PaidOut:
		return r.reversalRefund(ctx, req)
	default:
		r.logger.Error("unknown payout state",
			zap.String("booking_id", req.BookingID),
			zap.String("payout_state", string(req.PayoutState)),
		)
		return RefundOutcome{
			Status:        SettlementFailed,
			Method:        MethodNone,
			FailureReason: fmt.Sprintf("unknown payout state %q", req.PayoutState),
		}
	}
}

// refundKey and reversalKey derive the processor idempotency keys from the
// booking ID. A booking is refunded at most once, so a retried cancellation
// replays the same key and the processor dedupes the money movement.
func refundKey(bookingID string) string   { return "refund-" + bookingID }
func reversalKey(bookingID string) string { return "reversal-" + bookingID }

func (r *SettlementRouter) directRefund(ctx context.Context, req SettlementRequest) RefundOutcome {
	refundRef, err := r.gateway.Refund(ctx, RefundRequest{
		ChargeRef:      req.ChargeRef,
		AmountCents:    req.AmountCents,
		IdempotencyKey: refundKey(req.BookingID),
	})
	if err != nil {
		r.logger.Error("direct refund failed",
			zap.String("booking_id", req.BookingID),
			zap.Int64("amount_cents", req.AmountCents),
			zap.Error(err),
		)
		return RefundOutcome{
			Status:        SettlementFailed,
			Method:        MethodDirect,
			FailureReason: fmt.Sprintf("processor refund failed: %v", err),
		}
	}

	r.logger.Info("refund processed",
		zap.String("booking_id", req.BookingID),
		zap.String("method", string(MethodDirect)),
		zap.Int64("amount_cents", req.AmountCents),
	)
	return RefundOutcome{Status: SettlementProcessed, Method: MethodDirect, RefundRef: refundRef}
}

func (r *SettlementRouter) reversalRefund(ctx context.Context, req SettlementRequest) RefundOutcome {
	balance, err := r.gateway.AvailableBalance(ctx, req.ProviderAccountRef)
	if err != nil {
		r.logger.Error("provider balance check failed",
			zap.String("booking_id", req.BookingID),
			zap.Error(err),
		)
		return RefundOutcome{
			Status:        SettlementFailed,
			Method:        MethodTransferReversal,
			FailureReason: fmt.Sprintf("balance check failed: %v", err),
		}
	}

	if balance < req.AmountCents {
		r.logger.Warn("provider balance cannot cover reversal",
			zap.String("booking_id", req.BookingID),
			zap.Int64("balance_cents", balance),
			zap.Int64("amount_cents", req.AmountCents),
		)
		return RefundOutcome{
			Status:        SettlementFailed,
			Method:        MethodTransferReversal,
			FailureReason: "insufficient provider balance",
		}
	}

	reversalRef, err := r.gateway.ReverseTransfer(ctx, ReversalRequest{
		PayoutRef:      req.PayoutRef,
		AmountCents:    req.AmountCents,
		IdempotencyKey: reversalKey(req.BookingID),
	})
	if err != nil {
		r.logger.Error("transfer reversal failed",
			zap.String("booking_id", req.BookingID),
			zap.String("payout_ref", req.PayoutRef),
			zap.Error(err),
		)
		return RefundOutcome{
			Status:        SettlementFailed,
			Method:        MethodTransferReversal,
			FailureReason: fmt.Sprintf("transfer reversal failed: %v", err),
		}
	}

	refundRef, err := r.gateway.Refund(ctx, RefundRequest{
		ChargeRef:      req.ChargeRef,
		AmountCents:    req.AmountCents,
		IdempotencyKey: refundKey(req.BookingID),
	})
	if err != nil {
		// The reversal went through but the customer refund did not. The
		// reversal reference is kept so manual settlement can pick up from here.
		r.logger.Error("refund after reversal failed",
			zap.String("booking_id", req.BookingID),
			zap.String("reversal_ref", reversalRef),
			zap.Error(err),
		)
		return RefundOutcome{
			Status:        SettlementFailed,
			Method:        MethodTransferReversal,
			ReversalRef:   reversalRef,
			FailureReason: fmt.Sprintf("refund after reversal failed: %v", err),
		}
	}

	r.logger.Info("refund processed",
		zap.String("booking_id", req.BookingID),
		zap.String("method", string(MethodTransferReversal)),
		zap.Int64("amount_cents", req.AmountCents),
	)
	return RefundOutcome{
		Status:      SettlementProcessed,
		Method:      MethodTransferReversal,
		RefundRef:   refundRef,
		ReversalRef: reversalRef,
	}
}
