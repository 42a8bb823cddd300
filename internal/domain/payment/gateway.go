package payment

import "context"

// ChargeRequest is what the processor needs to charge a customer.
type ChargeRequest struct {
	AmountCents      int64
	Currency         string
	CustomerRef      string
	PaymentMethodRef string
	Description      string
	IdempotencyKey   string
}

// RefundRequest asks the processor to return money against a charge. The
// idempotency key is deterministic per booking, so a retried cancellation
// replays the same key and the processor moves the money at most once.
type RefundRequest struct {
	ChargeRef      string
	AmountCents    int64
	IdempotencyKey string
}

// ReversalRequest pulls already-paid-out funds back from the provider.
type ReversalRequest struct {
	PayoutRef      string
	AmountCents    int64
	IdempotencyKey string
}

// Gateway is the narrow interface to the platform's payment processor. The
// processor and payout network themselves live outside this service; the
// engine only ever calls through these four operations. All calls block on
// the network. Money-moving calls carry an idempotency key so that a crash
// or conflict between moving the money and persisting the result cannot move
// it twice on retry.
type Gateway interface {
	// Charge debits the customer and returns the charge reference.
	Charge(ctx context.Context, req ChargeRequest) (string, error)

	// Refund returns money against the original charge.
	Refund(ctx context.Context, req RefundRequest) (string, error)

	// ReverseTransfer pulls already-paid-out funds back from the provider's
	// account into the platform balance.
	ReverseTransfer(ctx context.Context, req ReversalRequest) (string, error)

	// AvailableBalance returns the provider account's available balance in
	// minor units.
	AvailableBalance(ctx context.Context, accountRef string) (int64, error)
}
