package driftwood

import "context"

type confirmerFunc func(ctx context.Context, req ConfirmationRequest) (bool, error)

func (f confirmerFunc) Confirm(ctx context.Context, req ConfirmationRequest) (bool, error) {
	return f(ctx, req)
}

// AutoApprove returns a Confirmer that approves every request. Intended for
// non-interactive runs that opt in explicitly (the --yes flag).
func AutoApprove() Confirmer {
	return confirmerFunc(func(context.Context, ConfirmationRequest) (bool, error) {
		return true, nil
	})
}

// AutoDecline returns a Confirmer that declines every request. This is the
// default: a risky run never proceeds without an explicit approval.
func AutoDecline() Confirmer {
	return confirmerFunc(func(context.Context, ConfirmationRequest) (bool, error) {
		return false, nil
	})
}
