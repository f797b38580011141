package econ

import "errors"

var (
	// ErrNonPending reports Buy or Release on a reservation that already
	// reached a terminal state.
	ErrNonPending = errors.New("reservation is not pending")

	// ErrOutputInfeasible reports a reservation for more output than the
	// market's firms can still supply this period.
	ErrOutputInfeasible = errors.New("requested quantity exceeds available supply")

	// ErrLowPrice reports a reservation whose per-unit price cap is below
	// the market's current price.
	ErrLowPrice = errors.New("price cap below market price")

	// ErrInsufficientAssets reports a debit larger than the available
	// assets.
	ErrInsufficientAssets = errors.New("insufficient assets")
)
