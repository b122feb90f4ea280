package domain

import "errors"

var (
	// ErrNotFound is returned by stores when an entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest covers malformed input: out-of-range outcome index,
	// non-positive amount or quantity. Always a client error, never retried.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidState signals a degenerate market configuration, e.g. a CPMM
	// pool at zero or a negative pool entry. The market should be treated as
	// unusable rather than silently mispriced.
	ErrInvalidState = errors.New("invalid market state")

	// ErrInsufficientBalance rejects a trade whose cost exceeds the user's
	// Insight Points balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSlippageExceeded rejects a quote whose price impact exceeds the
	// mechanism's configured bound.
	ErrSlippageExceeded = errors.New("slippage exceeded")

	// ErrLimitExceeded rejects a trade that would push the user past the
	// rolling 24-hour spend cap.
	ErrLimitExceeded = errors.New("daily limit exceeded")

	// ErrComplianceRejected rejects activity on a denylisted topic.
	ErrComplianceRejected = errors.New("topic not allowed")

	// ErrMarketNotOpen rejects trades against closed or settled markets.
	ErrMarketNotOpen = errors.New("market not open")

	// ErrLockHeld is returned when a per-market lock is already held.
	ErrLockHeld = errors.New("lock already held")

	// ErrUnavailable is surfaced after bounded retries on lock contention.
	ErrUnavailable = errors.New("temporarily unavailable")
)
