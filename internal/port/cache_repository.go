package port

import "context"

type CacheRepository interface {
	// ConsumeAttempt marks a checkout attempt's payment outcome as
	// consumed, returns false if it was consumed already. The payload is
	// kept with the marker for audit.
	ConsumeAttempt(ctx context.Context, attemptID string, payload []byte) (bool, error)

	// ReleaseAttempt undoes a consumption whose order was never written,
	// so a retry with the same resolved outcome can go through.
	ReleaseAttempt(ctx context.Context, attemptID string) error
}
