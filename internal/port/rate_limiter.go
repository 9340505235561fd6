package port

import "context"

type RateLimiter interface {
	// Allow records one request for key and reports whether the key is still
	// within its window limit. The count-and-compare must be atomic; two
	// concurrent calls for the same key may never observe the same count.
	Allow(ctx context.Context, key string) (bool, error)
}

// LinkageStore tracks which accounts have been seen from which IPs, feeding
// the multiple-account risk signal.
type LinkageStore interface {
	// ObserveDevice records that userID was active from ip.
	ObserveDevice(ctx context.Context, ip, userID string) error

	// CountLinkedAccounts returns the number of distinct accounts seen from ip.
	CountLinkedAccounts(ctx context.Context, ip string) (int, error)
}
