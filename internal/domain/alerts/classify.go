package alerts

import "time"

// Expiry classifications.
const (
	ExpiryNormal   = "normal"
	ExpiryExpiring = "expiring"
	ExpiryExpired  = "expired"
)

// Classify buckets an expiration date relative to now. Comparison is at date
// granularity: an item expiring today is still usable today, one that expired
// yesterday is expired. A nil expiration never alerts, which is how
// non-perishable catalog entries are represented. windowDays is the size of
// the expiring lookahead.
func Classify(expiration *time.Time, now time.Time, windowDays int) string {
	if expiration == nil {
		return ExpiryNormal
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	exp := time.Date(expiration.Year(), expiration.Month(), expiration.Day(), 0, 0, 0, 0, now.Location())

	if exp.Before(today) {
		return ExpiryExpired
	}
	if exp.Before(today.AddDate(0, 0, windowDays)) {
		return ExpiryExpiring
	}
	return ExpiryNormal
}
