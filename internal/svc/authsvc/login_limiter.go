package authsvc

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// minTrackedLogins is the bucket count below which no sweep happens.
	minTrackedLogins = 1024
	// loginIdleTTL drops buckets that saw no attempt for this long.
	loginIdleTTL = time.Hour
)

type loginBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter keeps one token bucket per email address. Buckets that have
// refilled or gone idle are swept once the map grows past a threshold.
type LoginLimiter struct {
	limit     rate.Limit
	burst     int
	mu        sync.Mutex
	buckets   map[string]*loginBucket
	sweepSize int
}

// NewLoginLimiter allows perSecond sign-in attempts per email with the given burst.
func NewLoginLimiter(perSecond float64, burst int) *LoginLimiter {
	return &LoginLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		buckets:   make(map[string]*loginBucket),
		sweepSize: minTrackedLogins,
	}
}

// Allow reports whether another attempt for email may proceed at now.
func (l *LoginLimiter) Allow(email string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[email]
	if !ok {
		if len(l.buckets) >= l.sweepSize {
			l.sweep(now)
		}

		bucket = &loginBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[email] = bucket
	}

	bucket.lastSeen = now

	return bucket.limiter.AllowN(now, 1)
}

// sweep drops buckets that behave like fresh ones. Callers hold mu.
func (l *LoginLimiter) sweep(now time.Time) {
	for email, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) >= loginIdleTTL || bucket.limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, email)
		}
	}

	l.sweepSize = max(minTrackedLogins, 2*len(l.buckets))
}

// Tracked returns the number of buckets currently held.
func (l *LoginLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.buckets)
}

// Forget drops the bucket of email, e.g. after a successful password reset.
func (l *LoginLimiter) Forget(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, email)
}
