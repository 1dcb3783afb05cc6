// Package deadline decides whether an attempt is still within its time box.
package deadline

import "time"

// Grace absorbs latency between the client's last action and the request
// reaching the server. It is the same for every assessment.
const Grace = 2 * time.Minute

// Status is the deadline verdict for an attempt.
type Status int

const (
	Active Status = iota
	Expired
)

func (s Status) String() string {
	if s == Expired {
		return "EXPIRED"
	}
	return "ACTIVE"
}

// Check returns Expired iff now is strictly after startedAt + allowed minutes + grace.
func Check(startedAt time.Time, allowedMinutes int, grace time.Duration, now time.Time) Status {
	if now.After(ExpiresAt(startedAt, allowedMinutes, grace)) {
		return Expired
	}
	return Active
}

// ExpiresAt is the last instant at which the attempt is still Active.
func ExpiresAt(startedAt time.Time, allowedMinutes int, grace time.Duration) time.Time {
	return startedAt.Add(time.Duration(allowedMinutes)*time.Minute + grace)
}

// Remaining is the time left until ExpiresAt, never negative.
func Remaining(startedAt time.Time, allowedMinutes int, grace time.Duration, now time.Time) time.Duration {
	left := ExpiresAt(startedAt, allowedMinutes, grace).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
