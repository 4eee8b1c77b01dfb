// Package throttle limits sign-in requests per email.
//
// Each email gets a token bucket (golang.org/x/time/rate) and an
// in-flight counter. A request proceeds only when the bucket has a token
// and the email is below its concurrency cap:
//
//	l := throttle.New(throttle.DefaultConfig())
//	if !l.Acquire(email) {
//	    return posauth.ErrThrottled
//	}
//	defer l.Release(email)
//
// With the default cap of one in-flight sign-in per email, two concurrent
// requests for the same address cannot both start a run. Entries idle for
// longer than Config.IdleTTL are dropped by Evict, which Run calls on a
// ticker.
package throttle
