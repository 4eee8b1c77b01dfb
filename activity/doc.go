// Package activity defines the side-effecting steps of the sign-in
// workflow and the policy the executor applies to each of them.
//
// The set of activities is closed: [Kind] enumerates them and [Table]
// binds every kind to its function at compile time. All activities take
// an [Input] and return an [Output] so a single JSON shape is persisted
// per step and sent over the wire to remote workers.
//
// Failures are reported as [*Error] values carrying a [Failure] class:
//
//   - FailureTransient: network or provider hiccups; retried per policy
//   - FailureRejected: a definitive refusal by the remote side
//   - FailureInvalid: malformed input; never retried
//
// A [RetryPolicy] decides which classes are retried and how long to wait
// between attempts.
package activity
