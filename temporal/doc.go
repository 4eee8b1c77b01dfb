// Package temporal hosts the sign-in and verify workflows on a Temporal
// cluster. The workflow bodies are the same signin.SignIn and
// signin.Verify used by the local executor; only the Runner differs.
//
// Step policies map onto Temporal activity options, and activity failure
// classes map onto application error types so that
// PermanentRejection and InvalidInput are not retried.
package temporal
