// Package posauth is the sign-in core of the POS backend. It issues
// one-time email codes and verifies them through two durable workflows
// that run on a checkpointing executor.
//
// The sign-in workflow sequences four activities (bot-token check, email
// validation, code generation, code delivery), each with its own timeout
// and retry policy. Completed steps are persisted by step index, so a run
// interrupted by a crash resumes without repeating side effects such as
// sending the email twice.
//
// # Packages
//
//   - activity: the closed set of activities, their inputs, policies and typed errors
//   - workflow: the durable executor (runs, checkpoints, replay)
//   - signin: the sign-in and verify workflow logic over a runner interface
//   - temporal: the same workflows hosted on a Temporal cluster
//   - engine: wires stores, extensions and middleware into a runnable executor
//   - auth, api: the service and HTTP surface used by the POS frontend
//   - store: memory, Redis and PostgreSQL backends
//   - cmd/posauth: the serve, worker and migrate commands
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package posauth
