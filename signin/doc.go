// Package signin holds the two workflows of email-code sign-in.
//
// SignIn sequences the four activities in a fixed order: bot-token check,
// email validation, code generation and code delivery. Each step runs
// through a [Runner] with its own timeout and retry policy, and any false
// result or exhausted failure ends the run with a human-readable message.
//
// Verify compares a candidate code against the issued reference. It is a
// pure function of its input and the run's start time.
//
// Both workflows are plain deterministic functions over Runner, so the
// same code runs on the local checkpointing executor (see [Register]) and
// on Temporal (package temporal), and tests drive them with fakes.
package signin
