package redis

// keys builds the Redis key names. Every key starts with the prefix so
// several deployments can share one database.
type keys string

const defaultPrefix keys = "posauth:"

// ── Workflow keys ──

// run returns the Hash key of a workflow run: posauth:run:{id}
func (k keys) run(id string) string { return string(k) + "run:" + id }

// runIndex is the Sorted Set of run IDs scored by creation time.
func (k keys) runIndex() string { return string(k) + "runs" }

// runKeys is the Hash mapping run keys to run IDs.
func (k keys) runKeys() string { return string(k) + "run_keys" }

// checkpoint returns the Hash key of a checkpoint: posauth:checkpoint:{runID}:{step}
func (k keys) checkpoint(runID, step string) string {
	return string(k) + "checkpoint:" + runID + ":" + step
}

// checkpointIndex is the Sorted Set of a run's step names scored by
// save order.
func (k keys) checkpointIndex(runID string) string {
	return string(k) + "checkpoint_idx:" + runID
}

// checkpointSeq is the counter that orders checkpoint saves.
func (k keys) checkpointSeq() string { return string(k) + "checkpoint_seq" }

// ── OTP keys ──

// user returns the Hash key of a user: posauth:user:{id}
func (k keys) user(id string) string { return string(k) + "user:" + id }

// userEmails is the Hash mapping emails to user IDs.
func (k keys) userEmails() string { return string(k) + "user_emails" }

// attempt returns the Hash key of a code attempt: posauth:attempt:{id}
func (k keys) attempt(id string) string { return string(k) + "attempt:" + id }

// userAttempts is the Sorted Set of a user's attempt IDs scored by
// creation time.
func (k keys) userAttempts(userID string) string {
	return string(k) + "user_attempts:" + userID
}
