// Package audithook is an extension that turns run lifecycle events into
// audit records.
//
// Every run, step and retry hook emits a structured [AuditEvent] through
// the [Recorder] interface with a severity (info for normal operation,
// warning for retries and step failures, critical for failed runs) and
// metadata such as workflow name, step and elapsed time.
//
// # Recorders
//
//	// Publish to Kafka, keyed by run ID.
//	audithook.New(audithook.NewKafkaRecorder([]string{"localhost:9092"}, "posauth.audit"))
//
//	// Write to the structured log.
//	audithook.New(audithook.NewLogRecorder(logger))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionWorkflowFailed,
//	        audithook.ActionActivityRetrying,
//	    ),
//	)
package audithook
