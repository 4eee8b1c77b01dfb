package temporal

import (
	"log/slog"

	sdkclient "go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/signin"
)

// Dial connects to a Temporal frontend. The SDK logs through logger.
func Dial(hostPort, namespace string, logger *slog.Logger) (sdkclient.Client, error) {
	return sdkclient.Dial(sdkclient.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    sdklog.NewStructuredLogger(logger),
	})
}

// NewWorker returns a worker polling taskQueue with both workflows and
// all activities registered. The caller starts and stops it.
func NewWorker(c sdkclient.Client, taskQueue string, table *activity.Table, p signin.Policies) sdkworker.Worker {
	w := sdkworker.New(c, taskQueue, sdkworker.Options{})
	Register(w, table, p)
	return w
}
