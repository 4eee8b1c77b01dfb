// Command posauth runs the POS email sign-in service.
//
//	posauth serve    # HTTP API with the local executor or a Temporal client
//	posauth worker   # Temporal worker hosting both workflows
//	posauth migrate  # apply store migrations
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "posauth:", err)
		stop()
		os.Exit(1)
	}
}
