// Command streamkit evaluates lazy integer pipelines from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kbukum/streamkit/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "streamkit:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for bad input or configuration and 1 otherwise.
func exitCode(err error) int {
	if errors.IsUserFacing(errors.CodeOf(err)) {
		return 2
	}
	return 1
}
