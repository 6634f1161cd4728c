package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"desirebot/internal/errs"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal (%s): %v\n", errs.Kind(err), err)
		if hint := errs.FlattenHints(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		cancel()
		os.Exit(1)
	}
}
