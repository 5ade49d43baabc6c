package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/fhirflat/internal/cli"
)

func main() {
	exitCode := run()
	os.Exit(exitCode)
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fhirflat: %v\n", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
