package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dashpack/pkg/telemetry"
)

func main() {
	ctx := context.Background()

	shutdown, logger, err := telemetry.Init(ctx, "dashctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Printf("WARN: telemetry shutdown: %v", err)
		}
	}()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dashctl",
		Short:         "Build, validate, and publish dashboard blueprints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newPublishCommand())
	return cmd
}

func printProblems(errors, warnings []string) {
	for _, msg := range errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
	for _, msg := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}
}
