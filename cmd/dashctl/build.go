package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dashpack/internal/blueprint"
	"dashpack/internal/build"
	"dashpack/internal/sign"
)

func newBuildCommand() *cobra.Command {
	var (
		output        string
		target        string
		environment   string
		skipPlugins   bool
		skipSignature bool
		strict        bool
	)

	cmd := &cobra.Command{
		Use:   "build <blueprint>",
		Short: "Build a blueprint into a signed artifact directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var signer *sign.Signer
			if !skipSignature {
				s, err := sign.NewSignerFromEnv()
				if err != nil {
					return fmt.Errorf("signer: %w (use --skip-signature for unsigned test builds)", err)
				}
				signer = s
			}

			result, err := build.Build(cmd.Context(), build.Config{
				BlueprintPath: args[0],
				OutputDir:     output,
				Target:        target,
				Environment:   environment,
				SkipPlugins:   skipPlugins,
				SkipSignature: skipSignature,
				Strict:        strict,
				Signer:        signer,
				Stdout:        os.Stdout,
			})
			if err != nil {
				var errs blueprint.ErrorList
				if errors.As(err, &errs) {
					printProblems(errs.Messages(), nil)
					return fmt.Errorf("blueprint failed validation with %d problem(s)", len(errs))
				}
				return err
			}

			printProblems(nil, result.Warnings)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "dist", "Output directory for the build artifact")
	cmd.Flags().StringVar(&target, "target", build.TargetWeb, "Build target: desktop, web, or both")
	cmd.Flags().StringVar(&environment, "env", "", "Deployment environment whose overrides to apply")
	cmd.Flags().BoolVar(&skipPlugins, "skip-plugins", false, "Skip plugin resolution")
	cmd.Flags().BoolVar(&skipSignature, "skip-signature", false, "Skip artifact signing (build cannot be published)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat resolution warnings as errors")
	return cmd
}
