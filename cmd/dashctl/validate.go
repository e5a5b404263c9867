package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dashpack/internal/blueprint"
	"dashpack/internal/resolve"
)

func newValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <blueprint>",
		Short: "Validate a blueprint document without building it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := blueprint.Load(args[0])
			if err != nil {
				return err
			}

			migrated := false
			if blueprint.IsLegacy(doc) {
				upgraded, err := blueprint.Migrate(doc)
				if err != nil {
					return err
				}
				doc = upgraded
				migrated = true
			}

			bp, errs := blueprint.Validate(doc)
			if len(errs) > 0 {
				printProblems(errs.Messages(), nil)
				return fmt.Errorf("blueprint failed validation with %d problem(s)", len(errs))
			}

			_, warnings := resolve.Resolve(bp)
			printProblems(nil, warnings)
			if strict && len(warnings) > 0 {
				return fmt.Errorf("blueprint has %d warning(s) under strict mode", len(warnings))
			}

			if migrated {
				fmt.Printf("%s is valid after migration to schema %s\n", args[0], bp.Version)
			} else {
				fmt.Printf("%s is valid (%d charts)\n", args[0], len(bp.Charts))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")
	return cmd
}
