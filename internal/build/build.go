// Package build sequences the blueprint pipeline: decode, validate, migrate
// when needed, resolve dependencies, emit the artifact directory, and sign
// it. Each invocation owns its output directory and holds no state across
// invocations.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"dashpack/internal/blueprint"
	"dashpack/internal/resolve"
	"dashpack/internal/sign"
)

// Valid build targets.
const (
	TargetDesktop = "desktop"
	TargetWeb     = "web"
	TargetBoth    = "both"
)

// Config configures one build invocation.
type Config struct {
	// BlueprintPath is the document to build. Document may be supplied
	// instead when the caller already decoded one.
	BlueprintPath string
	Document      map[string]any

	OutputDir     string
	Target        string
	Environment   string
	SkipPlugins   bool
	SkipSignature bool
	// Strict escalates resolution warnings into build-aborting errors.
	Strict bool

	// Signer is required unless SkipSignature is set.
	Signer *sign.Signer

	Now    func() time.Time
	Stdout io.Writer
}

// Result describes a completed build.
type Result struct {
	Blueprint  blueprint.Blueprint
	Resolution resolve.Resolution
	OutputDir  string
	Warnings   []string
	Migrated   bool
}

var tracer = otel.Tracer("dashpack/internal/build")

// Build runs the pipeline: validate → (migrate → validate) → resolve →
// emit → sign. On any validation or resolution failure no output directory
// is left behind.
func Build(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if cfg.BlueprintPath == "" && cfg.Document == nil {
		return nil, errors.New("blueprint path or document is required")
	}
	if cfg.Target == "" {
		cfg.Target = TargetWeb
	}
	if cfg.Target != TargetDesktop && cfg.Target != TargetWeb && cfg.Target != TargetBoth {
		return nil, fmt.Errorf("invalid target %q", cfg.Target)
	}
	if !cfg.SkipSignature && cfg.Signer == nil {
		return nil, errors.New("signer is required unless signature is skipped")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := cfg.Document
	if doc == nil {
		loaded, err := blueprint.Load(cfg.BlueprintPath)
		if err != nil {
			return nil, err
		}
		doc = loaded
	}

	result := &Result{OutputDir: cfg.OutputDir}

	if blueprint.IsLegacy(doc) {
		migrated, err := stage1(ctx, "build.migrate", func(context.Context) (map[string]any, error) {
			return blueprint.Migrate(doc)
		})
		if err != nil {
			return nil, err
		}
		doc = migrated
		result.Migrated = true
		fmt.Fprintf(cfg.Stdout, "migrated legacy document to schema %s\n", blueprint.CurrentVersion)
	}

	bp, err := stage1(ctx, "build.validate", func(context.Context) (blueprint.Blueprint, error) {
		validated, errs := blueprint.Validate(doc)
		if len(errs) > 0 {
			return blueprint.Blueprint{}, errs
		}
		return validated, nil
	})
	if err != nil {
		return nil, err
	}

	res, warnings, err := resolveStage(ctx, bp, cfg)
	if err != nil {
		return nil, err
	}
	result.Warnings = warnings

	if cfg.Environment != "" {
		applied, ok := bp.WithEnvironment(cfg.Environment)
		if !ok {
			return nil, fmt.Errorf("unknown environment %q", cfg.Environment)
		}
		bp = applied
	}

	bp.Plugins = res.Plugins
	bp.Connectors = res.Connectors
	if cfg.SkipPlugins {
		res.Plugins = nil
		bp.Plugins = nil
	}

	result.Blueprint = bp
	result.Resolution = res

	if err := emitStage(ctx, bp, res, cfg); err != nil {
		return nil, err
	}

	fmt.Fprintf(cfg.Stdout, "wrote build %s (%d charts, target %s)\n", cfg.OutputDir, len(bp.Charts), cfg.Target)
	return result, nil
}

func resolveStage(ctx context.Context, bp blueprint.Blueprint, cfg Config) (resolve.Resolution, []string, error) {
	_, span := tracer.Start(ctx, "build.resolve")
	defer span.End()

	res, warnings := resolve.Resolve(bp)
	if cfg.SkipPlugins {
		warnings = filterPluginWarnings(warnings)
	}
	if cfg.Strict && len(warnings) > 0 {
		// The abort must still carry the complete warning list, never just
		// the first one.
		return resolve.Resolution{}, nil, fmt.Errorf("resolution failed under strict mode: %s", strings.Join(warnings, "; "))
	}
	return res, warnings, nil
}

func filterPluginWarnings(warnings []string) []string {
	kept := warnings[:0:0]
	for _, w := range warnings {
		if strings.HasPrefix(w, "plugin ") {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}

func emitStage(ctx context.Context, bp blueprint.Blueprint, res resolve.Resolution, cfg Config) error {
	_, span := tracer.Start(ctx, "build.emit")
	defer span.End()

	if _, err := os.Stat(cfg.OutputDir); err == nil {
		return fmt.Errorf("output directory %q already exists", cfg.OutputDir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat output directory: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if err := emitArtifacts(bp, res, cfg); err != nil {
		// Clean as we go: a failed emission leaves nothing behind.
		os.RemoveAll(cfg.OutputDir)
		return err
	}
	return nil
}

// stage1 runs fn under a named trace span.
func stage1[T any](ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	spanCtx, span := tracer.Start(ctx, name)
	defer span.End()
	out, err := fn(spanCtx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}
