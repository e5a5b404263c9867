package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dashpack/internal/blueprint"
	"dashpack/internal/resolve"
	"dashpack/internal/sign"
	"dashpack/pkg/render"
)

// Artifact directory layout.
const (
	ManifestFileName     = "manifest.json"
	DependenciesFileName = "dependencies.json"
	EntryWebFileName     = "entry-web.html"
	EntryDesktopFileName = "entry-desktop.json"
)

// EntryFileNames returns the entry artifacts a target requires.
func EntryFileNames(target string) []string {
	switch target {
	case TargetDesktop:
		return []string{EntryDesktopFileName}
	case TargetBoth:
		return []string{EntryWebFileName, EntryDesktopFileName}
	default:
		return []string{EntryWebFileName}
	}
}

var (
	rendererOnce sync.Once
	renderer     *render.Engine
	rendererErr  error
)

func getRenderer() (*render.Engine, error) {
	rendererOnce.Do(func() {
		renderer, rendererErr = render.New()
	})
	return renderer, rendererErr
}

type entryData struct {
	Title       string
	Theme       string
	Environment string
	Version     string
	Variables   map[string]string
}

func emitArtifacts(bp blueprint.Blueprint, res resolve.Resolution, cfg Config) error {
	manifestBytes, err := marshalIndented(bp)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeFile(cfg.OutputDir, ManifestFileName, manifestBytes); err != nil {
		return err
	}

	depsBytes, err := marshalIndented(res)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	if err := writeFile(cfg.OutputDir, DependenciesFileName, depsBytes); err != nil {
		return err
	}

	engine, err := getRenderer()
	if err != nil {
		return err
	}
	data := entryData{
		Title:       bp.Title,
		Theme:       bp.Settings.Theme,
		Environment: cfg.Environment,
		Version:     bp.Version,
		Variables:   bp.Variables,
	}
	for _, name := range EntryFileNames(cfg.Target) {
		rendered, err := engine.Render(name+".tmpl", data)
		if err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := writeFile(cfg.OutputDir, name, []byte(rendered)); err != nil {
			return err
		}
	}

	if cfg.SkipSignature {
		return nil
	}

	payload := sign.Payload(manifestBytes, depsBytes)
	record, err := sign.NewRecord(cfg.Signer, payload, cfg.Now())
	if err != nil {
		return err
	}
	return record.WriteFile(cfg.OutputDir)
}

// SignaturePayload reconstructs the canonical signing payload from an
// artifact directory, for verification before publishing.
func SignaturePayload(dir string) ([]byte, error) {
	manifest, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ManifestFileName, err)
	}
	deps, err := os.ReadFile(filepath.Join(dir, DependenciesFileName))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", DependenciesFileName, err)
	}
	return sign.Payload(manifest, deps), nil
}

// LoadManifest reads the finalized Blueprint back out of a build directory.
func LoadManifest(dir string) (blueprint.Blueprint, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("read %s: %w", ManifestFileName, err)
	}
	var bp blueprint.Blueprint
	if err := json.Unmarshal(data, &bp); err != nil {
		return blueprint.Blueprint{}, fmt.Errorf("unmarshal %s: %w", ManifestFileName, err)
	}
	return bp, nil
}

func marshalIndented(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func writeFile(dir, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
