package gate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dashpack/internal/blueprint"
	"dashpack/internal/build"
	"dashpack/internal/sign"
)

func artifactDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func completeArtifactDir(t *testing.T) string {
	t.Helper()
	return artifactDir(t, build.ManifestFileName, build.DependenciesFileName, build.EntryWebFileName, sign.FileName)
}

func publishableBlueprint() blueprint.Blueprint {
	return blueprint.Blueprint{
		Version:     blueprint.CurrentVersion,
		Title:       "Regional Sales",
		Description: "Quarterly revenue by region",
		Author:      "analytics",
		Charts: []blueprint.Chart{
			{ID: "revenue", Type: "bar"},
		},
	}
}

func TestCheckPasses(t *testing.T) {
	report := Check(context.Background(), completeArtifactDir(t), publishableBlueprint(), Options{})
	if !report.Passed() {
		t.Fatalf("expected pass, got errors %v", report.Errors)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", report.Warnings)
	}
}

func TestCheckTitleCountsRunes(t *testing.T) {
	tests := []struct {
		title   string
		wantErr bool
	}{
		{"日本経済", false}, // 4 runes
		{"日本", true},   // 2 runes, 6 bytes
		{"ab", true},
		{"abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			bp := publishableBlueprint()
			bp.Title = tt.title
			report := Check(context.Background(), completeArtifactDir(t), bp, Options{})

			found := false
			for _, e := range report.Errors {
				if strings.Contains(e, "shorter than 3 characters") {
					found = true
				}
			}
			if found != tt.wantErr {
				t.Fatalf("title %q: error = %v, want %v (%v)", tt.title, found, tt.wantErr, report.Errors)
			}
		})
	}
}

func TestCheckMissingSignatureBlocks(t *testing.T) {
	dir := artifactDir(t, build.ManifestFileName, build.EntryWebFileName)
	report := Check(context.Background(), dir, publishableBlueprint(), Options{})
	if report.Passed() {
		t.Fatal("unsigned artifact should not pass")
	}
	found := false
	for _, e := range report.Errors {
		if strings.Contains(e, sign.FileName) && strings.Contains(e, "unsigned builds cannot be published") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected signature error, got %v", report.Errors)
	}
}

func TestCheckMissingEntryPoint(t *testing.T) {
	dir := artifactDir(t, build.ManifestFileName, sign.FileName)
	report := Check(context.Background(), dir, publishableBlueprint(), Options{})
	found := false
	for _, e := range report.Errors {
		if strings.Contains(e, "entry point") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected entry point error, got %v", report.Errors)
	}
}

func TestCheckReportsEveryProblem(t *testing.T) {
	dir := artifactDir(t, build.EntryWebFileName)
	bp := blueprint.Blueprint{Title: "ab"}

	report := Check(context.Background(), dir, bp, Options{})
	// manifest, signature, short title, zero charts
	if len(report.Errors) < 4 {
		t.Fatalf("expected at least 4 errors, got %v", report.Errors)
	}
	// empty description and author
	if len(report.Warnings) < 2 {
		t.Fatalf("expected at least 2 warnings, got %v", report.Warnings)
	}
}

func TestCheckUndeclaredPluginWarns(t *testing.T) {
	bp := publishableBlueprint()
	bp.Charts = append(bp.Charts, blueprint.Chart{ID: "flow", Type: "plugin:sankey"})

	report := Check(context.Background(), completeArtifactDir(t), bp, Options{})
	if !report.Passed() {
		t.Fatalf("undeclared plugin must warn, not block: %v", report.Errors)
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "plugin") && strings.Contains(w, "flow") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected plugin warning, got %v", report.Warnings)
	}
}

func TestCheckDeclaredPluginDoesNotWarn(t *testing.T) {
	bp := publishableBlueprint()
	bp.Charts = append(bp.Charts, blueprint.Chart{ID: "flow", Type: "plugin:sankey"})
	bp.Plugins = []blueprint.PluginRef{{Name: "sankey", Version: "1.0.0"}}

	report := Check(context.Background(), completeArtifactDir(t), bp, Options{})
	for _, w := range report.Warnings {
		if strings.Contains(w, "plugin") {
			t.Fatalf("declared plugin should not warn: %v", report.Warnings)
		}
	}
}

func TestCheckSizeLimits(t *testing.T) {
	tests := []struct {
		name        string
		opts        Options
		wantError   bool
		wantWarning bool
	}{
		{"under both limits", Options{HardSizeLimit: 1 << 20, SoftSizeLimit: 1 << 19}, false, false},
		{"over soft limit", Options{HardSizeLimit: 1 << 20, SoftSizeLimit: 4}, false, true},
		{"over hard limit", Options{HardSizeLimit: 4, SoftSizeLimit: 2}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Check(context.Background(), completeArtifactDir(t), publishableBlueprint(), tt.opts)
			hasSizeError := false
			for _, e := range report.Errors {
				if strings.Contains(e, "over the") {
					hasSizeError = true
				}
			}
			hasSizeWarning := false
			for _, w := range report.Warnings {
				if strings.Contains(w, "advisory ceiling") {
					hasSizeWarning = true
				}
			}
			if hasSizeError != tt.wantError {
				t.Fatalf("size error = %v, want %v (%v)", hasSizeError, tt.wantError, report.Errors)
			}
			if hasSizeWarning != tt.wantWarning {
				t.Fatalf("size warning = %v, want %v (%v)", hasSizeWarning, tt.wantWarning, report.Warnings)
			}
		})
	}
}

func TestCheckStableOrder(t *testing.T) {
	dir := artifactDir(t, build.EntryWebFileName)
	bp := blueprint.Blueprint{Title: "x"}

	first := Check(context.Background(), dir, bp, Options{})
	for i := 0; i < 5; i++ {
		next := Check(context.Background(), dir, bp, Options{})
		if len(next.Errors) != len(first.Errors) {
			t.Fatalf("error count changed between runs")
		}
		for j := range next.Errors {
			if next.Errors[j] != first.Errors[j] {
				t.Fatalf("report order unstable: %v vs %v", first.Errors, next.Errors)
			}
		}
	}
}
