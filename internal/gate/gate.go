// Package gate runs the pre-publish checks over a built artifact
// directory. Every check runs to completion even after one fails, so a
// single invocation reports every problem at once.
package gate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unicode/utf8"

	"dashpack/internal/blueprint"
	"dashpack/internal/build"
	"dashpack/internal/sign"
)

// Default artifact size ceilings.
const (
	DefaultHardSizeLimit = 50 << 20 // blocking
	DefaultSoftSizeLimit = 10 << 20 // advisory
)

// Options tunes the gate. Zero values take the defaults; limits are
// injectable so ceiling behavior is testable without multi-megabyte
// fixtures.
type Options struct {
	HardSizeLimit int64
	SoftSizeLimit int64
}

// Report is the gate verdict. Publish may proceed only when Errors is
// empty; Warnings inform but never block.
type Report struct {
	Errors   []string
	Warnings []string
}

// Passed reports whether the artifact may be published.
func (r Report) Passed() bool {
	return len(r.Errors) == 0
}

// Check runs every gate check over the artifact directory. The checks are
// independent and run concurrently; the report is only returned once all of
// them have finished.
func Check(ctx context.Context, dir string, bp blueprint.Blueprint, opts Options) Report {
	if opts.HardSizeLimit == 0 {
		opts.HardSizeLimit = DefaultHardSizeLimit
	}
	if opts.SoftSizeLimit == 0 {
		opts.SoftSizeLimit = DefaultSoftSizeLimit
	}

	var (
		mu     sync.Mutex
		report Report
	)
	addError := func(msg string) {
		mu.Lock()
		report.Errors = append(report.Errors, msg)
		mu.Unlock()
	}
	addWarning := func(msg string) {
		mu.Lock()
		report.Warnings = append(report.Warnings, msg)
		mu.Unlock()
	}

	checks := []func(){
		func() { checkRequiredFiles(dir, addError) },
		func() { checkTitle(bp, addError) },
		func() { checkCharts(bp, addError) },
		func() { checkDescription(bp, addWarning) },
		func() { checkAuthor(bp, addWarning) },
		func() { checkPluginDeclarations(bp, addWarning) },
		func() { checkSize(dir, opts, addError, addWarning) },
	}

	var wg sync.WaitGroup
	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(run func()) {
			defer wg.Done()
			run()
		}(check)
	}
	wg.Wait()

	sortReport(&report)
	return report
}

func checkRequiredFiles(dir string, addError func(string)) {
	if !fileExists(filepath.Join(dir, build.ManifestFileName)) {
		addError(fmt.Sprintf("missing required file %s", build.ManifestFileName))
	}
	if !fileExists(filepath.Join(dir, sign.FileName)) {
		addError(fmt.Sprintf("missing required file %s: unsigned builds cannot be published", sign.FileName))
	}
	hasEntry := false
	for _, name := range []string{build.EntryWebFileName, build.EntryDesktopFileName} {
		if fileExists(filepath.Join(dir, name)) {
			hasEntry = true
			break
		}
	}
	if !hasEntry {
		addError("missing rendered entry point (entry-web.html or entry-desktop.json)")
	}
}

func checkTitle(bp blueprint.Blueprint, addError func(string)) {
	if utf8.RuneCountInString(bp.Title) < 3 {
		addError(fmt.Sprintf("title %q is shorter than 3 characters", bp.Title))
	}
}

func checkCharts(bp blueprint.Blueprint, addError func(string)) {
	if len(bp.Charts) == 0 {
		addError("Dashboard must contain at least one chart")
	}
}

func checkDescription(bp blueprint.Blueprint, addWarning func(string)) {
	if bp.Description == "" {
		addWarning("description is empty; marketplace listings without one rank poorly")
	}
}

func checkAuthor(bp blueprint.Blueprint, addWarning func(string)) {
	if bp.Author == "" {
		addWarning("author is not set")
	}
}

func checkPluginDeclarations(bp blueprint.Blueprint, addWarning func(string)) {
	if len(bp.Plugins) > 0 {
		return
	}
	for _, chart := range bp.Charts {
		if chart.IsPluginType() {
			addWarning(fmt.Sprintf(
				"chart %q uses plugin type %q but the blueprint declares no plugins", chart.ID, chart.Type))
			return
		}
	}
}

func checkSize(dir string, opts Options, addError, addWarning func(string)) {
	size, err := dirSize(dir)
	if err != nil {
		addError(fmt.Sprintf("measure artifact size: %v", err))
		return
	}
	switch {
	case size > opts.HardSizeLimit:
		addError(fmt.Sprintf("artifact is %s, over the %s limit", formatSize(size), formatSize(opts.HardSizeLimit)))
	case size > opts.SoftSizeLimit:
		addWarning(fmt.Sprintf("artifact is %s, over the %s advisory ceiling", formatSize(size), formatSize(opts.SoftSizeLimit)))
	}
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// sortReport keeps the report order stable regardless of goroutine
// scheduling.
func sortReport(r *Report) {
	sort.Strings(r.Errors)
	sort.Strings(r.Warnings)
}
