// Package pack archives a build directory into a single distributable
// tar.zst file and computes content checksums over the archive bytes — the
// exact bytes that will be transmitted.
package pack

import (
	"archive/tar"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"dashpack/internal/blueprint"
)

// Package describes one built archive.
type Package struct {
	Path   string
	Size   int64
	MD5    string
	SHA256 string
}

// FileName derives the archive name from a blueprint's title and version.
func FileName(bp blueprint.Blueprint) string {
	return fmt.Sprintf("%s-%s.tar.zst", Slugify(bp.Title), bp.Version)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases the title and collapses anything outside [a-z0-9] into
// single dashes.
func Slugify(title string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "dashboard"
	}
	return slug
}

// Archive packs the entire artifact directory (no filtering) into destDir.
// Packaging is deterministic: entries are written in sorted path order with
// single-threaded compression, so repeated packaging of an unchanged
// directory yields byte-identical archives. A failure never leaves a
// partial archive on disk.
func Archive(ctx context.Context, artifactDir, destDir string, bp blueprint.Blueprint) (*Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(artifactDir)
	if err != nil {
		return nil, fmt.Errorf("stat artifact dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifact dir %q is not a directory", artifactDir)
	}

	entries, err := collectEntries(ctx, artifactDir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("artifact dir %q is empty", artifactDir)
	}

	output := filepath.Join(destDir, FileName(bp))
	pkg, err := writeArchive(ctx, output, artifactDir, entries)
	if err != nil {
		os.Remove(output)
		return nil, err
	}
	return pkg, nil
}

func collectEntries(ctx context.Context, root string) ([]string, error) {
	var entries []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %q: %w", path, err)
		}
		entries = append(entries, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)
	return entries, nil
}

func writeArchive(ctx context.Context, output, artifactDir string, entries []string) (*Package, error) {
	file, err := os.Create(output)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	md5Hash := md5.New()
	shaHash := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(file, md5Hash, shaHash)}

	encoder, err := zstd.NewWriter(counter, zstd.WithEncoderConcurrency(1))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(encoder)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			closeAll(tw, encoder, file)
			return nil, err
		}
		if err := writeEntry(tw, artifactDir, entry); err != nil {
			closeAll(tw, encoder, file)
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		encoder.Close()
		file.Close()
		return nil, fmt.Errorf("close tar writer: %w", err)
	}
	if err := encoder.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("close zstd writer: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	return &Package{
		Path:   output,
		Size:   counter.n,
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA256: hex.EncodeToString(shaHash.Sum(nil)),
	}, nil
}

func writeEntry(tw *tar.Writer, artifactDir, entry string) error {
	fullPath := filepath.Join(artifactDir, filepath.FromSlash(entry))
	info, err := os.Stat(fullPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", entry, err)
	}

	header := &tar.Header{
		Name:     entry,
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header for %q: %w", entry, err)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", entry, err)
	}
	defer file.Close()
	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("copy %q: %w", entry, err)
	}
	return nil
}

func closeAll(tw *tar.Writer, encoder *zstd.Encoder, file *os.File) {
	tw.Close()
	encoder.Close()
	file.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Checksums returns the md5/sha256 set in the registry metadata shape.
func (p *Package) Checksums() map[string]string {
	return map[string]string{
		"md5":    p.MD5,
		"sha256": p.SHA256,
	}
}
