// Package publish uploads a built package to the remote registry under a
// named release channel, or simulates the upload in dry-run mode.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"dashpack/internal/blueprint"
	"dashpack/internal/pack"
)

// ObjectStore is the subset of the S3 client the publisher needs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Request describes one publish attempt.
type Request struct {
	Package      *pack.Package
	Blueprint    blueprint.Blueprint
	Channel      string
	ReleaseNotes string
	DryRun       bool
}

// Result is returned only on a real, successful upload.
type Result struct {
	PackageID      string `json:"packageId"`
	MarketplaceURL string `json:"marketplaceUrl"`
	Channel        string `json:"channel"`
}

// Publisher talks to the registry API and its backing object storage.
type Publisher struct {
	RegistryURL string
	HTTPClient  *http.Client
	Store       ObjectStore
	Stdout      io.Writer
}

// NewPublisher wires a Publisher with a retrying HTTP client.
func NewPublisher(registryURL string, store ObjectStore) *Publisher {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &Publisher{
		RegistryURL: strings.TrimRight(registryURL, "/"),
		HTTPClient:  client.StandardClient(),
		Store:       store,
		Stdout:      os.Stdout,
	}
}

// Publish validates the channel, registers the package with the registry,
// and uploads the archive bytes. In dry-run mode it performs no network
// call at all. The returned warnings carry channel advisories; the caller
// owns deleting the local package file after the attempt concludes.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, []string, error) {
	if req.Package == nil {
		return nil, nil, errors.New("package is required")
	}
	// Channel is checked before any I/O.
	if !blueprint.IsValidChannel(req.Channel) {
		return nil, nil, fmt.Errorf("invalid channel %q (expected stable, beta, alpha, or dev)", req.Channel)
	}

	var warnings []string
	if req.Channel != "stable" {
		warnings = append(warnings, fmt.Sprintf(
			"published to the %s channel; promote to stable when ready", req.Channel))
	}

	if req.DryRun {
		fmt.Fprintf(p.stdout(), "dry run: would publish %s (%d bytes, sha256 %s) to channel %s\n",
			req.Package.Path, req.Package.Size, req.Package.SHA256, req.Channel)
		return nil, warnings, nil
	}

	// Once the channel is accepted, its advisory travels with every outcome,
	// including failures.
	if p.RegistryURL == "" {
		return nil, warnings, errors.New("registry url is not configured")
	}
	if p.Store == nil {
		return nil, warnings, errors.New("object store is not configured")
	}

	reg, err := p.register(ctx, req)
	if err != nil {
		return nil, warnings, err
	}

	if err := p.upload(ctx, req, reg); err != nil {
		return nil, warnings, err
	}

	result := &Result{
		PackageID: reg.PackageID,
		Channel:   req.Channel,
	}
	if result.PackageID == "" {
		result.PackageID = uuid.NewString()
	}
	result.MarketplaceURL = reg.URL
	if result.MarketplaceURL == "" {
		presigned, err := p.Store.PresignGet(ctx, reg.S3.Bucket, reg.S3.Key, 24*time.Hour)
		if err != nil {
			return nil, warnings, fmt.Errorf("presign package url: %w", err)
		}
		result.MarketplaceURL = presigned
	}

	fmt.Fprintf(p.stdout(), "published %s to %s channel (%s)\n",
		pack.Slugify(req.Blueprint.Title), req.Channel, result.MarketplaceURL)
	return result, warnings, nil
}

type registration struct {
	PackageID string `json:"package_id"`
	URL       string `json:"url"`
	S3        struct {
		Bucket string `json:"bucket"`
		Key    string `json:"key"`
	} `json:"s3"`
}

func (p *Publisher) register(ctx context.Context, req Request) (*registration, error) {
	body := map[string]any{
		"name":     pack.Slugify(req.Blueprint.Title),
		"title":    req.Blueprint.Title,
		"version":  req.Blueprint.Version,
		"channel":  req.Channel,
		"metadata": map[string]any{"size": req.Package.Size, "checksums": req.Package.Checksums()},
	}
	if req.ReleaseNotes != "" {
		body["release_notes"] = req.ReleaseNotes
	}
	body["blueprint"] = req.Blueprint

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal registration request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.RegistryURL+"/v1/packages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create registration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("register package: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("registry rejected package: %s", strings.TrimSpace(string(data)))
	}

	var reg registration
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return nil, fmt.Errorf("decode registration response: %w", err)
	}
	if reg.S3.Bucket == "" || reg.S3.Key == "" {
		return nil, errors.New("registry response missing upload location")
	}
	return &reg, nil
}

func (p *Publisher) upload(ctx context.Context, req Request, reg *registration) error {
	file, err := os.Open(req.Package.Path)
	if err != nil {
		return fmt.Errorf("open package: %w", err)
	}
	defer file.Close()

	if err := p.Store.PutObject(ctx, reg.S3.Bucket, reg.S3.Key, file, req.Package.Size, req.Package.SHA256); err != nil {
		return fmt.Errorf("upload package: %w", err)
	}
	return nil
}

func (p *Publisher) stdout() io.Writer {
	if p.Stdout == nil {
		return os.Stdout
	}
	return p.Stdout
}
