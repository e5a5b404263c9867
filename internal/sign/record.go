package sign

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the signature record written alongside the manifest.
const FileName = "signature.json"

// Algorithm identifies the only signature scheme this pipeline produces.
const Algorithm = "ed25519"

// Record is the signing record stored in an artifact directory. The
// signature covers the canonical payload (manifest plus dependency lists),
// never arbitrary files, so it is stable across irrelevant filesystem
// metadata.
type Record struct {
	Algorithm     string    `json:"algorithm"`
	Signer        string    `json:"signer,omitempty"`
	PublicKey     string    `json:"publicKey"`
	Signature     string    `json:"signature"`
	PayloadSHA256 string    `json:"payloadSha256"`
	SignedAt      time.Time `json:"signedAt"`
}

// Payload builds the canonical byte representation signed for an artifact:
// the manifest bytes followed by the dependency-list bytes, newline
// separated.
func Payload(manifest, dependencies []byte) []byte {
	payload := make([]byte, 0, len(manifest)+len(dependencies)+1)
	payload = append(payload, manifest...)
	payload = append(payload, '\n')
	payload = append(payload, dependencies...)
	return payload
}

// NewRecord signs the payload and returns the completed record.
func NewRecord(s *Signer, payload []byte, now time.Time) (*Record, error) {
	if s == nil {
		return nil, errors.New("nil signer")
	}
	sig, err := s.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}
	digest := sha256.Sum256(payload)
	return &Record{
		Algorithm:     Algorithm,
		Signer:        s.Recipient(),
		PublicKey:     s.PublicKeyBase64(),
		Signature:     sig,
		PayloadSHA256: hex.EncodeToString(digest[:]),
		SignedAt:      now.UTC().Truncate(time.Second),
	}, nil
}

// WriteFile persists the record as signature.json inside dir.
func (r *Record) WriteFile(dir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal signature record: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", FileName, err)
	}
	return nil
}

// ReadRecord loads the signature record from dir.
func ReadRecord(dir string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", FileName, err)
	}
	return &record, nil
}

// VerifyDetached checks a record against its payload using only the public
// key embedded in the record, for callers that hold no key material of
// their own.
func VerifyDetached(r *Record, payload []byte) error {
	return (&Signer{}).VerifyRecord(r, payload)
}

// VerifyRecord checks a record against the payload it claims to cover.
func (s *Signer) VerifyRecord(r *Record, payload []byte) error {
	if r == nil {
		return errors.New("nil signature record")
	}
	if r.Algorithm != Algorithm {
		return fmt.Errorf("unsupported signature algorithm %q", r.Algorithm)
	}
	digest := sha256.Sum256(payload)
	if got := hex.EncodeToString(digest[:]); got != r.PayloadSHA256 {
		return fmt.Errorf("payload digest mismatch: record %s, computed %s", r.PayloadSHA256, got)
	}
	return s.Verify(payload, r.Signature, r.PublicKey)
}
