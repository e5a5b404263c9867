// Package sign computes and verifies integrity signatures over build
// output. Keys are age X25519 identities whose seed doubles as an Ed25519
// seed, so operators manage a single key pair for encryption and signing.
package sign

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/btcsuite/btcutil/bech32"
)

const (
	envAgeSecretKey = "AGE_SECRET_KEY"
	envAgePublicKey = "AGE_PUBLIC_KEY"
)

// Signer signs and verifies signature payloads using an age-derived Ed25519
// key pair.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	recipient  string
}

// NewSignerFromEnv initialises a Signer from AGE_SECRET_KEY/AGE_PUBLIC_KEY.
// At least one must be set; a Signer built from only the public key can
// verify but not sign.
func NewSignerFromEnv() (*Signer, error) {
	secret := strings.TrimSpace(os.Getenv(envAgeSecretKey))
	pub := strings.TrimSpace(os.Getenv(envAgePublicKey))

	if secret == "" && pub == "" {
		return nil, fmt.Errorf("%s or %s must be set", envAgeSecretKey, envAgePublicKey)
	}
	if secret != "" {
		signer, err := NewSignerFromKey(secret)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", envAgeSecretKey, err)
		}
		if pub != "" {
			decoded, err := decodePublicKey(pub)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", envAgePublicKey, err)
			}
			if !bytes.Equal(signer.publicKey, decoded) {
				return nil, errors.New("AGE_PUBLIC_KEY does not match AGE_SECRET_KEY")
			}
		}
		return signer, nil
	}

	decoded, err := decodePublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", envAgePublicKey, err)
	}
	return &Signer{publicKey: decoded}, nil
}

// NewSignerFromKey initialises a Signer from an age secret key string
// (AGE-SECRET-KEY-1...).
func NewSignerFromKey(secret string) (*Signer, error) {
	seed, err := decodeAgeSecretKey(strings.TrimSpace(secret))
	if err != nil {
		return nil, err
	}
	privateKey := ed25519.NewKeyFromSeed(seed)

	recipient := ""
	if identity, err := age.ParseX25519Identity(strings.TrimSpace(secret)); err == nil {
		if r := identity.Recipient(); r != nil {
			recipient = r.String()
		}
	}

	return &Signer{
		privateKey: privateKey,
		publicKey:  ed25519.PublicKey(privateKey[ed25519.SeedSize:]),
		recipient:  recipient,
	}, nil
}

// Sign produces a base64-encoded Ed25519 signature for the payload.
func (s *Signer) Sign(payload []byte) (string, error) {
	if s == nil {
		return "", errors.New("nil signer")
	}
	if len(s.privateKey) == 0 {
		return "", errors.New("signer configured without private key")
	}
	sig := ed25519.Sign(s.privateKey, payload)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks the base64 signature against the payload. recordPublicKey,
// if non-empty, is the key embedded in the signature record; it must match
// the configured key when both are present.
func (s *Signer) Verify(payload []byte, signature, recordPublicKey string) error {
	if s == nil {
		return errors.New("nil signer")
	}
	sigBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(sigBytes) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature length %d", len(sigBytes))
	}

	key := s.publicKey
	if recordPublicKey != "" {
		decoded, err := decodePublicKey(recordPublicKey)
		if err != nil {
			return fmt.Errorf("decode record public key: %w", err)
		}
		if key != nil && !bytes.Equal(key, decoded) {
			return errors.New("artifact signed by unexpected key")
		}
		if key == nil {
			key = decoded
		}
	}

	if key == nil {
		return errors.New("no public key available for verification")
	}
	if !ed25519.Verify(key, payload, sigBytes) {
		return errors.New("signature verification failed")
	}
	return nil
}

// PublicKeyBase64 returns the configured Ed25519 public key in base64 form.
func (s *Signer) PublicKeyBase64() string {
	if s == nil || len(s.publicKey) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(s.publicKey)
}

// Recipient returns the age recipient string when the Signer holds the
// secret key.
func (s *Signer) Recipient() string {
	if s == nil {
		return ""
	}
	return s.recipient
}

func decodePublicKey(encoded string) (ed25519.PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if l := len(decoded); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must decode to %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return ed25519.PublicKey(decoded), nil
}

func decodeAgeSecretKey(raw string) ([]byte, error) {
	hrp, data, err := bech32.Decode(raw)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(hrp, "age-secret-key-") {
		return nil, fmt.Errorf("unexpected hrp %q", hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.SeedSize {
		return nil, fmt.Errorf("unexpected seed length %d", len(decoded))
	}
	return decoded, nil
}
