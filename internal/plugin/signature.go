package plugin

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SignatureFile is the detached bundle signature, stored at the bundle root.
// It holds the base64 ed25519 signature of the bundle digest.
const SignatureFile = "SIGNATURE"

// BundleDigest computes a sha256 digest over every regular file in the
// bundle, in sorted relative-path order. The signature file itself is
// excluded. Path and content both feed the hash, so renames invalidate it.
func BundleDigest(dir string) ([]byte, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == SignatureFile {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, rel := range paths {
		io.WriteString(h, rel)
		h.Write([]byte{0})

		f, err := os.Open(filepath.Join(dir, rel))
		if err != nil {
			return nil, err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		h.Write([]byte{0})
	}
	return h.Sum(nil), nil
}

// SignBundle writes a signature file for the bundle. Used by packaging
// tooling and tests.
func SignBundle(dir string, key ed25519.PrivateKey) error {
	digest, err := BundleDigest(dir)
	if err != nil {
		return err
	}
	sig := ed25519.Sign(key, digest)
	encoded := base64.StdEncoding.EncodeToString(sig)
	return os.WriteFile(filepath.Join(dir, SignatureFile), []byte(encoded+"\n"), 0o644)
}

// VerifyBundle checks the bundle signature against the trusted keys.
// Returns ErrBadSignature when the signature file is missing, unreadable,
// or not produced by any trusted key.
func VerifyBundle(dir string, trusted []ed25519.PublicKey) error {
	raw, err := os.ReadFile(filepath.Join(dir, SignatureFile))
	if err != nil {
		return fmt.Errorf("%w: missing %s", ErrBadSignature, SignatureFile)
	}

	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}

	digest, err := BundleDigest(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	for _, key := range trusted {
		if ed25519.Verify(key, digest, sig) {
			return nil
		}
	}
	return fmt.Errorf("%w: no trusted key matches", ErrBadSignature)
}

// ParsePublicKey decodes a base64-encoded ed25519 public key.
func ParsePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
