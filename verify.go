package modelfetch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// verifyBlockSize is the read size used when streaming a file through the
// digest. Files are never loaded into memory whole.
const verifyBlockSize = 64 * 1024

// verifyFile streams the file at path through SHA-256 and compares the hex
// digest against expectedHash, which must be lowercase hex. An empty
// expectedHash is vacuously valid: absent hashes mean the transport is
// trusted. Returns ErrHashMismatch when the digests differ.
func verifyFile(path, expectedHash string) error {
	if expectedHash == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s for verification: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, verifyBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return fmt.Errorf("reading %s for verification: %w", path, err)
	}

	if hex.EncodeToString(h.Sum(nil)) != expectedHash {
		return ErrHashMismatch
	}
	return nil
}
