// Package fileid derives deterministic account IDs from the dump file they were loaded from.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
)

const prefix = "dump:"

// FileID returns a stable ID for the given absolute path. Same path always yields the same ID.
func FileID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:16])
}

// RecordID identifies the n-th record of a dump file, so reloading a file overwrites the
// accounts it produced earlier instead of duplicating them.
func RecordID(absolutePath string, n int) string {
	return FileID(absolutePath) + ":" + strconv.Itoa(n)
}
