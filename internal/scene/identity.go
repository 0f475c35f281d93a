package scene

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// DeriveIdentity creates a deterministic identity key for a node that
// carries none in the snapshot. The key is stable across reloads of the
// same snapshot because it hashes the node's position, not its pointer.
func DeriveIdentity(path string, ordinal int) string {
	// Build a canonical string representation
	parts := []string{
		"path:" + path,
		fmt.Sprintf("ord:%d", ordinal),
	}

	// Sort to ensure deterministic ordering
	sort.Strings(parts)

	// Join and hash
	canonical := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:])
}
