package assessment

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const hashLength = 16

// ContentHash derives the stable identity of a finding from its
// descriptive fields. It is both the within-run dedup key and the
// cross-run history key: equal hashes are treated as the same issue.
// Lower-casing makes the identity survive cosmetic re-capitalization in
// collector output.
func ContentHash(resourceID, resourceName, findingText, category string) string {
	raw := strings.Join([]string{
		strings.ToLower(resourceID),
		strings.ToLower(resourceName),
		strings.ToLower(findingText),
		strings.ToLower(category),
	}, "|")

	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:hashLength]
}
