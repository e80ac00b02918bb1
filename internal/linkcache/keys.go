package linkcache

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/textnorm"
)

// ActionLinkKey is the action-link tier key: the normalized option,
// vertical and language, base64url-encoded so the key is stable and
// reversible for debugging.
func ActionLinkKey(option, vertical, language string) string {
	raw := strings.Join([]string{
		textnorm.Fold(option),
		strings.ToLower(strings.TrimSpace(vertical)),
		strings.ToLower(strings.TrimSpace(language)),
	}, "|")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// SearchKey is the search tier key: a digest of the normalized query and vertical.
func SearchKey(query, vertical string) string {
	raw := textnorm.Fold(query) + "|" + strings.ToLower(strings.TrimSpace(vertical))
	return "q" + strconv.FormatUint(xxhash.Sum64String(raw), 16)
}
