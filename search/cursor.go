package search

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/cratedoc"
)

// Fingerprint identifies a query against one build of an index. The page
// size is not part of it, so callers may change limits between pages.
func Fingerprint(q cratedoc.SearchQuery, docHash string) string {
	parts := []string{
		docHash, string(q.Mode), q.Pattern, q.Kind, q.PathPrefix,
		strconv.FormatBool(q.Preview), strconv.Itoa(q.FuzzyDistance),
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(parts, "\x00")))
}

// EncodeCursor returns an opaque cursor resuming at offset.
func EncodeCursor(offset int, fingerprint string) string {
	raw := strconv.Itoa(offset) + ":" + fingerprint
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor returns the offset stored in cursor. An empty cursor is
// offset zero. Returns EINVALID when the cursor is malformed or was
// issued for a different query or index build.
func DecodeCursor(cursor, fingerprint string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, cratedoc.Errorf(cratedoc.EINVALID, "malformed cursor")
	}
	offsetStr, fp, ok := strings.Cut(string(raw), ":")
	if !ok {
		return 0, cratedoc.Errorf(cratedoc.EINVALID, "malformed cursor")
	}
	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		return 0, cratedoc.Errorf(cratedoc.EINVALID, "malformed cursor")
	}
	if fp != fingerprint {
		return 0, cratedoc.Errorf(cratedoc.EINVALID, "cursor does not belong to this query or the index was rebuilt; repeat the search without a cursor")
	}
	return offset, nil
}
