package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/hyp3rd/dbplane/internal/value"
)

// Fingerprint computes a stable cache key for a query + its bound
// parameters, using xxhash/v2 (already pulled in for shard hashing) as
// the digest so the key space stays small and collision-resistant
// without pulling in a second hash library.
func Fingerprint(query string, params value.ParamList) string {
	var b strings.Builder

	b.WriteString(query)
	b.WriteByte(0)

	for _, p := range params {
		b.WriteString(p.Kind.String())
		b.WriteByte(':')
		b.WriteString(p.String())
		b.WriteByte(0)
	}

	sum := xxhash.Sum64String(b.String())

	return strconv.FormatUint(sum, 16)
}
