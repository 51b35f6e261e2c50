package shard

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ring is a hand-rolled consistent-hash ring keyed on xxhash. No
// suitable consistent-hashing library was found anywhere in the
// retrieval pack (buraksezer/consistent, serialx/hashring and
// lafikl/consistent were all absent), so the ring itself is
// implemented directly here, using xxhash/v2 — already pulled in for
// cache fingerprinting — as its hash primitive.
type ring struct {
	virtualNodes int
	hashes       []uint64
	owners       map[uint64]string
}

func newRing(virtualNodes int) *ring {
	return &ring{
		virtualNodes: virtualNodes,
		owners:       make(map[uint64]string),
	}
}

// add places virtualNodes points for shardID on the ring.
func (r *ring) add(shardID string) {
	for i := 0; i < r.virtualNodes; i++ {
		h := hashVirtualNode(shardID, i)
		r.owners[h] = shardID
		r.hashes = append(r.hashes, h)
	}

	sort.Slice(r.hashes, func(i, j int) bool { return r.hashes[i] < r.hashes[j] })
}

// remove drops all virtual nodes owned by shardID.
func (r *ring) remove(shardID string) {
	filtered := r.hashes[:0]

	for _, h := range r.hashes {
		if r.owners[h] == shardID {
			delete(r.owners, h)

			continue
		}

		filtered = append(filtered, h)
	}

	r.hashes = filtered
}

// owner returns the shard ID owning the point on the ring clockwise
// from key's hash.
func (r *ring) owner(key string) (string, bool) {
	if len(r.hashes) == 0 {
		return "", false
	}

	h := xxhash.Sum64String(key)

	idx := sort.Search(len(r.hashes), func(i int) bool { return r.hashes[i] >= h })
	if idx == len(r.hashes) {
		idx = 0
	}

	return r.owners[r.hashes[idx]], true
}

func hashVirtualNode(shardID string, idx int) uint64 {
	return xxhash.Sum64String(shardID + "#" + strconv.Itoa(idx))
}
