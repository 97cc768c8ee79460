package sync

import (
	"encoding/binary"
	"strconv"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over the partitions [0, count). Each
// partition owns replicas points on the ring, keyed by murmur3 hashes.
type ring struct {
	points *treemap.Map

	// first is the partition owning the lowest point, which also owns every
	// hash past the highest point.
	first int
}

func newRing(prefix string, count int, replicas uint) *ring {
	points := treemap.NewWith(utils.Int64Comparator)

	var seed [12]byte
	for partition := 0; partition < count; partition++ {
		base, _ := murmur3.Sum128([]byte(prefix + strconv.Itoa(partition)))
		binary.LittleEndian.PutUint64(seed[:8], base)

		for replica := uint32(0); replica < uint32(replicas); replica++ {
			binary.LittleEndian.PutUint32(seed[8:], replica)
			point, _ := murmur3.Sum128(seed[:])
			points.Put(int64(point), partition)
		}
	}

	r := &ring{points: points}
	if _, partition := points.Min(); partition != nil {
		r.first = partition.(int)
	}
	return r
}

// shard returns the partition owning key.
func (r *ring) shard(key []byte) int {
	hash, _ := murmur3.Sum128(key)
	if _, partition := r.points.Ceiling(int64(hash)); partition != nil {
		return partition.(int)
	}
	return r.first
}
