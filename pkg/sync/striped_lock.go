package sync

import (
	"sort"
	"sync"
)

const (
	hashEntriesPerLock = 200
)

// StripedLock guards an unbounded key space with a fixed number of RWMutexes.
type StripedLock struct {
	locks    []sync.RWMutex
	hashRing *ring
}

func NewStripedLock(stripes uint) *StripedLock {
	return &StripedLock{
		locks:    make([]sync.RWMutex, stripes),
		hashRing: newRing("lock", int(stripes), hashEntriesPerLock),
	}
}

// Acquire locks every stripe covering the provided keys and returns a function
// that releases them. Stripes holding any write key are write locked, the rest
// are read locked. Stripes are always taken in index order, so concurrent
// callers with overlapping key sets cannot deadlock.
func (l *StripedLock) Acquire(writeKeys, readKeys [][]byte) (release func()) {
	exclusive := make(map[int]bool)
	for _, key := range readKeys {
		exclusive[l.hashRing.shard(key)] = false
	}
	for _, key := range writeKeys {
		exclusive[l.hashRing.shard(key)] = true
	}

	stripes := make([]int, 0, len(exclusive))
	for stripe := range exclusive {
		stripes = append(stripes, stripe)
	}
	sort.Ints(stripes)

	for _, stripe := range stripes {
		if exclusive[stripe] {
			l.locks[stripe].Lock()
		} else {
			l.locks[stripe].RLock()
		}
	}

	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			stripe := stripes[i]
			if exclusive[stripe] {
				l.locks[stripe].Unlock()
			} else {
				l.locks[stripe].RUnlock()
			}
		}
	}
}
