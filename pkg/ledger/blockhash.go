package ledger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/code-payments/token-escrow/pkg/solana"
)

// DefaultMaxBlockhashAge is the number of most recent blockhashes a
// transaction may reference.
const DefaultMaxBlockhashAge = 300

// blockhashQueue issues one blockhash per slot and remembers the signatures
// processed under each of the last maxAge of them. Signatures are dropped
// together with the blockhash they were processed under, since a transaction
// referencing an expired blockhash is rejected regardless.
//
// Blockhashes are derived from a seed drawn at construction, so transactions
// signed against a previous bank instance are never accepted again.
type blockhashQueue struct {
	mu sync.Mutex

	seed   [32]byte
	maxAge int

	// solana.Blockhash -> map[solana.Signature]struct{}, oldest first
	entries *linkedhashmap.Map
	latest  solana.Blockhash
}

func newBlockhashQueue(maxAge int) *blockhashQueue {
	q := &blockhashQueue{
		maxAge:  maxAge,
		entries: linkedhashmap.New(),
	}

	if _, err := rand.Read(q.seed[:]); err != nil {
		panic(err)
	}

	return q
}

// register issues the blockhash of slot, expiring the oldest blockhash once
// the queue is full.
func (q *blockhashQueue) register(slot uint64) solana.Blockhash {
	var encodedSlot [8]byte
	binary.LittleEndian.PutUint64(encodedSlot[:], slot)

	h := sha256.New()
	h.Write(q.seed[:])
	h.Write(encodedSlot[:])

	var blockhash solana.Blockhash
	copy(blockhash[:], h.Sum(nil))

	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries.Put(blockhash, make(map[solana.Signature]struct{}))
	q.latest = blockhash

	for q.entries.Size() > q.maxAge {
		it := q.entries.Iterator()
		if !it.First() {
			break
		}
		q.entries.Remove(it.Key())
	}

	return blockhash
}

func (q *blockhashQueue) recent() solana.Blockhash {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.latest
}

// check reports whether blockhash is live, and if so whether signature was
// already processed under it.
func (q *blockhashQueue) check(blockhash solana.Blockhash, signature solana.Signature) (live, duplicate bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	signatures, ok := q.entries.Get(blockhash)
	if !ok {
		return false, false
	}

	_, duplicate = signatures.(map[solana.Signature]struct{})[signature]
	return true, duplicate
}

// save records signature under blockhash. It is a no-op if the blockhash
// expired in the meantime.
func (q *blockhashQueue) save(blockhash solana.Blockhash, signature solana.Signature) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if signatures, ok := q.entries.Get(blockhash); ok {
		signatures.(map[solana.Signature]struct{})[signature] = struct{}{}
	}
}
