package memory

import (
	"context"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	"github.com/code-payments/token-escrow/pkg/database/query"
)

type store struct {
	mu sync.Mutex

	// Records ordered by id, which is the paging key.
	byId      *treemap.Map
	byAddress map[string]*escrow.Record
	last      uint64
}

// New returns a new in memory escrow.Store
func New() escrow.Store {
	s := &store{}
	s.reset()
	return s
}

// Save implements escrow.Store.Save
func (s *store) Save(_ context.Context, data *escrow.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byAddress[data.Address]
	if !ok {
		s.last++
		data.Id = s.last
		data.LastUpdatedAt = time.Now()

		stored := data.Clone()
		s.byId.Put(stored.Id, stored)
		s.byAddress[stored.Address] = stored
		return nil
	}

	if data.Slot <= existing.Slot {
		return escrow.ErrStaleEscrowState
	}

	// Only the mutable portion of the escrow is updated. The deposited amount
	// never decreases.
	existing.Amount = data.Amount
	if data.DepositedAmount > existing.DepositedAmount {
		existing.DepositedAmount = data.DepositedAmount
	}
	existing.State = data.State
	existing.Slot = data.Slot
	existing.LastUpdatedAt = time.Now()

	existing.CopyTo(data)
	return nil
}

// GetByAddress implements escrow.Store.GetByAddress
func (s *store) GetByAddress(_ context.Context, address string) (*escrow.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byAddress[address]
	if !ok {
		return nil, escrow.ErrEscrowNotFound
	}
	return record.Clone(), nil
}

// GetAllBySender implements escrow.Store.GetAllBySender
func (s *store) GetAllBySender(_ context.Context, sender string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*escrow.Record, error) {
	return s.page(cursor, limit, direction, func(record *escrow.Record) bool {
		return record.Sender == sender
	})
}

// GetAllByReceiver implements escrow.Store.GetAllByReceiver
func (s *store) GetAllByReceiver(_ context.Context, receiver string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*escrow.Record, error) {
	return s.page(cursor, limit, direction, func(record *escrow.Record) bool {
		return record.Receiver == receiver
	})
}

// GetAllUnlockable implements escrow.Store.GetAllUnlockable
func (s *store) GetAllUnlockable(_ context.Context, now uint64, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*escrow.Record, error) {
	return s.page(cursor, limit, direction, func(record *escrow.Record) bool {
		return record.State == escrow.StateLocked && record.EndTime <= now
	})
}

// GetCountByState implements escrow.Store.GetCountByState
func (s *store) GetCountByState(_ context.Context, state escrow.State) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for _, record := range s.byAddress {
		if record.State == state {
			count++
		}
	}
	return count, nil
}

// page walks records in id order, starting after the cursor, and returns
// copies of up to limit records that match.
func (s *store) page(cursor query.Cursor, limit uint64, direction query.Ordering, matches func(*escrow.Record) bool) ([]*escrow.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.byId.Iterator()
	step, pastCursor := it.Next, func(id uint64) bool { return true }
	if direction == query.Descending {
		it.End()
		step = it.Prev
	}
	if len(cursor) > 0 {
		start := cursor.ToUint64()
		pastCursor = func(id uint64) bool {
			if direction == query.Descending {
				return id < start
			}
			return id > start
		}
	}

	var res []*escrow.Record
	for step() {
		record := it.Value().(*escrow.Record)
		if !pastCursor(record.Id) || !matches(record) {
			continue
		}

		res = append(res, record.Clone())
		if limit > 0 && uint64(len(res)) == limit {
			break
		}
	}

	if len(res) == 0 {
		return nil, escrow.ErrEscrowNotFound
	}
	return res, nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byId = treemap.NewWith(utils.UInt64Comparator)
	s.byAddress = make(map[string]*escrow.Record)
	s.last = 0
}
