package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/code-payments/token-escrow/pkg/database/query"
	"github.com/code-payments/token-escrow/pkg/ledger/account"
)

const degree = 8

type byAddress struct {
	record *account.Record
}

func (a byAddress) Less(than btree.Item) bool {
	return a.record.Address < than.(byAddress).record.Address
}

type byId struct {
	record *account.Record
}

func (a byId) Less(than btree.Item) bool {
	return a.record.Id < than.(byId).record.Id
}

type store struct {
	mu        sync.Mutex
	addresses *btree.BTree
	ids       *btree.BTree
	last      uint64
	slot      uint64
}

// New returns a new in memory account.Store
func New() account.Store {
	return &store{
		addresses: btree.New(degree),
		ids:       btree.New(degree),
	}
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addresses.Clear(false)
	s.ids.Clear(false)
	s.last = 0
	s.slot = 0
}

// Get implements account.Store.Get
func (s *store) Get(_ context.Context, address string) (*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.find(address)
	if item == nil {
		return nil, account.ErrAccountNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// GetBatch implements account.Store.GetBatch
func (s *store) GetBatch(_ context.Context, addresses ...string) (map[string]*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make(map[string]*account.Record)
	for _, address := range addresses {
		item := s.find(address)
		if item == nil {
			continue
		}

		cloned := item.Clone()
		res[address] = &cloned
	}
	return res, nil
}

// SaveBatch implements account.Store.SaveBatch
func (s *store) SaveBatch(_ context.Context, records ...*account.Record) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		if item := s.find(record.Address); item != nil && record.Slot < item.Slot {
			return account.ErrStaleAccountState
		}
	}

	now := time.Now()
	for _, record := range records {
		record.LastUpdatedAt = now

		if record.Slot > s.slot {
			s.slot = record.Slot
		}

		if item := s.find(record.Address); item != nil {
			record.Id = item.Id
			record.CopyTo(item)
			continue
		}

		s.last++
		record.Id = s.last

		cloned := record.Clone()
		s.addresses.ReplaceOrInsert(byAddress{&cloned})
		s.ids.ReplaceOrInsert(byId{&cloned})
	}

	return nil
}

// GetAllByOwner implements account.Store.GetAllByOwner
func (s *store) GetAllByOwner(_ context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*account.Record
	visit := func(i btree.Item) bool {
		item := i.(byId).record
		if item.Owner != owner {
			return true
		}

		cloned := item.Clone()
		res = append(res, &cloned)
		return limit == 0 || uint64(len(res)) < limit
	}

	if direction == query.Ascending {
		var start uint64
		if len(cursor) > 0 {
			start = cursor.ToUint64()
		}
		s.ids.AscendGreaterOrEqual(pivot(start+1), visit)
	} else {
		if len(cursor) > 0 {
			start := cursor.ToUint64()
			if start == 0 {
				return nil, account.ErrAccountNotFound
			}
			s.ids.DescendLessOrEqual(pivot(start-1), visit)
		} else {
			s.ids.Descend(visit)
		}
	}

	if len(res) == 0 {
		return nil, account.ErrAccountNotFound
	}
	return res, nil
}

// GetLatestSlot implements account.Store.GetLatestSlot
func (s *store) GetLatestSlot(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.slot, nil
}

func (s *store) find(address string) *account.Record {
	item := s.addresses.Get(byAddress{&account.Record{Address: address}})
	if item == nil {
		return nil
	}
	return item.(byAddress).record
}

func pivot(id uint64) byId {
	return byId{&account.Record{Id: id}}
}
