package tests

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-escrow/pkg/database/query"
	"github.com/code-payments/token-escrow/pkg/ledger/account"
)

func RunTests(t *testing.T, s account.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s account.Store){
		testHappyPath,
		testStaleSlot,
		testBatchedMethods,
		testGetAllByOwner,
		testInvalidRecord,
		testLatestSlot,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s account.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		start := time.Now()
		ctx := context.Background()

		expected := &account.Record{
			Address:  newKey(t),
			Owner:    newKey(t),
			Lamports: 2039280,
			Data:     []byte{1, 2, 3, 4},
			Slot:     10,
		}
		cloned := expected.Clone()

		_, err := s.Get(ctx, expected.Address)
		assert.Equal(t, account.ErrAccountNotFound, err)

		require.NoError(t, s.SaveBatch(ctx, expected))
		assert.True(t, expected.Id > 0)
		assert.True(t, expected.LastUpdatedAt.After(start))

		actual, err := s.Get(ctx, expected.Address)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)

		expected.Lamports = 0
		expected.Data = []byte{5, 6}
		expected.Slot = 11
		require.NoError(t, s.SaveBatch(ctx, expected))

		actual, err = s.Get(ctx, expected.Address)
		require.NoError(t, err)
		assert.Equal(t, cloned.Id, actual.Id)
		assert.EqualValues(t, 0, actual.Lamports)
		assert.Equal(t, []byte{5, 6}, actual.Data)
		assert.EqualValues(t, 11, actual.Slot)

		// Saving at the same slot is allowed
		expected.Lamports = 1
		require.NoError(t, s.SaveBatch(ctx, expected))

		actual, err = s.Get(ctx, expected.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 1, actual.Lamports)
	})
}

func testStaleSlot(t *testing.T, s account.Store) {
	t.Run("testStaleSlot", func(t *testing.T) {
		ctx := context.Background()

		fresh := &account.Record{
			Address:  newKey(t),
			Owner:    newKey(t),
			Lamports: 10,
			Slot:     5,
		}
		require.NoError(t, s.SaveBatch(ctx, fresh))

		other := &account.Record{
			Address:  newKey(t),
			Owner:    newKey(t),
			Lamports: 20,
			Slot:     4,
		}
		stale := fresh.Clone()
		stale.Lamports = 0
		stale.Slot = 4

		// Nothing in the batch is saved
		assert.Equal(t, account.ErrStaleAccountState, s.SaveBatch(ctx, other, &stale))

		actual, err := s.Get(ctx, fresh.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 10, actual.Lamports)
		assert.EqualValues(t, 5, actual.Slot)

		_, err = s.Get(ctx, other.Address)
		assert.Equal(t, account.ErrAccountNotFound, err)
	})
}

func testBatchedMethods(t *testing.T, s account.Store) {
	t.Run("testBatchedMethods", func(t *testing.T) {
		ctx := context.Background()

		var records []*account.Record
		var addresses []string
		for i := 0; i < 5; i++ {
			record := &account.Record{
				Address:  newKey(t),
				Owner:    newKey(t),
				Lamports: uint64(i + 1),
				Data:     []byte{byte(i)},
				Slot:     1,
			}
			records = append(records, record)
			addresses = append(addresses, record.Address)
		}

		actual, err := s.GetBatch(ctx, addresses...)
		require.NoError(t, err)
		assert.Empty(t, actual)

		require.NoError(t, s.SaveBatch(ctx, records[:3]...))

		actual, err = s.GetBatch(ctx, addresses...)
		require.NoError(t, err)
		require.Len(t, actual, 3)
		for _, record := range records[:3] {
			assertEquivalentRecords(t, record, actual[record.Address])
		}
		for _, record := range records[3:] {
			assert.NotContains(t, actual, record.Address)
		}

		actual, err = s.GetBatch(ctx)
		require.NoError(t, err)
		assert.Empty(t, actual)
	})
}

func testGetAllByOwner(t *testing.T, s account.Store) {
	t.Run("testGetAllByOwner", func(t *testing.T) {
		ctx := context.Background()

		owner := newKey(t)

		_, err := s.GetAllByOwner(ctx, owner, query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, account.ErrAccountNotFound, err)

		var expected []*account.Record
		for i := 0; i < 10; i++ {
			record := &account.Record{
				Address:  newKey(t),
				Owner:    owner,
				Lamports: uint64(i),
				Slot:     1,
			}
			require.NoError(t, s.SaveBatch(ctx, record))
			expected = append(expected, record)

			// Interleave accounts under a different owner
			require.NoError(t, s.SaveBatch(ctx, &account.Record{
				Address: newKey(t),
				Owner:   newKey(t),
				Slot:    1,
			}))
		}

		actual, err := s.GetAllByOwner(ctx, owner, query.EmptyCursor, 100, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 10)
		for i, record := range actual {
			assertEquivalentRecords(t, expected[i], record)
		}

		actual, err = s.GetAllByOwner(ctx, owner, query.EmptyCursor, 100, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 10)
		for i, record := range actual {
			assertEquivalentRecords(t, expected[9-i], record)
		}

		actual, err = s.GetAllByOwner(ctx, owner, query.EmptyCursor, 3, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 3)
		assertEquivalentRecords(t, expected[2], actual[2])

		actual, err = s.GetAllByOwner(ctx, owner, query.ToCursor(expected[2].Id), 3, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 3)
		assertEquivalentRecords(t, expected[3], actual[0])
		assertEquivalentRecords(t, expected[5], actual[2])

		actual, err = s.GetAllByOwner(ctx, owner, query.ToCursor(expected[5].Id), 100, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		assertEquivalentRecords(t, expected[4], actual[0])
		assertEquivalentRecords(t, expected[0], actual[4])

		_, err = s.GetAllByOwner(ctx, owner, query.ToCursor(expected[9].Id), 100, query.Ascending)
		assert.Equal(t, account.ErrAccountNotFound, err)
	})
}

func testInvalidRecord(t *testing.T, s account.Store) {
	t.Run("testInvalidRecord", func(t *testing.T) {
		ctx := context.Background()

		assert.Error(t, s.SaveBatch(ctx, &account.Record{Address: "invalid", Owner: newKey(t)}))
		assert.Error(t, s.SaveBatch(ctx, &account.Record{Address: newKey(t), Owner: ""}))
	})
}

func testLatestSlot(t *testing.T, s account.Store) {
	t.Run("testLatestSlot", func(t *testing.T) {
		ctx := context.Background()

		slot, err := s.GetLatestSlot(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, slot)

		first := &account.Record{Address: newKey(t), Owner: newKey(t), Slot: 7}
		second := &account.Record{Address: newKey(t), Owner: newKey(t), Slot: 3}
		require.NoError(t, s.SaveBatch(ctx, first, second))

		slot, err = s.GetLatestSlot(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 7, slot)

		// Rejected batches don't move the latest slot
		stale := first.Clone()
		stale.Slot = 2
		assert.Equal(t, account.ErrStaleAccountState, s.SaveBatch(ctx, &account.Record{Address: newKey(t), Owner: newKey(t), Slot: 20}, &stale))

		slot, err = s.GetLatestSlot(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 7, slot)

		second.Slot = 9
		require.NoError(t, s.SaveBatch(ctx, second))

		slot, err = s.GetLatestSlot(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 9, slot)
	})
}

func newKey(t *testing.T) string {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return base58.Encode(pub)
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *account.Record) {
	assert.Equal(t, obj1.Address, obj2.Address)
	assert.Equal(t, obj1.Owner, obj2.Owner)
	assert.Equal(t, obj1.Lamports, obj2.Lamports)
	assert.True(t, obj1.Equals(obj2))
	assert.Equal(t, obj1.Executable, obj2.Executable)
	assert.Equal(t, obj1.Slot, obj2.Slot)
}
