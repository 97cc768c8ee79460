package tests

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	"github.com/code-payments/token-escrow/pkg/database/query"
)

func RunTests(t *testing.T, s escrow.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s escrow.Store){
		testHappyPath,
		testInvalidRecord,
		testGetAllBySenderAndReceiver,
		testGetAllUnlockable,
		testGetCountByState,
	} {
		tf(t, s)
		teardown()
	}
}

func newLockedRecord(address, sender, receiver string, amount, endTime, slot uint64) *escrow.Record {
	return &escrow.Record{
		Address: address,

		VaultAuthority:     fmt.Sprintf("vault_authority_%s", receiver),
		VaultAuthorityBump: 254,
		VaultTokenAccount:  fmt.Sprintf("vault_token_%s", receiver),

		Sender:   sender,
		Receiver: receiver,
		Mint:     "mint",

		Amount:          amount,
		DepositedAmount: amount,

		StartTime: 1000,
		EndTime:   endTime,

		State: escrow.StateLocked,

		Slot: slot,
	}
}

func testHappyPath(t *testing.T, s escrow.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()

		expected := newLockedRecord("escrow", "sender", "receiver", 500, 4600, 10)

		_, err := s.GetByAddress(ctx, expected.Address)
		assert.Equal(t, escrow.ErrEscrowNotFound, err)

		cloned := expected.Clone()
		require.NoError(t, s.Save(ctx, expected))
		assert.NotZero(t, expected.Id)
		assert.False(t, expected.LastUpdatedAt.IsZero())

		actual, err := s.GetByAddress(ctx, expected.Address)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)
		assert.Equal(t, expected.Id, actual.Id)

		// Replays of the same or older slots are rejected
		assert.Equal(t, escrow.ErrStaleEscrowState, s.Save(ctx, cloned.Clone()))

		older := cloned.Clone()
		older.Slot = 5
		assert.Equal(t, escrow.ErrStaleEscrowState, s.Save(ctx, older))

		released := cloned.Clone()
		released.Amount = 0
		released.State = escrow.StateReleased
		released.Slot = 20
		require.NoError(t, s.Save(ctx, released))
		assert.Equal(t, expected.Id, released.Id)

		actual, err = s.GetByAddress(ctx, expected.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 0, actual.Amount)
		assert.EqualValues(t, 500, actual.DepositedAmount)
		assert.Equal(t, escrow.StateReleased, actual.State)
		assert.EqualValues(t, 20, actual.Slot)
		assert.Equal(t, escrow.StateReleased, actual.StateAt(10_000))
	})
}

func testInvalidRecord(t *testing.T, s escrow.Store) {
	t.Run("testInvalidRecord", func(t *testing.T) {
		ctx := context.Background()

		for _, tc := range []struct {
			name   string
			modify func(r *escrow.Record)
		}{
			{"missing address", func(r *escrow.Record) { r.Address = "" }},
			{"missing receiver", func(r *escrow.Record) { r.Receiver = "" }},
			{"unknown state", func(r *escrow.Record) { r.State = escrow.StateUnknown }},
			{"matured isn't stored", func(r *escrow.Record) { r.State = escrow.StateMatured }},
			{"locked without funds", func(r *escrow.Record) { r.Amount = 0 }},
			{"released with funds", func(r *escrow.Record) { r.State = escrow.StateReleased }},
			{"amount over deposit", func(r *escrow.Record) { r.DepositedAmount = 1 }},
			{"end before start", func(r *escrow.Record) { r.EndTime = r.StartTime }},
		} {
			record := newLockedRecord("escrow", "sender", "receiver", 500, 4600, 10)
			tc.modify(record)

			err := s.Save(ctx, record)
			assert.True(t, errors.Is(err, escrow.ErrInvalidEscrow), tc.name)
		}

		_, err := s.GetByAddress(ctx, "escrow")
		assert.Equal(t, escrow.ErrEscrowNotFound, err)
	})
}

func testGetAllBySenderAndReceiver(t *testing.T, s escrow.Store) {
	t.Run("testGetAllBySenderAndReceiver", func(t *testing.T) {
		ctx := context.Background()

		var all []*escrow.Record
		for i := 0; i < 10; i++ {
			sender := "sender1"
			if i%2 == 1 {
				sender = "sender2"
			}

			record := newLockedRecord(fmt.Sprintf("escrow%d", i), sender, "receiver", uint64(i+1), 4600, 1)
			require.NoError(t, s.Save(ctx, record))
			all = append(all, record)
		}

		_, err := s.GetAllBySender(ctx, "unknown", query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, escrow.ErrEscrowNotFound, err)

		actual, err := s.GetAllBySender(ctx, "sender1", query.EmptyCursor, 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for i, record := range actual {
			assert.Equal(t, all[2*i].Address, record.Address)
		}

		actual, err = s.GetAllBySender(ctx, "sender2", query.EmptyCursor, 2, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assert.Equal(t, all[9].Address, actual[0].Address)
		assert.Equal(t, all[7].Address, actual[1].Address)

		actual, err = s.GetAllBySender(ctx, "sender2", query.ToCursor(actual[1].Id), 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 3)
		assert.Equal(t, all[5].Address, actual[0].Address)
		assert.Equal(t, all[1].Address, actual[2].Address)

		actual, err = s.GetAllByReceiver(ctx, "receiver", query.EmptyCursor, 100, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, len(all))
		for i, record := range actual {
			assertEquivalentRecords(t, all[i], record)
		}

		actual, err = s.GetAllByReceiver(ctx, "receiver", query.ToCursor(all[3].Id), 4, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 4)
		assert.Equal(t, all[4].Address, actual[0].Address)
		assert.Equal(t, all[7].Address, actual[3].Address)

		_, err = s.GetAllByReceiver(ctx, "receiver", query.ToCursor(all[9].Id), 4, query.Ascending)
		assert.Equal(t, escrow.ErrEscrowNotFound, err)
	})
}

func testGetAllUnlockable(t *testing.T, s escrow.Store) {
	t.Run("testGetAllUnlockable", func(t *testing.T) {
		ctx := context.Background()

		early := newLockedRecord("early", "sender", "receiver", 1, 2000, 1)
		late := newLockedRecord("late", "sender", "receiver", 1, 3000, 1)
		released := newLockedRecord("released", "sender", "receiver", 1, 1500, 1)
		released.Amount = 0
		released.State = escrow.StateReleased

		for _, record := range []*escrow.Record{early, late, released} {
			require.NoError(t, s.Save(ctx, record))
		}

		_, err := s.GetAllUnlockable(ctx, 1999, query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, escrow.ErrEscrowNotFound, err)

		actual, err := s.GetAllUnlockable(ctx, 2000, query.EmptyCursor, 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assert.Equal(t, early.Address, actual[0].Address)
		assert.Equal(t, escrow.StateMatured, actual[0].StateAt(2000))

		actual, err = s.GetAllUnlockable(ctx, 5000, query.EmptyCursor, 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assert.Equal(t, early.Address, actual[0].Address)
		assert.Equal(t, late.Address, actual[1].Address)

		actual, err = s.GetAllUnlockable(ctx, 5000, query.EmptyCursor, 1, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assert.Equal(t, late.Address, actual[0].Address)

		early.Amount = 0
		early.State = escrow.StateReleased
		early.Slot = 2
		require.NoError(t, s.Save(ctx, early))

		actual, err = s.GetAllUnlockable(ctx, 5000, query.EmptyCursor, 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assert.Equal(t, late.Address, actual[0].Address)
	})
}

func testGetCountByState(t *testing.T, s escrow.Store) {
	t.Run("testGetCountByState", func(t *testing.T) {
		ctx := context.Background()

		for _, state := range []escrow.State{escrow.StateLocked, escrow.StateReleased} {
			count, err := s.GetCountByState(ctx, state)
			require.NoError(t, err)
			assert.EqualValues(t, 0, count)
		}

		for i := 0; i < 5; i++ {
			record := newLockedRecord(fmt.Sprintf("escrow%d", i), "sender", "receiver", 10, 4600, 1)
			if i < 2 {
				record.Amount = 0
				record.State = escrow.StateReleased
			}
			require.NoError(t, s.Save(ctx, record))
		}

		count, err := s.GetCountByState(ctx, escrow.StateLocked)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)

		count, err = s.GetCountByState(ctx, escrow.StateReleased)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		count, err = s.GetCountByState(ctx, escrow.StateMatured)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *escrow.Record) {
	assert.Equal(t, obj1.Address, obj2.Address)
	assert.Equal(t, obj1.VaultAuthority, obj2.VaultAuthority)
	assert.Equal(t, obj1.VaultAuthorityBump, obj2.VaultAuthorityBump)
	assert.Equal(t, obj1.VaultTokenAccount, obj2.VaultTokenAccount)
	assert.Equal(t, obj1.Sender, obj2.Sender)
	assert.Equal(t, obj1.Receiver, obj2.Receiver)
	assert.Equal(t, obj1.Mint, obj2.Mint)
	assert.Equal(t, obj1.Amount, obj2.Amount)
	assert.Equal(t, obj1.DepositedAmount, obj2.DepositedAmount)
	assert.Equal(t, obj1.StartTime, obj2.StartTime)
	assert.Equal(t, obj1.EndTime, obj2.EndTime)
	assert.Equal(t, obj1.State, obj2.State)
	assert.Equal(t, obj1.Slot, obj2.Slot)
}
