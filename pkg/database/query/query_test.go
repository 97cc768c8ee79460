package query

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	cursor := ToCursor(12345)
	assert.Len(t, cursor, 8)
	assert.EqualValues(t, 12345, cursor.ToUint64())

	parsed, err := FromBase58(cursor.ToBase58())
	require.NoError(t, err)
	assert.Equal(t, cursor, parsed)

	// Leading zero bytes survive the round trip
	parsed, err = FromBase58(ToCursor(1).ToBase58())
	require.NoError(t, err)
	assert.EqualValues(t, 1, parsed.ToUint64())

	for _, invalid := range []string{"", "0", "abc", ToCursor(math.MaxUint64).ToBase58() + "2"} {
		_, err = FromBase58(invalid)
		assert.Equal(t, ErrInvalidCursor, err, invalid)
	}
}

func TestToOrderingWithFallback(t *testing.T) {
	assert.Equal(t, Ascending, ToOrderingWithFallback("asc", Descending))
	assert.Equal(t, Descending, ToOrderingWithFallback("desc", Ascending))
	assert.Equal(t, Descending, ToOrderingWithFallback("", Descending))
	assert.Equal(t, Ascending, ToOrderingWithFallback("sideways", Ascending))
}

func TestPaginateQuery(t *testing.T) {
	base := "SELECT id FROM escrow__core_escrow WHERE (sender = $1)"

	query, opts := PaginateQuery(base, []interface{}{"a"}, EmptyCursor, 0, Ascending)
	assert.Equal(t, base+" ORDER BY id ASC", query)
	assert.Equal(t, []interface{}{"a"}, opts)

	query, opts = PaginateQuery(base, []interface{}{"a"}, ToCursor(5), 10, Descending)
	assert.Equal(t, base+" AND id < $2 ORDER BY id DESC LIMIT $3", query)
	assert.Equal(t, []interface{}{"a", uint64(5), uint64(10)}, opts)

	query, opts = PaginateQuery(base, []interface{}{"a"}, ToCursor(5), 0, Ascending)
	assert.Equal(t, base+" AND id > $2 ORDER BY id ASC", query)
	assert.Equal(t, []interface{}{"a", uint64(5)}, opts)
}
