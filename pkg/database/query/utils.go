package query

import "strconv"

// PaginateQuery appends id based paging to query, which must end with a
// bracketed WHERE clause, and the matching positional arguments to opts:
//
//	"SELECT ... WHERE (sender = $1)"
//	> "SELECT ... WHERE (sender = $1) AND id > $2 ORDER BY id ASC LIMIT $3"
//
// A zero limit leaves the result unbounded.
func PaginateQuery(query string, opts []interface{}, cursor Cursor, limit uint64, direction Ordering) (string, []interface{}) {
	if len(cursor) > 0 {
		v := strconv.Itoa(len(opts) + 1)

		if direction == Ascending {
			query += " AND id > $" + v
		} else {
			query += " AND id < $" + v
		}

		opts = append(opts, cursor.ToUint64())
	}

	if direction == Ascending {
		query += " ORDER BY id ASC"
	} else {
		query += " ORDER BY id DESC"
	}

	if limit > 0 {
		query += " LIMIT $" + strconv.Itoa(len(opts)+1)
		opts = append(opts, limit)
	}

	return query, opts
}
