package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/code-payments/token-escrow/pkg/code/escrow/nonce"
)

const (
	keyPrefix = "escrow:unlock:nonce:"
)

// Deletes the key only while it still holds the caller's nonce
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type reserver struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// New returns a new redis-backed nonce.Reserver
func New(client goredis.UniversalClient, ttl time.Duration) nonce.Reserver {
	return &reserver{
		client: client,
		ttl:    ttl,
	}
}

// Reserve implements nonce.Reserver.Reserve
func (r *reserver) Reserve(ctx context.Context, escrow string) (uint64, error) {
	value := nonce.New()

	err := r.client.SetArgs(ctx, keyPrefix+escrow, strconv.FormatUint(value, 10), goredis.SetArgs{
		Mode: "NX",
		TTL:  r.ttl,
	}).Err()
	if err == goredis.Nil {
		return 0, nonce.ErrAlreadyReserved
	} else if err != nil {
		return 0, errors.Wrap(err, "error reserving nonce")
	}

	return value, nil
}

// Release implements nonce.Reserver.Release
func (r *reserver) Release(ctx context.Context, escrow string, value uint64) error {
	deleted, err := releaseScript.Run(ctx, r.client, []string{keyPrefix + escrow}, strconv.FormatUint(value, 10)).Int64()
	if err != nil {
		return errors.Wrap(err, "error releasing nonce")
	}

	if deleted == 0 {
		return nonce.ErrNotReserved
	}
	return nil
}
