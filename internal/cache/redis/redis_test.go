package redis

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "balance:0xabcdef0000000000000000000000000000000001",
		balanceKey("0xABCDEF0000000000000000000000000000000001"))
	assert.Equal(t, "lock:tx:0xabc", lockKey("tx:0xabc"))
	assert.Equal(t, "ratelimit:rpc", rateLimitKey("rpc"))
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("ch:*"))
	assert.False(t, hasPattern("ch:tx"))
}

func TestPayloadOf(t *testing.T) {
	data, ok := payloadOf(goredis.XMessage{ID: "1-0", Values: map[string]any{"payload": "{}"}})
	require.True(t, ok)
	assert.Equal(t, []byte("{}"), data)

	_, ok = payloadOf(goredis.XMessage{ID: "2-0", Values: map[string]any{"other": "x"}})
	assert.False(t, ok)
}

func TestSnapshotFromHash(t *testing.T) {
	acct := "0xa11ce00000000000000000000000000000000001"
	at := time.UnixMilli(1_700_000_000_123).UTC()

	snap, err := snapshotFromHash(acct, map[string]string{
		"native":         "1500000000000000000",
		"token":          "0",
		"native_display": "1.5",
		"token_display":  "0",
		"refreshed_at":   "1700000000123",
	})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(acct), snap.Account)
	assert.Equal(t, 0, snap.Native.Cmp(big.NewInt(1_500_000_000_000_000_000)))
	assert.Equal(t, "1.5", snap.NativeDisplay)
	assert.True(t, at.Equal(snap.RefreshedAt))

	_, err = snapshotFromHash(acct, map[string]string{"native": "x", "token": "0", "refreshed_at": "1"})
	assert.Error(t, err)
}

func TestBigString(t *testing.T) {
	assert.Equal(t, "0", bigString(nil))
	assert.Equal(t, "42", bigString(big.NewInt(42)))
}
