package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// findEvent returns the first log emitted by address whose topic0 matches
// the named event.
func findEvent(logs []*types.Log, address common.Address, name string) *types.Log {
	ev, ok := contractABI.Events[name]
	if !ok {
		return nil
	}
	for _, l := range logs {
		if l == nil || l.Address != address || len(l.Topics) == 0 {
			continue
		}
		if l.Topics[0] == ev.ID {
			return l
		}
	}
	return nil
}

// ParseMarketCreated extracts the new market id from a createMarket receipt.
func ParseMarketCreated(logs []*types.Log, address common.Address) (uint64, bool) {
	l := findEvent(logs, address, "MarketCreated")
	if l == nil || len(l.Topics) < 2 {
		return 0, false
	}
	return new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64(), true
}

// ParseClaimed returns the amount paid by a claim receipt.
func ParseClaimed(logs []*types.Log, address common.Address) (*big.Int, bool) {
	l := findEvent(logs, address, "Claimed")
	if l == nil {
		return nil, false
	}
	vals, err := contractABI.Unpack("Claimed", l.Data)
	if err != nil || len(vals) != 1 {
		return nil, false
	}
	amount, ok := vals[0].(*big.Int)
	return amount, ok
}

// ParseDailyClaimed returns the reward and the streak after the claim.
func ParseDailyClaimed(logs []*types.Log, address common.Address) (amount, streak *big.Int, ok bool) {
	l := findEvent(logs, address, "DailyClaimed")
	if l == nil {
		return nil, nil, false
	}
	vals, err := contractABI.Unpack("DailyClaimed", l.Data)
	if err != nil || len(vals) != 2 {
		return nil, nil, false
	}
	amount, ok1 := vals[0].(*big.Int)
	streak, ok2 := vals[1].(*big.Int)
	return amount, streak, ok1 && ok2
}
