package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ConnectionStatus is the variant of the wallet connection state machine.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusWrongNetwork ConnectionStatus = "wrong_network"
)

// ConnectionState is a value snapshot of the wallet linkage.
//
// Connected implies Account != nil and ChainID equals the expected chain.
// WrongNetwork implies Account != nil and a chain mismatch.
type ConnectionState struct {
	Status     ConnectionStatus `json:"status"`
	Account    *common.Address  `json:"account,omitempty"`
	ChainID    *big.Int         `json:"chain_id,omitempty"`
	Correct    bool             `json:"is_correct_network"`
	Connecting bool             `json:"is_connecting"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// IsConnected reports whether the session can sign transactions.
func (s ConnectionState) IsConnected() bool {
	return s.Status == StatusConnected && s.Account != nil && s.Correct
}

// SessionEvent is published on the signal bus for every state transition.
type SessionEvent struct {
	Type   string          `json:"type"` // "state", "reset", "error"
	State  ConnectionState `json:"state"`
	Reason string          `json:"reason,omitempty"`
}
