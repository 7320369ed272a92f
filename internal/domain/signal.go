package domain

import "time"

// Signal bus channels.
const (
	ChannelSession     = "ch:session"
	ChannelBalance     = "ch:balance"
	ChannelTx          = "ch:tx"
	ChannelMarkets     = "ch:markets"
	ChannelLeaderboard = "ch:leaderboard"

	// StreamTx is the durable stream of transaction notices.
	StreamTx = "stream:tx"
)

// NoticeStage is the point of the transaction pipeline a notice reports.
type NoticeStage string

const (
	NoticeSubmitted NoticeStage = "submitted"
	NoticeSucceeded NoticeStage = "succeeded"
	NoticeFailed    NoticeStage = "failed"
)

// TxNotice is the user-visible report emitted by the transaction pipeline.
type TxNotice struct {
	Op        string      `json:"op"`
	Stage     NoticeStage `json:"stage"`
	Account   string      `json:"account,omitempty"`
	TxHash    string      `json:"tx_hash,omitempty"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Explorer  string      `json:"explorer,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Envelope wraps payloads pushed to WebSocket clients.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
