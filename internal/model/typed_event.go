package model

// VaultEvent is an event emitted by a vault operation.
type VaultEvent struct {
	Vault     string      `json:"vault"`
	Seq       uint64      `json:"seq"`
	EventName string      `json:"event_name"`
	Timestamp uint64      `json:"timestamp"`
	Decoded   interface{} `json:"decoded"`
}
