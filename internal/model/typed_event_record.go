package model

import "encoding/json"

// VaultEventRecord is the stored form of a VaultEvent, read back from JSONL.
type VaultEventRecord struct {
	Vault     string          `json:"vault"`
	Seq       uint64          `json:"seq"`
	EventName string          `json:"event_name"`
	Timestamp uint64          `json:"timestamp"`
	Decoded   json.RawMessage `json:"decoded"`
}
