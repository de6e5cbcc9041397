package amqp

import (
	"encoding/json"
	"time"
)

// MutationMessage announces one scope-affecting write. It carries only
// identifiers and the new version; consumers fetch whatever detail they
// need from the ledger.
type MutationMessage struct {
	ScopeID       string    `json:"scope_id"`
	TransactionID string    `json:"transaction_id"`
	Action        string    `json:"action"` // create, update, delete
	Version       int64     `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewMutationMessage(scopeID, transactionID, action string, version int64) *MutationMessage {
	return &MutationMessage{
		ScopeID:       scopeID,
		TransactionID: transactionID,
		Action:        action,
		Version:       version,
		Timestamp:     time.Now(),
	}
}

func (m *MutationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MutationMessageFromJSON(data []byte) (*MutationMessage, error) {
	var msg MutationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
