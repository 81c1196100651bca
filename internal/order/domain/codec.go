package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalLedger encodes orders as the JSON array stored under the ledger key.
func MarshalLedger(orders []Order) ([]byte, error) {
	if orders == nil {
		orders = []Order{}
	}
	return json.Marshal(orders)
}

// UnmarshalLedger decodes a stored ledger. Empty input is an empty ledger.
func UnmarshalLedger(raw []byte) ([]Order, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var orders []Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return orders, nil
}
