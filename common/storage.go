package common

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/interop"
)

// GetSerialized reads and deserializes the item stored by the key. It
// returns nil item if there is nothing stored.
func GetSerialized(st interop.Storage, key []byte) (stackitem.Item, error) {
	data, err := st.Get(key)
	if err != nil || data == nil {
		return nil, err
	}

	item, err := stackitem.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize stored item: %w", err)
	}

	return item, nil
}

// SetSerialized serializes the item and puts it into storage.
func SetSerialized(st interop.Storage, key []byte, item stackitem.Item) error {
	data, err := stackitem.Serialize(item)
	if err != nil {
		return fmt.Errorf("serialize item: %w", err)
	}

	return st.Put(key, data)
}
