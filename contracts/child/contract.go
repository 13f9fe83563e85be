package child

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/common"
	"github.com/nspcc-dev/subcontract/interop"
)

// Methods of the Child unit.
const (
	MethodGet     = "get"
	MethodVersion = "version"
)

const valueKey = "v"

var errValueNotSet = errors.New("value is not set")

// Contract is the code of the Child unit.
type Contract struct{}

// Deploy stores the only argument as the unit value.
func (Contract) Deploy(rt interop.Runtime, args []stackitem.Item) error {
	if len(args) != 1 {
		return fmt.Errorf("expected 1 constructor argument, got %d", len(args))
	}

	err := common.SetSerialized(rt.Storage(), []byte(valueKey), args[0])
	if err != nil {
		return fmt.Errorf("save value: %w", err)
	}

	rt.Log("child unit initialized")

	return nil
}

// Invoke implements interop.Contract.
func (Contract) Invoke(rt interop.Runtime, method string, _ []stackitem.Item) (stackitem.Item, error) {
	switch method {
	case MethodGet:
		return get(rt)
	case MethodVersion:
		return stackitem.Make(common.Version), nil
	default:
		return nil, fmt.Errorf("%w: %s", interop.ErrUnknownMethod, method)
	}
}

// get returns the value stored at construction.
func get(rt interop.Runtime) (stackitem.Item, error) {
	item, err := common.GetSerialized(rt.Storage(), []byte(valueKey))
	if err != nil {
		return nil, err
	}

	if item == nil {
		return nil, errValueNotSet
	}

	return item, nil
}
