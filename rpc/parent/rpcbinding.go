// Package parent contains RPC wrappers for Parent unit.
package parent

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/subcontract/interop"
)

// ProvisionedEvent represents "Provisioned" event emitted by the contract.
type ProvisionedEvent struct {
	Slot      string
	Address   util.Uint160
	Code      interop.CodeSelector
	Endowment *big.Int
}

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// Actor is used by Contract to call state-changing methods.
type Actor interface {
	Invoker

	Invoke(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// ContractReader implements safe contract methods.
type ContractReader struct {
	invoker Invoker
	hash    util.Uint160
}

// Contract implements all contract methods.
type Contract struct {
	ContractReader
	actor Actor
	hash  util.Uint160
}

// NewReader creates an instance of ContractReader using provided contract hash and the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract using provided contract hash and the given Actor.
func New(actor Actor, hash util.Uint160) *Contract {
	return &Contract{ContractReader{actor, hash}, actor, hash}
}

// GetFromConstructor invokes `getFromConstructor` method of contract.
func (c *ContractReader) GetFromConstructor() (stackitem.Item, error) {
	return unwrap.Item(c.invoker.Call(c.hash, "getFromConstructor"))
}

// GetFromMethod invokes `getFromMethod` method of contract.
func (c *ContractReader) GetFromMethod() (stackitem.Item, error) {
	return unwrap.Item(c.invoker.Call(c.hash, "getFromMethod"))
}

// GetFrom invokes `getFrom` method of contract.
func (c *ContractReader) GetFrom(slot string) (stackitem.Item, error) {
	return unwrap.Item(c.invoker.Call(c.hash, "getFrom", slot))
}

// HandleOf invokes `handleOf` method of contract. Returns nil if the slot is
// empty.
func (c *ContractReader) HandleOf(slot string) (*interop.Handle, error) {
	item, err := unwrap.Item(c.invoker.Call(c.hash, "handleOf", slot))
	if err != nil {
		return nil, err
	}

	if _, ok := item.(stackitem.Null); ok {
		return nil, nil
	}

	res := new(interop.Handle)

	err = res.FromStackItem(item)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Nonce invokes `nonce` method of contract.
func (c *ContractReader) Nonce() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "nonce"))
}

// Version invokes `version` method of contract.
func (c *ContractReader) Version() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "version"))
}

// Deploy invokes `deploy` method of contract.
func (c *Contract) Deploy(version uint32, codeHash interop.CodeSelector) (*result.Invoke, error) {
	return checkHalt(c.actor.Invoke(c.hash, "deploy", version, codeHash))
}

// Provision invokes `provision` method of contract.
func (c *Contract) Provision(slot string, value any, version uint32, codeHash interop.CodeSelector) (interop.Handle, error) {
	return itemToHandle(unwrap.Item(c.actor.Invoke(c.hash, "provision", slot, value, version, codeHash)))
}

// ProvisionNext invokes `provisionNext` method of contract.
func (c *Contract) ProvisionNext(slot string, value any, codeHash interop.CodeSelector) (interop.Handle, error) {
	return itemToHandle(unwrap.Item(c.actor.Invoke(c.hash, "provisionNext", slot, value, codeHash)))
}

func checkHalt(r *result.Invoke, err error) (*result.Invoke, error) {
	if err != nil {
		return nil, err
	}

	if r.State != vmstate.Halt.String() {
		return r, fmt.Errorf("invocation failed: %s", r.FaultException)
	}

	return r, nil
}

func itemToHandle(item stackitem.Item, err error) (interop.Handle, error) {
	var res interop.Handle
	if err != nil {
		return res, err
	}

	err = res.FromStackItem(item)

	return res, err
}

// ProvisionedEventsFromResult retrieves a set of all emitted events
// with "Provisioned" name from the provided [result.Invoke].
func ProvisionedEventsFromResult(r *result.Invoke) ([]*ProvisionedEvent, error) {
	if r == nil {
		return nil, errors.New("nil invocation result")
	}

	var res []*ProvisionedEvent
	for i, e := range r.Notifications {
		if e.Name != "Provisioned" {
			continue
		}
		event := new(ProvisionedEvent)
		err := event.FromStackItem(e.Item)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize ProvisionedEvent from stackitem (event #%d): %w", i, err)
		}
		res = append(res, event)
	}

	return res, nil
}

// FromStackItem converts provided [stackitem.Array] to ProvisionedEvent or
// returns an error if it's not possible to do to so.
func (e *ProvisionedEvent) FromStackItem(item *stackitem.Array) error {
	if item == nil {
		return errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return errors.New("not an array")
	}
	if len(arr) != 4 {
		return errors.New("wrong number of structure elements")
	}

	var (
		index = -1
		err   error
	)
	index++
	e.Slot, err = func(item stackitem.Item) (string, error) {
		b, err := item.TryBytes()
		if err != nil {
			return "", err
		}
		if !utf8.Valid(b) {
			return "", errors.New("not a UTF-8 string")
		}
		return string(b), nil
	}(arr[index])
	if err != nil {
		return fmt.Errorf("field Slot: %w", err)
	}

	index++
	e.Address, err = func(item stackitem.Item) (util.Uint160, error) {
		b, err := item.TryBytes()
		if err != nil {
			return util.Uint160{}, err
		}
		u, err := util.Uint160DecodeBytesBE(b)
		if err != nil {
			return util.Uint160{}, err
		}
		return u, nil
	}(arr[index])
	if err != nil {
		return fmt.Errorf("field Address: %w", err)
	}

	index++
	e.Code, err = func(item stackitem.Item) (interop.CodeSelector, error) {
		b, err := item.TryBytes()
		if err != nil {
			return interop.CodeSelector{}, err
		}
		return interop.DecodeCodeSelectorBytes(b)
	}(arr[index])
	if err != nil {
		return fmt.Errorf("field Code: %w", err)
	}

	index++
	e.Endowment, err = arr[index].TryInteger()
	if err != nil {
		return fmt.Errorf("field Endowment: %w", err)
	}

	return nil
}
