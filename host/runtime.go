package host

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/common"
	"github.com/nspcc-dev/subcontract/interop"
	"go.uber.org/zap"
)

// runtime implements interop.Runtime for the executing unit.
type runtime struct {
	ic       *invocation
	self     util.Uint160
	caller   util.Uint160
	code     Code
	readOnly bool
}

func (rt *runtime) ExecutingHash() util.Uint160 {
	return rt.self
}

func (rt *runtime) CallingHash() util.Uint160 {
	return rt.caller
}

func (rt *runtime) CurrentBalance(unit util.Uint160) (*big.Int, error) {
	return rt.ic.balance(unit)
}

func (rt *runtime) DeriveAddress(deployer util.Uint160, code interop.CodeSelector, salt []byte) util.Uint160 {
	return DeriveAddress(deployer, code, salt)
}

func (rt *runtime) Instantiate(deployer util.Uint160, code interop.CodeSelector, salt []byte, endowment *big.Int, args ...any) (interop.Ref, error) {
	var cause error

	switch {
	case rt.readOnly:
		cause = interop.ErrReadOnly
	case deployer != rt.self:
		cause = interop.ErrForeignDeployer
	}

	if cause != nil {
		rt.ic.host.metrics.observeInstantiation(cause)
		return nil, &interop.InstantiationError{
			Deployer: deployer,
			Address:  DeriveAddress(deployer, code, salt),
			Code:     code,
			Cause:    cause,
		}
	}

	st, err := rt.ic.instantiate(deployer, code, salt, endowment, args)
	if err != nil {
		return nil, err
	}

	return &ref{rt: rt, st: st, code: rt.ic.host.codes[code]}, nil
}

func (rt *runtime) Resolve(h interop.Handle) (interop.Ref, error) {
	st, c, err := rt.ic.resolve(h)
	if err != nil {
		return nil, err
	}

	return &ref{rt: rt, st: st, code: c}, nil
}

func (rt *runtime) Storage() interop.Storage {
	return unitStorage{rt}
}

func (rt *runtime) Notify(name string, args ...any) error {
	if rt.readOnly {
		return fmt.Errorf("%w: notify %s", interop.ErrReadOnly, name)
	}

	ev := rt.code.Manifest.ABI.GetEvent(name)
	if ev == nil {
		return fmt.Errorf("%w %s", ErrUnknownEvent, name)
	}

	if len(ev.Parameters) != len(args) {
		return fmt.Errorf("%w %s with %d parameters", ErrUnknownEvent, name, len(args))
	}

	items, err := common.ToStackItems(args)
	if err != nil {
		return fmt.Errorf("event %s: %w", name, err)
	}

	rt.ic.notify(rt.self, name, items)

	return nil
}

func (rt *runtime) Log(msg string) {
	rt.ic.host.log.Info(msg,
		zap.Stringer("session", rt.ic.session),
		zap.String("unit", rt.code.Manifest.Name),
		zap.Stringer("address", rt.self),
	)
}

type ref struct {
	rt   *runtime
	st   UnitState
	code Code
}

func (r *ref) Handle() interop.Handle {
	return r.st.Handle()
}

func (r *ref) Call(method string, args ...any) (stackitem.Item, error) {
	return r.rt.ic.call(r.rt.self, r.rt.readOnly, r.st, r.code, method, args)
}

// unitStorage is a private storage of the executing unit.
type unitStorage struct {
	rt *runtime
}

func (s unitStorage) Get(key []byte) ([]byte, error) {
	v, err := s.rt.ic.store.Get(storageKey(s.rt.self, key))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage item: %w", err)
	}

	return v, nil
}

func (s unitStorage) Put(key, value []byte) error {
	if s.rt.readOnly {
		return fmt.Errorf("%w: put storage item", interop.ErrReadOnly)
	}

	s.rt.ic.store.Put(storageKey(s.rt.self, key), append([]byte{}, value...))

	return nil
}

func (s unitStorage) Delete(key []byte) error {
	if s.rt.readOnly {
		return fmt.Errorf("%w: delete storage item", interop.ErrReadOnly)
	}

	s.rt.ic.store.Delete(storageKey(s.rt.self, key))

	return nil
}

func (s unitStorage) Find(prefix []byte, f func(key, value []byte) bool) error {
	for _, item := range seekPrefix(s.rt.ic.store, storageKey(s.rt.self, prefix)) {
		if !f(item.k, item.v) {
			break
		}
	}

	return nil
}
