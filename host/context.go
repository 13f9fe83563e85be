package host

import (
	"context"
	"fmt"
	"math/big"
	"slices"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/common"
	"github.com/nspcc-dev/subcontract/interop"
	"go.uber.org/zap"
)

// invocation is a state of the single top-level operation.
type invocation struct {
	ctx     context.Context
	host    *Host
	session uuid.UUID
	// height the operation is committed at
	height uint32

	// current overlay, replaced for every nested step
	store *storage.MemCachedStore
	// units currently executing, innermost last
	stack []util.Uint160

	notifications []state.NotificationEvent
	created       []UnitState
}

func (h *Host) newInvocation(ctx context.Context) (*invocation, error) {
	height, err := getHeight(h.store)
	if err != nil {
		return nil, err
	}

	return &invocation{
		ctx:     ctx,
		host:    h,
		session: uuid.New(),
		height:  height + 1,
		store:   storage.NewMemCachedStore(h.store),
	}, nil
}

// nest executes f in the nested overlay. Effects of f are merged into the
// current overlay only if f succeeds.
func (ic *invocation) nest(f func() error) error {
	var (
		parent    = ic.store
		nNotif    = len(ic.notifications)
		nCreated  = len(ic.created)
		nestedErr error
	)

	ic.store = storage.NewMemCachedStore(parent)
	nestedErr = f()
	nested := ic.store
	ic.store = parent

	if nestedErr != nil {
		ic.notifications = ic.notifications[:nNotif]
		ic.created = ic.created[:nCreated]
		return nestedErr
	}

	_, err := nested.PersistSync()
	if err != nil {
		return fmt.Errorf("merge nested changes: %w", err)
	}

	return nil
}

// enter pushes the unit to the call stack. Returned function pops it.
func (ic *invocation) enter(addr util.Uint160) (func(), error) {
	if err := ic.ctx.Err(); err != nil {
		return nil, err
	}

	if slices.Contains(ic.stack, addr) {
		return nil, fmt.Errorf("%w into %s", interop.ErrReentrantCall, address.Uint160ToString(addr))
	}

	ic.stack = append(ic.stack, addr)

	return func() { ic.stack = ic.stack[:len(ic.stack)-1] }, nil
}

func (ic *invocation) unit(addr util.Uint160) (UnitState, bool, error) {
	for i := range ic.created {
		if ic.created[i].Address == addr {
			return ic.created[i], true, nil
		}
	}

	if st, ok := ic.host.units.Get(addr); ok {
		return st, true, nil
	}

	st, ok, err := getUnit(ic.store, addr)
	if err == nil && ok {
		// records are immutable, and the ones not created in this operation
		// are already committed
		ic.host.units.Add(addr, st)
	}

	return st, ok, err
}

func (ic *invocation) balance(addr util.Uint160) (*big.Int, error) {
	return getBalance(ic.store, addr)
}

func (ic *invocation) setBalance(addr util.Uint160, b *big.Int) {
	if b.Sign() == 0 {
		ic.store.Delete(balanceKey(addr))
		return
	}

	ic.store.Put(balanceKey(addr), encodeBalance(b))
}

func (ic *invocation) transfer(from, to util.Uint160, amount *big.Int) error {
	fromBalance, err := ic.balance(from)
	if err != nil {
		return err
	}

	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, need %s", interop.ErrInsufficientBalance,
			address.Uint160ToString(from), fromBalance, amount)
	}

	toBalance, err := ic.balance(to)
	if err != nil {
		return err
	}

	ic.setBalance(from, fromBalance.Sub(fromBalance, amount))
	ic.setBalance(to, toBalance.Add(toBalance, amount))

	return nil
}

func (ic *invocation) notify(addr util.Uint160, name string, args []stackitem.Item) {
	ic.notifications = append(ic.notifications, state.NotificationEvent{
		ScriptHash: addr,
		Name:       name,
		Item:       stackitem.NewArray(args),
	})
}

// instantiate creates new unit deployed by the given deployer. Resulting
// error is always *interop.InstantiationError.
func (ic *invocation) instantiate(deployer util.Uint160, code interop.CodeSelector, salt []byte, endowment *big.Int, args []any) (UnitState, error) {
	addr := DeriveAddress(deployer, code, salt)

	st, err := ic.doInstantiate(deployer, addr, code, salt, endowment, args)
	ic.host.metrics.observeInstantiation(err)
	if err != nil {
		return st, &interop.InstantiationError{
			Deployer: deployer,
			Address:  addr,
			Code:     code,
			Cause:    err,
		}
	}

	ic.host.log.Debug("unit instantiated",
		zap.Stringer("session", ic.session),
		zap.String("address", address.Uint160ToString(addr)),
		zap.Stringer("code", code),
		zap.String("deployer", address.Uint160ToString(deployer)),
		zap.Stringer("endowment", endowment),
	)

	return st, nil
}

func (ic *invocation) doInstantiate(deployer, addr util.Uint160, code interop.CodeSelector, salt []byte, endowment *big.Int, args []any) (UnitState, error) {
	st := UnitState{
		Address:  addr,
		Code:     code,
		Deployer: deployer,
		Salt:     slices.Clone(salt),
		Height:   ic.height,
	}

	if endowment == nil {
		endowment = new(big.Int)
	}

	if endowment.Sign() < 0 {
		return st, fmt.Errorf("%w %s", interop.ErrNegativeEndowment, endowment)
	}

	c, ok := ic.host.codes[code]
	if !ok {
		return st, interop.ErrUnknownCode
	}

	_, exists, err := ic.unit(addr)
	if err != nil {
		return st, err
	}

	if exists {
		return st, interop.ErrAddressCollision
	}

	items, err := common.ToStackItems(args)
	if err != nil {
		return st, fmt.Errorf("constructor arguments: %w", err)
	}

	withConstructor := c.Manifest.ABI.GetMethod(interop.DeployMethod, -1) != nil
	if (withConstructor && c.Manifest.ABI.GetMethod(interop.DeployMethod, len(items)) == nil) ||
		(!withConstructor && len(items) > 0) {
		return st, fmt.Errorf("%w: %s with %d parameters", interop.ErrUnknownMethod, interop.DeployMethod, len(items))
	}

	leave, err := ic.enter(addr)
	if err != nil {
		return st, err
	}
	defer leave()

	err = ic.nest(func() error {
		err := ic.transfer(deployer, addr, endowment)
		if err != nil {
			return err
		}

		data, err := encodeUnitState(st)
		if err != nil {
			return fmt.Errorf("encode unit record: %w", err)
		}

		ic.store.Put(unitKey(addr), data)
		ic.created = append(ic.created, st)

		ic.notify(ManagementHash, "Instantiated", []stackitem.Item{
			stackitem.NewByteArray(addr.BytesBE()),
			stackitem.NewByteArray(code[:]),
			stackitem.NewByteArray(deployer.BytesBE()),
			stackitem.NewBigInteger(new(big.Int).Set(endowment)),
		})

		if !withConstructor {
			return nil
		}

		err = c.Contract.Deploy(&runtime{
			ic:     ic,
			self:   addr,
			caller: deployer,
			code:   c,
		}, items)
		if err != nil {
			return fmt.Errorf("constructor: %w", err)
		}

		return nil
	})

	return st, err
}

// resolve returns record and code of the unit referenced by the handle.
// Resulting error is always *interop.DereferenceError.
func (ic *invocation) resolve(h interop.Handle) (UnitState, Code, error) {
	fail := func(cause error) (UnitState, Code, error) {
		return UnitState{}, Code{}, &interop.DereferenceError{Handle: h, Cause: cause}
	}

	if h.IsZero() {
		return fail(interop.ErrUnitNotFound)
	}

	st, ok, err := ic.unit(h.Address)
	if err != nil {
		return fail(err)
	}

	if !ok {
		return fail(interop.ErrUnitNotFound)
	}

	if st.Code != h.Code {
		return fail(fmt.Errorf("%w: %s", interop.ErrCodeMismatch, st.Code))
	}

	c, ok := ic.host.codes[st.Code]
	if !ok {
		return fail(interop.ErrUnknownCode)
	}

	return st, c, nil
}

// resolveAddress is like resolve but does not check the code.
func (ic *invocation) resolveAddress(addr util.Uint160) (UnitState, Code, error) {
	st, ok, err := ic.unit(addr)
	if err != nil {
		return st, Code{}, err
	}

	if !ok {
		return st, Code{}, fmt.Errorf("%w: %s", interop.ErrUnitNotFound, address.Uint160ToString(addr))
	}

	return ic.resolve(st.Handle())
}

// call executes the method of the unit on behalf of the caller. Safe methods
// are executed in read-only mode, read-only callers may call safe methods
// only.
func (ic *invocation) call(caller util.Uint160, readOnly bool, st UnitState, c Code, method string, args []any) (stackitem.Item, error) {
	items, err := common.ToStackItems(args)
	if err != nil {
		return nil, fmt.Errorf("call %s: arguments: %w", method, err)
	}

	md := c.Manifest.ABI.GetMethod(method, len(items))
	if md == nil || method == interop.DeployMethod {
		return nil, fmt.Errorf("%w: %s with %d parameters", interop.ErrUnknownMethod, method, len(items))
	}

	if readOnly && !md.Safe {
		return nil, fmt.Errorf("%w: call unsafe method %s", interop.ErrReadOnly, method)
	}

	leave, err := ic.enter(st.Address)
	if err != nil {
		return nil, err
	}
	defer leave()

	rt := &runtime{
		ic:       ic,
		self:     st.Address,
		caller:   caller,
		code:     c,
		readOnly: readOnly || md.Safe,
	}

	var res stackitem.Item

	err = ic.nest(func() error {
		var err error
		res, err = c.Contract.Invoke(rt, method, items)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call %s of %s: %w", method, address.Uint160ToString(st.Address), err)
	}

	if res == nil {
		res = stackitem.Null{}
	}

	return res, nil
}
