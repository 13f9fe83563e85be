package host

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/subcontract/interop"
	"go.uber.org/zap"
)

// Execution is the result of the top-level Host operation.
type Execution struct {
	// Unique identifier of the operation.
	Session uuid.UUID
	// Account or unit initiated the operation.
	Sender util.Uint160
	// Called unit. For Deploy, it is the address of the new unit.
	Contract util.Uint160
	Method   string

	// Halt if operation succeeded, Fault otherwise.
	State vmstate.State
	// Single result item of the succeeded operation.
	Stack []stackitem.Item
	// Cause of the failure. Wrapped errors are preserved, so errors.Is and
	// errors.As can be used to check interop error types.
	Err error
	// Notifications emitted during the succeeded operation in order.
	Notifications []state.NotificationEvent
}

// Result converts e into the neo-go invocation result.
func (e *Execution) Result() *result.Invoke {
	res := &result.Invoke{
		State:         e.State.String(),
		Stack:         e.Stack,
		Notifications: e.Notifications,
		Session:       e.Session,
	}

	if e.Err != nil {
		res.FaultException = e.Err.Error()
	}

	return res
}

// Deploy instantiates the unit running given code on behalf of the sender
// with the given salt and constructor arguments. Endowment is transferred
// from the sender to the new unit. Resulting stack contains handle of the
// new unit (see interop.Handle.ToStackItem).
//
// Failed instantiation is reported as Fault with *interop.InstantiationError.
// Returned error is non-nil only if the operation can not be executed at all.
func (h *Host) Deploy(ctx context.Context, sender util.Uint160, code interop.CodeSelector, salt []byte, endowment *big.Int, args ...any) (*Execution, error) {
	exec := &Execution{
		Sender:   sender,
		Contract: DeriveAddress(sender, code, salt),
		Method:   interop.DeployMethod,
	}

	return h.execute(ctx, exec, true, func(ic *invocation) (stackitem.Item, error) {
		st, err := ic.instantiate(sender, code, salt, endowment, args)
		if err != nil {
			return nil, err
		}

		return st.Handle().ToStackItem(), nil
	})
}

// Invoke calls the method of the unit on behalf of the sender and commits
// its results.
func (h *Host) Invoke(ctx context.Context, sender, contract util.Uint160, method string, args ...any) (*Execution, error) {
	return h.invoke(ctx, sender, contract, method, true, args)
}

// TestInvoke is like Invoke but discards all changes made by the method.
func (h *Host) TestInvoke(ctx context.Context, sender, contract util.Uint160, method string, args ...any) (*Execution, error) {
	return h.invoke(ctx, sender, contract, method, false, args)
}

// Call implements neo-go Invoker interface used by RPC bindings via
// TestInvoke from zero sender.
func (h *Host) Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error) {
	exec, err := h.TestInvoke(context.Background(), util.Uint160{}, contract, operation, params...)
	if err != nil {
		return nil, err
	}

	return exec.Result(), nil
}

func (h *Host) invoke(ctx context.Context, sender, contract util.Uint160, method string, commit bool, args []any) (*Execution, error) {
	exec := &Execution{
		Sender:   sender,
		Contract: contract,
		Method:   method,
	}

	return h.execute(ctx, exec, commit, func(ic *invocation) (stackitem.Item, error) {
		st, c, err := ic.resolveAddress(contract)
		if err != nil {
			return nil, err
		}

		return ic.call(sender, false, st, c, method, args)
	})
}

// Mint credits the account with the given amount of resource.
func (h *Host) Mint(ctx context.Context, account util.Uint160, amount *big.Int) error {
	if amount == nil {
		return errors.New("missing amount")
	}

	if amount.Sign() < 0 {
		return fmt.Errorf("negative amount %s", amount)
	}

	exec := &Execution{
		Contract: ManagementHash,
		Method:   "mint",
	}

	exec, err := h.execute(ctx, exec, true, func(ic *invocation) (stackitem.Item, error) {
		if err := ic.ctx.Err(); err != nil {
			return nil, err
		}

		b, err := ic.balance(account)
		if err != nil {
			return nil, err
		}

		b.Add(b, amount)
		ic.setBalance(account, b)

		return stackitem.NewBigInteger(b), nil
	})
	if err != nil {
		return err
	}

	if exec.State != vmstate.Halt {
		return exec.Err
	}

	return nil
}

// execute runs f as the top-level operation and commits its results if
// requested.
func (h *Host) execute(ctx context.Context, exec *Execution, commit bool, f func(*invocation) (stackitem.Item, error)) (*Execution, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	ic, err := h.newInvocation(ctx)
	if err != nil {
		return nil, err
	}

	exec.Session = ic.session

	l := h.log.With(
		zap.Stringer("session", exec.Session),
		zap.String("contract", address.Uint160ToString(exec.Contract)),
		zap.String("method", exec.Method),
	)

	item, err := ic.run(f)
	if err != nil {
		exec.State = vmstate.Fault
		exec.Err = err
		h.metrics.observeInvocation(exec.State)

		l.Debug("operation faulted", zap.Error(err))

		return exec, nil
	}

	exec.State = vmstate.Halt
	exec.Stack = []stackitem.Item{item}
	exec.Notifications = ic.notifications

	if commit {
		err = h.commit(ic)
		if err != nil {
			return nil, fmt.Errorf("commit operation results: %w", err)
		}

		l.Debug("operation committed",
			zap.Uint32("height", ic.height),
			zap.Int("notifications", len(ic.notifications)),
			zap.Int("new units", len(ic.created)),
		)
	}

	h.metrics.observeInvocation(exec.State)

	return exec, nil
}

func (ic *invocation) run(f func(*invocation) (stackitem.Item, error)) (item stackitem.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			item = nil
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w", ErrPanic, e)
			} else {
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}
	}()

	item, err = f(ic)
	if err == nil && item == nil {
		err = errors.New("missing result item")
	}

	return item, err
}

func (h *Host) commit(ic *invocation) error {
	ic.store.Put([]byte{keyHeight}, heightBytes(ic.height))

	_, err := ic.store.PersistSync()
	if err != nil {
		return err
	}

	for i := range ic.created {
		h.units.Add(ic.created[i].Address, ic.created[i])
	}

	return nil
}
