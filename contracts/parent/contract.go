package parent

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/common"
	"github.com/nspcc-dev/subcontract/contracts/child"
	"github.com/nspcc-dev/subcontract/interop"
)

// Methods of the Parent unit.
const (
	MethodDeploy             = "deploy"
	MethodProvision          = "provision"
	MethodProvisionNext      = "provisionNext"
	MethodGetFromConstructor = "getFromConstructor"
	MethodGetFromMethod      = "getFromMethod"
	MethodGetFrom            = "getFrom"
	MethodHandleOf           = "handleOf"
	MethodNonce              = "nonce"
	MethodVersion            = "version"
)

// EventProvisioned is the name of the notification about new Child unit.
const EventProvisioned = "Provisioned"

// Slots filled by the dedicated methods.
const (
	SlotConstructor = "constructor"
	SlotMethod      = "method"
)

// Values of the Child units provisioned by the dedicated methods.
const (
	ConstructorValue = 1111
	MethodValue      = 9999
)

// MaxSlotLen is the maximum length of the slot name in bytes.
const MaxSlotLen = 64

const (
	handlePrefix = 'h'
	nonceKey     = "n"

	// share of the current balance passed to the new unit
	endowmentDivisor = 4
)

var errInvalidSlot = errors.New("invalid slot name")

// Contract is the code of the Parent unit.
type Contract struct{}

// Deploy provisions Child unit with value 1111 into 'constructor' slot.
// Arguments are the version number used as the salt and the code selector of
// the Child unit.
func (Contract) Deploy(rt interop.Runtime, args []stackitem.Item) error {
	version, code, err := versionAndCode(args[0], args[1])
	if err != nil {
		return err
	}

	_, err = provision(rt, SlotConstructor, stackitem.Make(ConstructorValue), interop.VersionSalt(version), code)
	if err != nil {
		return fmt.Errorf("failed at instantiating the new unit: %w", err)
	}

	rt.Log("parent unit initialized")

	return nil
}

// Invoke implements interop.Contract.
func (Contract) Invoke(rt interop.Runtime, method string, args []stackitem.Item) (stackitem.Item, error) {
	switch method {
	case MethodDeploy:
		version, code, err := versionAndCode(args[0], args[1])
		if err != nil {
			return nil, err
		}

		_, err = provision(rt, SlotMethod, stackitem.Make(MethodValue), interop.VersionSalt(version), code)
		if err != nil {
			return nil, fmt.Errorf("failed at instantiating the new unit: %w", err)
		}

		return stackitem.Null{}, nil
	case MethodProvision:
		slot, err := slotName(args[0])
		if err != nil {
			return nil, err
		}

		version, code, err := versionAndCode(args[2], args[3])
		if err != nil {
			return nil, err
		}

		h, err := provision(rt, slot, args[1], interop.VersionSalt(version), code)
		if err != nil {
			return nil, fmt.Errorf("failed at instantiating the new unit: %w", err)
		}

		return h.ToStackItem(), nil
	case MethodProvisionNext:
		return provisionNext(rt, args)
	case MethodGetFromConstructor:
		return forward(rt, SlotConstructor)
	case MethodGetFromMethod:
		return forward(rt, SlotMethod)
	case MethodGetFrom:
		slot, err := slotName(args[0])
		if err != nil {
			return nil, err
		}

		return forward(rt, slot)
	case MethodHandleOf:
		slot, err := slotName(args[0])
		if err != nil {
			return nil, err
		}

		h, err := handleOf(rt, slot)
		if err != nil {
			return nil, err
		}

		if h.IsZero() {
			return stackitem.Null{}, nil
		}

		return h.ToStackItem(), nil
	case MethodNonce:
		n, err := nonce(rt)
		if err != nil {
			return nil, err
		}

		return stackitem.NewBigInteger(new(big.Int).SetUint64(n)), nil
	case MethodVersion:
		return stackitem.Make(common.Version), nil
	default:
		return nil, fmt.Errorf("%w: %s", interop.ErrUnknownMethod, method)
	}
}

// provision instantiates new Child unit with the given value and salt and
// endows it with the quarter of the current balance. The handle of the new
// unit is stored in the slot overwriting the previous one. On failure, the
// slot stays unchanged.
func provision(rt interop.Runtime, slot string, value stackitem.Item, salt []byte, code interop.CodeSelector) (interop.Handle, error) {
	self := rt.ExecutingHash()

	balance, err := rt.CurrentBalance(self)
	if err != nil {
		return interop.Handle{}, fmt.Errorf("get current balance: %w", err)
	}

	endowment := new(big.Int).Quo(balance, big.NewInt(endowmentDivisor))

	ref, err := rt.Instantiate(self, code, salt, endowment, value)
	if err != nil {
		return interop.Handle{}, err
	}

	h := ref.Handle()

	err = rt.Storage().Put(handleKey(slot), h.Bytes())
	if err != nil {
		return h, fmt.Errorf("save handle: %w", err)
	}

	err = rt.Notify(EventProvisioned, slot, h.Address, h.Code, endowment)
	if err != nil {
		return h, fmt.Errorf("notify: %w", err)
	}

	return h, nil
}

func provisionNext(rt interop.Runtime, args []stackitem.Item) (stackitem.Item, error) {
	slot, err := slotName(args[0])
	if err != nil {
		return nil, err
	}

	code, err := common.ToCodeSelector(args[2])
	if err != nil {
		return nil, fmt.Errorf("invalid code selector: %w", err)
	}

	n, err := nonce(rt)
	if err != nil {
		return nil, err
	}

	h, err := provision(rt, slot, args[1], interop.NonceSalt(n), code)
	if err != nil {
		return nil, fmt.Errorf("failed at instantiating the new unit: %w", err)
	}

	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n+1)

	err = rt.Storage().Put([]byte(nonceKey), b)
	if err != nil {
		return nil, fmt.Errorf("save nonce: %w", err)
	}

	return h.ToStackItem(), nil
}

// forward reads the value of the Child unit referenced by the slot. Empty slot
// holds zero handle which never resolves.
func forward(rt interop.Runtime, slot string) (stackitem.Item, error) {
	h, err := handleOf(rt, slot)
	if err != nil {
		return nil, err
	}

	sub, err := child.FromHandle(rt, h)
	if err != nil {
		return nil, fmt.Errorf("resolve unit in slot %s: %w", slot, err)
	}

	return sub.Get()
}

func handleOf(rt interop.Runtime, slot string) (interop.Handle, error) {
	b, err := rt.Storage().Get(handleKey(slot))
	if err != nil {
		return interop.Handle{}, fmt.Errorf("read handle: %w", err)
	}

	if b == nil {
		return interop.Handle{}, nil
	}

	h, err := interop.DecodeHandleBytes(b)
	if err != nil {
		return h, fmt.Errorf("decode handle from slot %s: %w", slot, err)
	}

	return h, nil
}

func nonce(rt interop.Runtime) (uint64, error) {
	b, err := rt.Storage().Get([]byte(nonceKey))
	if err != nil {
		return 0, fmt.Errorf("read nonce: %w", err)
	}

	if b == nil {
		return 0, nil
	}

	if len(b) != 8 {
		return 0, fmt.Errorf("invalid nonce length %d", len(b))
	}

	return binary.LittleEndian.Uint64(b), nil
}

func handleKey(slot string) []byte {
	return append([]byte{handlePrefix}, slot...)
}

func slotName(item stackitem.Item) (string, error) {
	s, err := common.ToString(item)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidSlot, err)
	}

	if s == "" || len(s) > MaxSlotLen {
		return "", fmt.Errorf("%w: length must be in [1, %d]", errInvalidSlot, MaxSlotLen)
	}

	return s, nil
}

func versionAndCode(versionItem, codeItem stackitem.Item) (uint32, interop.CodeSelector, error) {
	version, err := common.ToUint32(versionItem)
	if err != nil {
		return 0, interop.CodeSelector{}, fmt.Errorf("invalid version: %w", err)
	}

	code, err := common.ToCodeSelector(codeItem)
	if err != nil {
		return 0, interop.CodeSelector{}, fmt.Errorf("invalid code selector: %w", err)
	}

	return version, code, nil
}
