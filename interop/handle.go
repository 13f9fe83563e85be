package interop

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// HandleLen is the length of Handle binary form.
const HandleLen = util.Uint160Size + CodeSelectorLen

// Handle is a durable reference to a provisioned unit. It is sufficient to
// reconstruct a callable reference to the unit at any later time, see
// Runtime.Resolve.
//
// Zero Handle never resolves.
type Handle struct {
	// Address of the unit.
	Address util.Uint160
	// Code the unit is expected to run.
	Code CodeSelector
}

var errInvalidHandle = errors.New("invalid handle")

// IsZero checks whether h is unset.
func (h Handle) IsZero() bool {
	return h.Address.Equals(util.Uint160{}) && h.Code.IsZero()
}

// String returns Neo address of the unit and its code selector separated
// by '@'.
func (h Handle) String() string {
	return address.Uint160ToString(h.Address) + "@" + h.Code.String()
}

// EncodeBinary implements io.Serializable.
func (h *Handle) EncodeBinary(w *io.BinWriter) {
	h.Address.EncodeBinary(w)
	w.WriteBytes(h.Code[:])
}

// DecodeBinary implements io.Serializable.
func (h *Handle) DecodeBinary(r *io.BinReader) {
	h.Address.DecodeBinary(r)
	r.ReadBytes(h.Code[:])
}

// Bytes returns binary form of h.
func (h Handle) Bytes() []byte {
	w := io.NewBufBinWriter()
	h.EncodeBinary(w.BinWriter)
	return w.Bytes()
}

// DecodeHandleBytes decodes Handle from its binary form.
func DecodeHandleBytes(b []byte) (Handle, error) {
	var h Handle
	if len(b) != HandleLen {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", errInvalidHandle, HandleLen, len(b))
	}

	r := io.NewBinReaderFromBuf(b)
	h.DecodeBinary(r)

	return h, r.Err
}

// ToStackItem returns h as a two-element struct: big-endian address bytes
// and code selector bytes.
func (h Handle) ToStackItem() stackitem.Item {
	return stackitem.NewStruct([]stackitem.Item{
		stackitem.NewByteArray(h.Address.BytesBE()),
		stackitem.NewByteArray(h.Code[:]),
	})
}

// FromStackItem decodes h from the result of ToStackItem. Both Struct and
// Array items are accepted.
func (h *Handle) FromStackItem(item stackitem.Item) error {
	fields, ok := item.Value().([]stackitem.Item)
	if !ok {
		return fmt.Errorf("%w: not a struct", errInvalidHandle)
	}

	if len(fields) != 2 {
		return fmt.Errorf("%w: wrong number of fields %d", errInvalidHandle, len(fields))
	}

	b, err := fields[0].TryBytes()
	if err != nil {
		return fmt.Errorf("%w: address: %w", errInvalidHandle, err)
	}

	addr, err := util.Uint160DecodeBytesBE(b)
	if err != nil {
		return fmt.Errorf("%w: address: %w", errInvalidHandle, err)
	}

	b, err = fields[1].TryBytes()
	if err != nil {
		return fmt.Errorf("%w: code: %w", errInvalidHandle, err)
	}

	code, err := DecodeCodeSelectorBytes(b)
	if err != nil {
		return fmt.Errorf("%w: code: %w", errInvalidHandle, err)
	}

	h.Address = addr
	h.Code = code

	return nil
}
