package host

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/interop"
)

const (
	prefixUnit    = 0x01
	prefixBalance = 0x02
	prefixStorage = 0x03
	keyHeight     = 0x04
)

// UnitState is the record of the instantiated unit.
type UnitState struct {
	Address  util.Uint160
	Code     interop.CodeSelector
	Deployer util.Uint160
	Salt     []byte
	// Height of the operation created the unit.
	Height uint32
}

// Handle returns handle of the unit.
func (s UnitState) Handle() interop.Handle {
	return interop.Handle{Address: s.Address, Code: s.Code}
}

func unitKey(addr util.Uint160) []byte {
	return append([]byte{prefixUnit}, addr.BytesBE()...)
}

func balanceKey(addr util.Uint160) []byte {
	return append([]byte{prefixBalance}, addr.BytesBE()...)
}

func storageKey(addr util.Uint160, key []byte) []byte {
	res := make([]byte, 1+util.Uint160Size+len(key))
	res[0] = prefixStorage
	copy(res[1:], addr.BytesBE())
	copy(res[1+util.Uint160Size:], key)
	return res
}

func encodeUnitState(s UnitState) ([]byte, error) {
	return stackitem.Serialize(stackitem.NewStruct([]stackitem.Item{
		stackitem.NewByteArray(s.Code[:]),
		stackitem.NewByteArray(s.Deployer.BytesBE()),
		stackitem.NewByteArray(s.Salt),
		stackitem.NewBigInteger(big.NewInt(int64(s.Height))),
	}))
}

func decodeUnitState(addr util.Uint160, data []byte) (UnitState, error) {
	res := UnitState{Address: addr}

	item, err := stackitem.Deserialize(data)
	if err != nil {
		return res, err
	}

	fields, ok := item.Value().([]stackitem.Item)
	if !ok {
		return res, errors.New("not a struct")
	}

	if len(fields) != 4 {
		return res, fmt.Errorf("wrong number of fields %d", len(fields))
	}

	b, err := fields[0].TryBytes()
	if err != nil {
		return res, fmt.Errorf("code: %w", err)
	}

	if res.Code, err = interop.DecodeCodeSelectorBytes(b); err != nil {
		return res, fmt.Errorf("code: %w", err)
	}

	b, err = fields[1].TryBytes()
	if err != nil {
		return res, fmt.Errorf("deployer: %w", err)
	}

	if res.Deployer, err = util.Uint160DecodeBytesBE(b); err != nil {
		return res, fmt.Errorf("deployer: %w", err)
	}

	if res.Salt, err = fields[2].TryBytes(); err != nil {
		return res, fmt.Errorf("salt: %w", err)
	}

	n, err := fields[3].TryInteger()
	if err != nil {
		return res, fmt.Errorf("height: %w", err)
	}

	if !n.IsUint64() || n.Uint64() > uint64(^uint32(0)) {
		return res, fmt.Errorf("height: invalid value %s", n)
	}

	res.Height = uint32(n.Uint64())

	return res, nil
}

func encodeBalance(b *big.Int) []byte {
	return bigint.ToBytes(b)
}

func decodeBalance(data []byte) *big.Int {
	return bigint.FromBytes(data)
}
