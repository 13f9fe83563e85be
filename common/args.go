package common

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/interop"
)

var errUnsupportedType = errors.New("unsupported argument type")

// ToStackItem converts Go value into stackitem.Item. Along with basic Go
// types it supports util.Uint160, util.Uint256, interop.CodeSelector and
// interop.Handle. Slices of any are converted to Array recursively.
func ToStackItem(v any) (stackitem.Item, error) {
	switch x := v.(type) {
	case nil:
		return stackitem.Null{}, nil
	case stackitem.Item:
		return x, nil
	case bool:
		return stackitem.NewBool(x), nil
	case int:
		return stackitem.NewBigInteger(big.NewInt(int64(x))), nil
	case int64:
		return stackitem.NewBigInteger(big.NewInt(x)), nil
	case uint32:
		return stackitem.NewBigInteger(big.NewInt(int64(x))), nil
	case uint64:
		return stackitem.NewBigInteger(new(big.Int).SetUint64(x)), nil
	case *big.Int:
		return stackitem.NewBigInteger(x), nil
	case string:
		return stackitem.NewByteArray([]byte(x)), nil
	case []byte:
		return stackitem.NewByteArray(x), nil
	case util.Uint160:
		return stackitem.NewByteArray(x.BytesBE()), nil
	case util.Uint256:
		return stackitem.NewByteArray(x.BytesBE()), nil
	case interop.CodeSelector:
		return stackitem.NewByteArray(x[:]), nil
	case interop.Handle:
		return x.ToStackItem(), nil
	case []any:
		items, err := ToStackItems(x)
		if err != nil {
			return nil, err
		}
		return stackitem.NewArray(items), nil
	default:
		return nil, fmt.Errorf("%w %T", errUnsupportedType, v)
	}
}

// ToStackItems converts all values via ToStackItem.
func ToStackItems(vs []any) ([]stackitem.Item, error) {
	res := make([]stackitem.Item, len(vs))

	for i := range vs {
		item, err := ToStackItem(vs[i])
		if err != nil {
			return nil, fmt.Errorf("argument #%d: %w", i, err)
		}

		res[i] = item
	}

	return res, nil
}

// ToUint32 decodes uint32 integer from the item.
func ToUint32(item stackitem.Item) (uint32, error) {
	n, err := item.TryInteger()
	if err != nil {
		return 0, err
	}

	if n.Sign() < 0 || !n.IsUint64() || n.Uint64() > math.MaxUint32 {
		return 0, fmt.Errorf("integer %s overflows uint32", n)
	}

	return uint32(n.Uint64()), nil
}

// ToString decodes UTF-8 string from the item.
func ToString(item stackitem.Item) (string, error) {
	b, err := item.TryBytes()
	if err != nil {
		return "", err
	}

	if !utf8.Valid(b) {
		return "", errors.New("invalid UTF-8 string")
	}

	return string(b), nil
}

// ToCodeSelector decodes code selector from the byte string item.
func ToCodeSelector(item stackitem.Item) (interop.CodeSelector, error) {
	b, err := item.TryBytes()
	if err != nil {
		return interop.CodeSelector{}, err
	}

	return interop.DecodeCodeSelectorBytes(b)
}
