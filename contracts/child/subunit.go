package child

import (
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/interop"
)

// Subunit is a callable reference to the Child unit used by other units.
type Subunit struct {
	ref interop.Ref
}

// FromHandle resolves the handle of the Child unit. Returns
// *interop.DereferenceError if there is no such unit.
func FromHandle(rt interop.Runtime, h interop.Handle) (Subunit, error) {
	ref, err := rt.Resolve(h)
	if err != nil {
		return Subunit{}, err
	}

	return Subunit{ref: ref}, nil
}

// Handle returns handle of the referenced unit.
func (x Subunit) Handle() interop.Handle {
	return x.ref.Handle()
}

// Get calls 'get' method of the referenced unit.
func (x Subunit) Get() (stackitem.Item, error) {
	return x.ref.Call(MethodGet)
}

// Version calls 'version' method of the referenced unit.
func (x Subunit) Version() (int64, error) {
	item, err := x.ref.Call(MethodVersion)
	if err != nil {
		return 0, err
	}

	n, err := item.TryInteger()
	if err != nil {
		return 0, err
	}

	return n.Int64(), nil
}
