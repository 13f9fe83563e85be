package interop

import (
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// DeployMethod is the name of the manifest method describing constructor
// parameters of the unit.
const DeployMethod = "_deploy"

// Contract is executable code of a unit.
type Contract interface {
	// Deploy initializes state of the freshly instantiated unit. Deploy is
	// called exactly once per unit, atomically with the unit creation: if it
	// fails, the unit does not exist.
	Deploy(rt Runtime, args []stackitem.Item) error

	// Invoke executes the named method. Method existence and the number of
	// arguments are checked by the host against the code's manifest before
	// the call.
	Invoke(rt Runtime, method string, args []stackitem.Item) (stackitem.Item, error)
}

// Runtime groups host services available to the executing unit.
//
// Runtime is valid only during the call it was passed to.
type Runtime interface {
	// ExecutingHash returns address of the executing unit.
	ExecutingHash() util.Uint160

	// CallingHash returns address of the unit or account which called the
	// executing unit.
	CallingHash() util.Uint160

	// CurrentBalance returns resource balance of the given unit or account.
	CurrentBalance(unit util.Uint160) (*big.Int, error)

	// DeriveAddress returns address of the unit deployed by the given deployer
	// running the given code with the given salt. It is a pure function.
	DeriveAddress(deployer util.Uint160, code CodeSelector, salt []byte) util.Uint160

	// Instantiate materializes new unit at DeriveAddress(deployer, code, salt),
	// transfers the endowment from the deployer to it and calls its
	// constructor with provided arguments. All of it happens atomically.
	//
	// Deployer must be the executing unit. Any failure is returned as
	// *InstantiationError.
	Instantiate(deployer util.Uint160, code CodeSelector, salt []byte, endowment *big.Int, args ...any) (Ref, error)

	// Resolve reconstructs callable reference to the unit referenced by the
	// handle. If there is no unit at the handle's address or the unit runs
	// different code, Resolve returns *DereferenceError.
	Resolve(h Handle) (Ref, error)

	// Storage returns private storage of the executing unit.
	Storage() Storage

	// Notify emits named notification with the given arguments on behalf of
	// the executing unit.
	Notify(name string, args ...any) error

	// Log writes message on behalf of the executing unit.
	Log(msg string)
}

// Ref is a callable reference to the unit.
type Ref interface {
	// Handle returns durable handle of the referenced unit.
	Handle() Handle

	// Call invokes the named method of the referenced unit.
	Call(method string, args ...any) (stackitem.Item, error)
}

// Storage is a private key-value storage of the unit.
type Storage interface {
	// Get returns value stored by the key or nil if there is no such value.
	Get(key []byte) ([]byte, error)

	// Put stores value by the key. Put returns ErrReadOnly in safe methods.
	Put(key, value []byte) error

	// Delete removes value stored by the key. Delete returns ErrReadOnly in
	// safe methods.
	Delete(key []byte) error

	// Find passes all items with keys starting with the given prefix into f in
	// ascending key order. Keys are passed without prefix. Iteration stops
	// when f returns false.
	Find(prefix []byte, f func(key, value []byte) bool) error
}
