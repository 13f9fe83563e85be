package interop

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Causes of InstantiationError.
var (
	// ErrAddressCollision is returned when the derived address is already
	// occupied by another unit.
	ErrAddressCollision = errors.New("unit with the same address already exists")
	// ErrUnknownCode is returned when the code selector does not name any
	// code known to the host.
	ErrUnknownCode = errors.New("unknown code selector")
	// ErrInsufficientBalance is returned when the deployer can not afford
	// the requested endowment.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNegativeEndowment is returned for endowments below zero.
	ErrNegativeEndowment = errors.New("negative endowment")
	// ErrForeignDeployer is returned when a unit tries to instantiate on
	// behalf of another deployer.
	ErrForeignDeployer = errors.New("deployer is not the executing unit")
)

// Causes of DereferenceError.
var (
	// ErrUnitNotFound is returned when there is no unit at the address.
	ErrUnitNotFound = errors.New("unit not found")
	// ErrCodeMismatch is returned when the unit runs code different from the
	// expected one.
	ErrCodeMismatch = errors.New("unit runs different code")
)

var (
	// ErrUnknownMethod is returned when the called method is not declared by
	// the code's manifest.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrReentrantCall is returned when the called unit is already executing.
	ErrReentrantCall = errors.New("reentrant call")
	// ErrReadOnly is returned on state modification attempts from safe
	// methods.
	ErrReadOnly = errors.New("read-only context")
)

// InstantiationError describes failed unit instantiation.
type InstantiationError struct {
	Deployer util.Uint160
	// Address derived for the new unit.
	Address util.Uint160
	Code    CodeSelector
	Cause   error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("instantiate unit %s with code %s by %s: %v",
		address.Uint160ToString(e.Address), e.Code, address.Uint160ToString(e.Deployer), e.Cause)
}

// Unwrap returns cause of the failure.
func (e *InstantiationError) Unwrap() error {
	return e.Cause
}

// DereferenceError describes failed handle resolution.
type DereferenceError struct {
	Handle Handle
	Cause  error
}

func (e *DereferenceError) Error() string {
	return fmt.Sprintf("dereference handle %s: %v", e.Handle, e.Cause)
}

// Unwrap returns cause of the failure.
func (e *DereferenceError) Unwrap() error {
	return e.Cause
}
