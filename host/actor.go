package host

import (
	"context"

	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Actor calls units on behalf of the fixed sender. Actor is suitable for RPC
// bindings: Call provides read-only access, Invoke commits.
type Actor struct {
	ctx    context.Context
	host   *Host
	sender util.Uint160
}

// NewActor returns Actor sending operations from the given account within
// the given context.
func (h *Host) NewActor(ctx context.Context, sender util.Uint160) *Actor {
	return &Actor{
		ctx:    ctx,
		host:   h,
		sender: sender,
	}
}

// Sender returns account the Actor acts on behalf of.
func (a *Actor) Sender() util.Uint160 {
	return a.sender
}

// Call executes the method without committing its results.
func (a *Actor) Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error) {
	exec, err := a.host.TestInvoke(a.ctx, a.sender, contract, operation, params...)
	if err != nil {
		return nil, err
	}

	return exec.Result(), nil
}

// Invoke executes the method and commits its results. Failed execution is
// returned with FAULT state and nil error.
func (a *Actor) Invoke(contract util.Uint160, operation string, params ...any) (*result.Invoke, error) {
	exec, err := a.host.Invoke(a.ctx, a.sender, contract, operation, params...)
	if err != nil {
		return nil, err
	}

	return exec.Result(), nil
}
