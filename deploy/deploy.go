/*
Package deploy provides deployment procedure of the bundled units into the
Host.
*/
package deploy

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/subcontract/contracts/parent"
	"github.com/nspcc-dev/subcontract/host"
	"github.com/nspcc-dev/subcontract/interop"
	rpcparent "github.com/nspcc-dev/subcontract/rpc/parent"
	"go.uber.org/zap"
)

// Host groups services of the unit host required for deployment.
type Host interface {
	// RegisterCode uploads code into the Host. RegisterCode returns
	// host.ErrCodeExists along with the selector if the code is already there.
	RegisterCode(m *manifest.Manifest, c interop.Contract) (interop.CodeSelector, error)

	// UnitState returns record of the unit at the given address.
	// UnitState returns interop.ErrUnitNotFound if there is no such unit.
	UnitState(util.Uint160) (host.UnitState, error)

	// Deploy instantiates the unit on behalf of the sender.
	Deploy(ctx context.Context, sender util.Uint160, code interop.CodeSelector, salt []byte, endowment *big.Int, args ...any) (*host.Execution, error)

	// Call executes safe method of the unit.
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// CommonDeployPrm groups common deployment parameters of the unit code.
type CommonDeployPrm struct {
	Manifest manifest.Manifest
	Impl     interop.Contract
}

// ChildContractPrm groups deployment parameters of the Child unit code.
type ChildContractPrm struct {
	Common CommonDeployPrm
}

// ParentContractPrm groups deployment parameters of the Parent unit.
type ParentContractPrm struct {
	Common CommonDeployPrm

	// Version of the Child unit provisioned by the constructor.
	Version uint32

	// Salt of the Parent unit address. Defaults to the version salt.
	Salt []byte

	// Resource amount transferred from the local account to the Parent unit.
	// Quarter of it goes to the Child unit provisioned by the constructor.
	Endowment *big.Int
}

// Prm groups all parameters of the deployment procedure.
type Prm struct {
	// Writes progress into the log.
	Logger *zap.Logger

	// Particular Host instance to deploy units to.
	Host Host

	// Local process account deploying the Parent unit.
	LocalAccount *wallet.Account

	ChildContract  ChildContractPrm
	ParentContract ParentContractPrm
}

// Result describes deployed units.
type Result struct {
	// Code selector of the Child unit.
	Child interop.CodeSelector
	// Parent unit.
	Parent interop.Handle
	// Child unit provisioned by the Parent constructor.
	Constructor interop.Handle
}

// Deploy uploads Child and Parent code into the Host and deploys the Parent
// unit on behalf of the local account.
//
// Deploy is idempotent: already uploaded code and already deployed Parent
// unit are accepted as is. Deployment progress is logged in detail. Summary
// of stages:
//  1. Child code upload
//  2. Parent code upload
//  3. Parent unit deployment (constructor provisions the first Child unit)
//  4. check of the constructor slot
func Deploy(ctx context.Context, prm Prm) (Result, error) {
	var res Result

	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	if prm.LocalAccount == nil {
		return res, errors.New("missing local account")
	}

	prm.Logger.Info("uploading Child code...")

	childCode, err := uploadCode(prm.Logger, prm.Host, prm.ChildContract.Common)
	if err != nil {
		return res, fmt.Errorf("upload Child code: %w", err)
	}

	res.Child = childCode

	prm.Logger.Info("uploading Parent code...")

	parentCode, err := uploadCode(prm.Logger, prm.Host, prm.ParentContract.Common)
	if err != nil {
		return res, fmt.Errorf("upload Parent code: %w", err)
	}

	salt := prm.ParentContract.Salt
	if len(salt) == 0 {
		salt = interop.VersionSalt(prm.ParentContract.Version)
	}

	res.Parent = interop.Handle{
		Address: host.DeriveAddress(prm.LocalAccount.ScriptHash(), parentCode, salt),
		Code:    parentCode,
	}

	l := prm.Logger.With(zap.String("address", address.Uint160ToString(res.Parent.Address)))

	l.Info("deploying Parent unit...")

	err = deployParent(ctx, l, prm, res.Parent, salt, childCode)
	if err != nil {
		return res, fmt.Errorf("deploy Parent unit: %w", err)
	}

	h, err := rpcparent.NewReader(prm.Host, res.Parent.Address).HandleOf(parent.SlotConstructor)
	if err != nil {
		return res, fmt.Errorf("read constructor slot of the Parent unit: %w", err)
	}

	if h == nil {
		return res, errors.New("constructor slot of the Parent unit is empty")
	}

	res.Constructor = *h

	l.Info("Parent unit is ready", zap.Stringer("constructor", res.Constructor))

	return res, nil
}

func uploadCode(l *zap.Logger, h Host, prm CommonDeployPrm) (interop.CodeSelector, error) {
	sel, err := h.RegisterCode(&prm.Manifest, prm.Impl)
	if err != nil {
		if !errors.Is(err, host.ErrCodeExists) {
			return sel, err
		}

		l.Info("code is already uploaded, skip", zap.String("name", prm.Manifest.Name), zap.Stringer("selector", sel))

		return sel, nil
	}

	l.Info("code successfully uploaded", zap.String("name", prm.Manifest.Name), zap.Stringer("selector", sel))

	return sel, nil
}

func deployParent(ctx context.Context, l *zap.Logger, prm Prm, expected interop.Handle, salt []byte, childCode interop.CodeSelector) error {
	st, err := prm.Host.UnitState(expected.Address)
	if err == nil {
		if st.Code != expected.Code {
			return fmt.Errorf("address is occupied by the unit running different code %s", st.Code)
		}

		l.Info("Parent unit is already deployed, skip", zap.Uint32("height", st.Height))

		return nil
	}

	if !errors.Is(err, interop.ErrUnitNotFound) {
		return fmt.Errorf("check unit presence: %w", err)
	}

	exec, err := prm.Host.Deploy(ctx, prm.LocalAccount.ScriptHash(), expected.Code, salt, prm.ParentContract.Endowment,
		prm.ParentContract.Version, childCode)
	if err != nil {
		return err
	}

	if exec.State != vmstate.Halt {
		return fmt.Errorf("instantiation failed: %w", exec.Err)
	}

	evs, err := rpcparent.ProvisionedEventsFromResult(exec.Result())
	if err != nil {
		return fmt.Errorf("parse notifications: %w", err)
	}

	for i := range evs {
		l.Info("Child unit provisioned",
			zap.String("slot", evs[i].Slot),
			zap.String("address", address.Uint160ToString(evs[i].Address)),
			zap.Stringer("endowment", evs[i].Endowment),
		)
	}

	l.Info("Parent unit successfully deployed", zap.Stringer("session", exec.Session))

	return nil
}
