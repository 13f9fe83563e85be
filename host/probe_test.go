package host

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/common"
	"github.com/nspcc-dev/subcontract/interop"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// probe is a unit exercising Runtime services.
type probe struct{}

const probeEvent = "Touched"

var errProbeFailure = errors.New("probe failure")

func probeManifest(name string) *manifest.Manifest {
	param := func(name string, typ smartcontract.ParamType) manifest.Parameter {
		return manifest.Parameter{Name: name, Type: typ}
	}

	var (
		key      = param("key", smartcontract.ByteArrayType)
		value    = param("value", smartcontract.ByteArrayType)
		code     = param("code", smartcontract.Hash256Type)
		addr     = param("address", smartcontract.Hash160Type)
		salt     = param("salt", smartcontract.ByteArrayType)
		endow    = param("endowment", smartcontract.IntegerType)
		spawnPrm = []manifest.Parameter{code, salt, endow, value}
	)

	m := manifest.NewManifest(name)
	m.ABI.Methods = []manifest.Method{
		{Name: interop.DeployMethod, Parameters: []manifest.Parameter{value}, ReturnType: smartcontract.VoidType},
		{Name: "put", Parameters: []manifest.Parameter{key, value}, ReturnType: smartcontract.VoidType},
		{Name: "get", Parameters: []manifest.Parameter{key}, ReturnType: smartcontract.ByteArrayType, Safe: true},
		{Name: "putSafe", Parameters: []manifest.Parameter{key, value}, ReturnType: smartcontract.VoidType, Safe: true},
		{Name: "find", Parameters: []manifest.Parameter{key}, ReturnType: smartcontract.ArrayType, Safe: true},
		{Name: "panic", ReturnType: smartcontract.VoidType},
		{Name: "fail", ReturnType: smartcontract.VoidType},
		{Name: "reenter", Parameters: []manifest.Parameter{code}, ReturnType: smartcontract.VoidType},
		{Name: "spawn", Parameters: spawnPrm, ReturnType: smartcontract.ArrayType},
		{Name: "spawnSafe", Parameters: spawnPrm, ReturnType: smartcontract.ArrayType, Safe: true},
		{Name: "spawnAndFail", Parameters: spawnPrm, ReturnType: smartcontract.VoidType},
		{Name: "trySpawn", Parameters: spawnPrm, ReturnType: smartcontract.BoolType},
		{Name: "spawnForeign", Parameters: []manifest.Parameter{code, salt}, ReturnType: smartcontract.VoidType},
		{Name: "balance", ReturnType: smartcontract.IntegerType, Safe: true},
		{Name: "caller", ReturnType: smartcontract.Hash160Type, Safe: true},
		{Name: "callGet", Parameters: []manifest.Parameter{addr, code, key}, ReturnType: smartcontract.AnyType, Safe: true},
		{Name: "callPut", Parameters: []manifest.Parameter{addr, code, key, value}, ReturnType: smartcontract.VoidType},
		{Name: "callPutFromSafe", Parameters: []manifest.Parameter{addr, code, key, value}, ReturnType: smartcontract.VoidType, Safe: true},
		{Name: "shout", Parameters: []manifest.Parameter{param("name", smartcontract.StringType)}, ReturnType: smartcontract.VoidType},
		{Name: "log", ReturnType: smartcontract.VoidType},
	}
	m.ABI.Events = []manifest.Event{
		{Name: probeEvent, Parameters: []manifest.Parameter{key}},
	}

	return m
}

func (probe) Deploy(rt interop.Runtime, args []stackitem.Item) error {
	b, err := args[0].TryBytes()
	if err != nil {
		return err
	}

	if string(b) == "fail" {
		return errProbeFailure
	}

	return rt.Storage().Put([]byte("init"), b)
}

func (probe) Invoke(rt interop.Runtime, method string, args []stackitem.Item) (stackitem.Item, error) {
	bytesArg := func(i int) []byte {
		b, err := args[i].TryBytes()
		if err != nil {
			panic(err)
		}
		return b
	}

	codeArg := func(i int) interop.CodeSelector {
		c, err := common.ToCodeSelector(args[i])
		if err != nil {
			panic(err)
		}
		return c
	}

	handleArg := func() interop.Handle {
		addr, err := util.Uint160DecodeBytesBE(bytesArg(0))
		if err != nil {
			panic(err)
		}
		return interop.Handle{Address: addr, Code: codeArg(1)}
	}

	spawn := func() (interop.Ref, error) {
		endowment, err := args[2].TryInteger()
		if err != nil {
			panic(err)
		}
		return rt.Instantiate(rt.ExecutingHash(), codeArg(0), bytesArg(1), endowment, bytesArg(3))
	}

	switch method {
	case "put":
		if err := rt.Storage().Put(bytesArg(0), bytesArg(1)); err != nil {
			return nil, err
		}
		return nil, rt.Notify(probeEvent, bytesArg(0))
	case "get":
		v, err := rt.Storage().Get(bytesArg(0))
		if err != nil || v == nil {
			return stackitem.Null{}, err
		}
		return stackitem.NewByteArray(v), nil
	case "putSafe":
		return nil, rt.Storage().Put(bytesArg(0), bytesArg(1))
	case "find":
		var res []stackitem.Item
		err := rt.Storage().Find(bytesArg(0), func(k, v []byte) bool {
			res = append(res, stackitem.NewByteArray(append([]byte{}, k...)))
			return true
		})
		return stackitem.NewArray(res), err
	case "panic":
		panic("probe panic")
	case "fail":
		return nil, errProbeFailure
	case "reenter":
		ref, err := rt.Resolve(interop.Handle{Address: rt.ExecutingHash(), Code: codeArg(0)})
		if err != nil {
			return nil, err
		}
		return ref.Call("fail")
	case "spawn", "spawnSafe":
		ref, err := spawn()
		if err != nil {
			return nil, err
		}
		return ref.Handle().ToStackItem(), nil
	case "spawnAndFail":
		if _, err := spawn(); err != nil {
			return nil, err
		}
		return nil, errProbeFailure
	case "trySpawn":
		_, err := spawn()
		return stackitem.NewBool(err == nil), nil
	case "spawnForeign":
		_, err := rt.Instantiate(rt.CallingHash(), codeArg(0), bytesArg(1), nil, []byte("foreign"))
		return nil, err
	case "balance":
		b, err := rt.CurrentBalance(rt.ExecutingHash())
		if err != nil {
			return nil, err
		}
		return stackitem.NewBigInteger(b), nil
	case "caller":
		return stackitem.NewByteArray(rt.CallingHash().BytesBE()), nil
	case "callGet":
		ref, err := rt.Resolve(handleArg())
		if err != nil {
			return nil, err
		}
		return ref.Call("get", bytesArg(2))
	case "callPut", "callPutFromSafe":
		ref, err := rt.Resolve(handleArg())
		if err != nil {
			return nil, err
		}
		return ref.Call("put", bytesArg(2), bytesArg(3))
	case "shout":
		return nil, rt.Notify(string(bytesArg(0)), []byte("x"))
	case "log":
		rt.Log("probe log")
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", interop.ErrUnknownMethod, method)
	}
}

type testEnv struct {
	host  *Host
	code  interop.CodeSelector
	owner util.Uint160
}

func newTestHost(tb testing.TB, opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(tb)
	}

	h, err := New(storage.NewMemoryStore(), opts)
	require.NoError(tb, err)

	tb.Cleanup(func() { require.NoError(tb, h.Close()) })

	return h
}

func newTestEnv(tb testing.TB, opts Options) testEnv {
	h := newTestHost(tb, opts)

	code, err := h.RegisterCode(probeManifest("probe"), probe{})
	require.NoError(tb, err)

	env := testEnv{
		host:  h,
		code:  code,
		owner: util.Uint160{0xAA},
	}

	require.NoError(tb, h.Mint(context.Background(), env.owner, big.NewInt(1000)))

	return env
}

// deploy deploys probe unit from the owner and checks success.
func (e testEnv) deploy(tb testing.TB, salt string, endowment int64) interop.Handle {
	exec, err := e.host.Deploy(context.Background(), e.owner, e.code, []byte(salt), big.NewInt(endowment), []byte(salt))
	require.NoError(tb, err)
	requireHalt(tb, exec)

	var h interop.Handle
	require.NoError(tb, h.FromStackItem(exec.Stack[0]))

	return h
}

func (e testEnv) invoke(tb testing.TB, addr util.Uint160, method string, args ...any) *Execution {
	exec, err := e.host.Invoke(context.Background(), e.owner, addr, method, args...)
	require.NoError(tb, err)
	return exec
}

func requireHalt(tb testing.TB, exec *Execution) {
	require.Equal(tb, "HALT", exec.State.String(), exec.Err)
	require.NoError(tb, exec.Err)
	require.Len(tb, exec.Stack, 1)
}

func requireFault(tb testing.TB, exec *Execution, target error) {
	require.Equal(tb, "FAULT", exec.State.String())
	require.ErrorIs(tb, exec.Err, target)
	require.Empty(tb, exec.Stack)
	require.Empty(tb, exec.Notifications)
}

func requireBalance(tb testing.TB, h *Host, addr util.Uint160, exp int64) {
	b, err := h.BalanceOf(addr)
	require.NoError(tb, err)
	require.Zero(tb, b.Cmp(big.NewInt(exp)), "expected %d, got %s", exp, b)
}
