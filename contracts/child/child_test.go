package child_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/common"
	"github.com/nspcc-dev/subcontract/contracts"
	"github.com/nspcc-dev/subcontract/contracts/child"
	"github.com/nspcc-dev/subcontract/host"
	"github.com/nspcc-dev/subcontract/interop"
	rpcchild "github.com/nspcc-dev/subcontract/rpc/child"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// holder resolves Child unit by handle and reports its version.
type holder struct{}

func (holder) Deploy(interop.Runtime, []stackitem.Item) error { return nil }

func (holder) Invoke(rt interop.Runtime, _ string, args []stackitem.Item) (stackitem.Item, error) {
	var h interop.Handle
	if err := h.FromStackItem(args[0]); err != nil {
		return nil, err
	}

	sub, err := child.FromHandle(rt, h)
	if err != nil {
		return nil, err
	}

	v, err := sub.Version()
	if err != nil {
		return nil, err
	}

	return stackitem.NewArray([]stackitem.Item{sub.Handle().ToStackItem(), stackitem.Make(v)}), nil
}

func holderManifest() *manifest.Manifest {
	m := manifest.NewManifest("Holder")
	m.ABI.Methods = []manifest.Method{{
		Name:       "versionOf",
		Parameters: []manifest.Parameter{{Name: "handle", Type: smartcontract.ArrayType}},
		ReturnType: smartcontract.ArrayType,
		Safe:       true,
	}}
	return m
}

type testEnv struct {
	host   *host.Host
	owner  util.Uint160
	child  interop.CodeSelector
	holder util.Uint160
}

func newTestEnv(t *testing.T) testEnv {
	h, err := host.New(storage.NewMemoryStore(), host.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, h.Close()) })

	c, err := contracts.Child()
	require.NoError(t, err)

	e := testEnv{host: h, owner: util.Uint160{0x0C}}

	e.child, err = h.RegisterCode(&c.Manifest, c.Impl)
	require.NoError(t, err)

	holderCode, err := h.RegisterCode(holderManifest(), holder{})
	require.NoError(t, err)

	exec, err := h.Deploy(context.Background(), e.owner, holderCode, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "HALT", exec.State.String(), exec.Err)
	e.holder = exec.Contract

	return e
}

func (e testEnv) deploy(t *testing.T, salt string, value any) interop.Handle {
	exec, err := e.host.Deploy(context.Background(), e.owner, e.child, []byte(salt), big.NewInt(0), value)
	require.NoError(t, err)
	require.Equal(t, "HALT", exec.State.String(), exec.Err)

	var h interop.Handle
	require.NoError(t, h.FromStackItem(exec.Stack[0]))

	return h
}

func TestGet(t *testing.T) {
	e := newTestEnv(t)

	for _, tc := range []struct {
		name  string
		value any
		check func(t *testing.T, item stackitem.Item)
	}{
		{name: "integer", value: 1111, check: func(t *testing.T, item stackitem.Item) {
			n, err := item.TryInteger()
			require.NoError(t, err)
			require.EqualValues(t, 1111, n.Int64())
		}},
		{name: "string", value: "value", check: func(t *testing.T, item stackitem.Item) {
			b, err := item.TryBytes()
			require.NoError(t, err)
			require.Equal(t, "value", string(b))
		}},
		{name: "bool", value: true, check: func(t *testing.T, item stackitem.Item) {
			b, err := item.TryBool()
			require.NoError(t, err)
			require.True(t, b)
		}},
		{name: "null", value: nil, check: func(t *testing.T, item stackitem.Item) {
			require.Equal(t, stackitem.Null{}, item)
		}},
		{name: "array", value: []any{1, "x"}, check: func(t *testing.T, item stackitem.Item) {
			arr, ok := item.Value().([]stackitem.Item)
			require.True(t, ok)
			require.Len(t, arr, 2)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := e.deploy(t, tc.name, tc.value)
			r := rpcchild.NewReader(e.host, h.Address)

			item, err := r.Get()
			require.NoError(t, err)
			tc.check(t, item)

			v, err := r.Version()
			require.NoError(t, err)
			require.EqualValues(t, common.Version, v.Int64())
		})
	}
}

func TestConstructorArguments(t *testing.T) {
	e := newTestEnv(t)

	exec, err := e.host.Deploy(context.Background(), e.owner, e.child, []byte("none"), nil)
	require.NoError(t, err)
	require.Equal(t, "FAULT", exec.State.String())
	require.ErrorIs(t, exec.Err, interop.ErrUnknownMethod)

	exec, err = e.host.Deploy(context.Background(), e.owner, e.child, []byte("two"), nil, 1, 2)
	require.NoError(t, err)
	require.Equal(t, "FAULT", exec.State.String())
	require.ErrorIs(t, exec.Err, interop.ErrUnknownMethod)
}

func TestSubunit(t *testing.T) {
	e := newTestEnv(t)
	h := e.deploy(t, "sub", 1)

	exec, err := e.host.TestInvoke(context.Background(), e.owner, e.holder, "versionOf", h)
	require.NoError(t, err)
	require.Equal(t, "HALT", exec.State.String(), exec.Err)

	arr := exec.Stack[0].Value().([]stackitem.Item)

	var got interop.Handle
	require.NoError(t, got.FromStackItem(arr[0]))
	require.Equal(t, h, got)

	n, err := arr[1].TryInteger()
	require.NoError(t, err)
	require.EqualValues(t, common.Version, n.Int64())

	for _, tc := range []struct {
		name  string
		h     interop.Handle
		cause error
	}{
		{name: "zero", h: interop.Handle{}, cause: interop.ErrUnitNotFound},
		{name: "missing", h: interop.Handle{Address: util.Uint160{1}, Code: e.child}, cause: interop.ErrUnitNotFound},
		{name: "other code", h: interop.Handle{Address: h.Address, Code: interop.CodeSelector{1}}, cause: interop.ErrCodeMismatch},
	} {
		t.Run(tc.name, func(t *testing.T) {
			exec, err := e.host.TestInvoke(context.Background(), e.owner, e.holder, "versionOf", tc.h)
			require.NoError(t, err)
			require.Equal(t, "FAULT", exec.State.String())

			var derefErr *interop.DereferenceError
			require.ErrorAs(t, exec.Err, &derefErr)
			require.Equal(t, tc.h, derefErr.Handle)
			require.ErrorIs(t, exec.Err, tc.cause)
		})
	}
}
