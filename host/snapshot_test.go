package host

import (
	"context"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/dump"
	"github.com/nspcc-dev/subcontract/interop"
	"github.com/stretchr/testify/require"
)

func collectUnits(tb testing.TB, h *Host) []UnitState {
	var res []UnitState
	require.NoError(tb, h.IterateUnits(func(st UnitState) bool {
		res = append(res, st)
		return true
	}))
	return res
}

func collectStorage(tb testing.TB, h *Host, addr util.Uint160) map[string]string {
	res := make(map[string]string)
	require.NoError(tb, h.IterateStorage(addr, func(k, v []byte) bool {
		res[string(k)] = string(v)
		return true
	}))
	return res
}

func TestExportImport(t *testing.T) {
	env := newTestEnv(t, Options{})
	dir := t.TempDir()

	u1 := env.deploy(t, "u1", 300)
	u2 := env.deploy(t, "u2", 0)
	requireHalt(t, env.invoke(t, u1.Address, "put", []byte("k"), []byte("v")))

	id, err := env.host.Export(dir, "test")
	require.NoError(t, err)
	require.Equal(t, dump.ID{Label: "test", Height: 4}, id)

	_, err = env.host.Export(dir, "test")
	require.Error(t, err)

	r, err := dump.Open(dir, id)
	require.NoError(t, err)

	imported := newTestHost(t, Options{})
	_, err = imported.RegisterCode(probeManifest("probe"), probe{})
	require.NoError(t, err)

	require.NoError(t, imported.Import(r))

	require.Equal(t, collectUnits(t, env.host), collectUnits(t, imported))

	for _, addr := range []util.Uint160{u1.Address, u2.Address} {
		require.Equal(t, collectStorage(t, env.host, addr), collectStorage(t, imported, addr))
	}

	requireBalance(t, imported, env.owner, 700)
	requireBalance(t, imported, u1.Address, 300)
	requireBalance(t, imported, u2.Address, 0)

	height, err := imported.Height()
	require.NoError(t, err)
	require.EqualValues(t, 1, height)

	exec, err := imported.Invoke(context.Background(), env.owner, u1.Address, "get", []byte("k"))
	require.NoError(t, err)
	requireHalt(t, exec)
	require.Equal(t, stackitem.NewByteArray([]byte("v")), exec.Stack[0])

	require.ErrorIs(t, imported.Import(r), interop.ErrAddressCollision)

	require.NoError(t, imported.Mint(context.Background(), env.owner, big.NewInt(1)))
	requireBalance(t, imported, env.owner, 701)
}
