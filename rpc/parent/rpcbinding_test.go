package parent

import (
	"errors"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/subcontract/interop"
	"github.com/stretchr/testify/require"
)

type testAct struct {
	err error
	res *result.Invoke

	operation string
	params    []any
}

func (t *testAct) Call(_ util.Uint160, operation string, params ...any) (*result.Invoke, error) {
	t.operation, t.params = operation, params
	return t.res, t.err
}

func (t *testAct) Invoke(_ util.Uint160, operation string, params ...any) (*result.Invoke, error) {
	t.operation, t.params = operation, params
	return t.res, t.err
}

func halt(items ...stackitem.Item) *result.Invoke {
	return &result.Invoke{State: "HALT", Stack: items}
}

func testHandle() interop.Handle {
	return interop.Handle{
		Address: util.Uint160{1, 2, 3},
		Code:    interop.CodeSelector{4, 5, 6},
	}
}

func TestReaderErrors(t *testing.T) {
	ta := new(testAct)
	r := NewReader(ta, util.Uint160{1, 2, 3})

	ta.err = errors.New("bad")
	_, err := r.GetFromConstructor()
	require.Error(t, err)
	_, err = r.HandleOf("constructor")
	require.Error(t, err)
	_, err = r.Nonce()
	require.Error(t, err)

	ta.err = nil
	ta.res = &result.Invoke{State: "FAULT", FaultException: "unit not found"}
	_, err = r.GetFromMethod()
	require.ErrorContains(t, err, "unit not found")

	ta.res = halt(stackitem.Make(1))
	_, err = r.HandleOf("method")
	require.Error(t, err)
}

func TestReader(t *testing.T) {
	ta := new(testAct)
	r := NewReader(ta, util.Uint160{1, 2, 3})

	ta.res = halt(stackitem.Make(1111))

	item, err := r.GetFromConstructor()
	require.NoError(t, err)
	require.Equal(t, "getFromConstructor", ta.operation)
	require.Equal(t, stackitem.Make(1111), item)

	_, err = r.GetFrom("any")
	require.NoError(t, err)
	require.Equal(t, "getFrom", ta.operation)
	require.Equal(t, []any{"any"}, ta.params)

	n, err := r.Nonce()
	require.NoError(t, err)
	require.EqualValues(t, 1111, n.Int64())

	ta.res = halt(stackitem.Null{})
	h, err := r.HandleOf("method")
	require.NoError(t, err)
	require.Nil(t, h)

	exp := testHandle()
	ta.res = halt(exp.ToStackItem())
	h, err = r.HandleOf("method")
	require.NoError(t, err)
	require.Equal(t, &exp, h)
}

func TestContract(t *testing.T) {
	ta := new(testAct)
	c := New(ta, util.Uint160{1, 2, 3})
	code := interop.CodeSelector{7}

	ta.res = &result.Invoke{State: "FAULT", FaultException: "collision"}
	_, err := c.Deploy(2, code)
	require.ErrorContains(t, err, "invocation failed: collision")
	require.Equal(t, []any{uint32(2), code}, ta.params)

	ta.res = halt(stackitem.Null{})
	_, err = c.Deploy(2, code)
	require.NoError(t, err)

	ta.err = errors.New("bad")
	_, err = c.Deploy(2, code)
	require.Error(t, err)

	_, err = c.Provision("slot", 1, 1, code)
	require.Error(t, err)

	ta.err = nil
	exp := testHandle()
	ta.res = halt(exp.ToStackItem())

	h, err := c.Provision("slot", 1, 1, code)
	require.NoError(t, err)
	require.Equal(t, exp, h)
	require.Equal(t, "provision", ta.operation)

	h, err = c.ProvisionNext("slot", 1, code)
	require.NoError(t, err)
	require.Equal(t, exp, h)
	require.Equal(t, "provisionNext", ta.operation)

	ta.res = halt(stackitem.Null{})
	_, err = c.ProvisionNext("slot", 1, code)
	require.Error(t, err)
}

func TestProvisionedEvent(t *testing.T) {
	h := testHandle()

	valid := func() []stackitem.Item {
		return []stackitem.Item{
			stackitem.NewByteArray([]byte("constructor")),
			stackitem.NewByteArray(h.Address.BytesBE()),
			stackitem.NewByteArray(h.Code[:]),
			stackitem.Make(250),
		}
	}

	var e ProvisionedEvent
	require.NoError(t, e.FromStackItem(stackitem.NewArray(valid())))
	require.Equal(t, ProvisionedEvent{
		Slot:      "constructor",
		Address:   h.Address,
		Code:      h.Code,
		Endowment: big.NewInt(250),
	}, e)

	require.Error(t, e.FromStackItem(nil))
	require.Error(t, e.FromStackItem(stackitem.NewArray(valid()[:3])))

	for i, name := range []string{"Slot", "Address", "Code", "Endowment"} {
		items := valid()
		items[i] = stackitem.NewArray(nil)
		require.ErrorContains(t, e.FromStackItem(stackitem.NewArray(items)), "field "+name)
	}

	items := valid()
	items[0] = stackitem.NewByteArray([]byte{0xff, 0xfe})
	require.ErrorContains(t, e.FromStackItem(stackitem.NewArray(items)), "field Slot")

	_, err := ProvisionedEventsFromResult(nil)
	require.Error(t, err)

	evs, err := ProvisionedEventsFromResult(&result.Invoke{
		Notifications: []state.NotificationEvent{
			{Name: "Instantiated", Item: stackitem.NewArray(nil)},
			{Name: "Provisioned", Item: stackitem.NewArray(valid())},
		},
	})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Equal(t, "constructor", evs[0].Slot)

	_, err = ProvisionedEventsFromResult(&result.Invoke{
		Notifications: []state.NotificationEvent{
			{Name: "Provisioned", Item: stackitem.NewArray(valid()[:1])},
		},
	})
	require.Error(t, err)
}
