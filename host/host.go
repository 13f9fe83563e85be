package host

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/subcontract/interop"
	"go.uber.org/zap"
)

var (
	// ErrCodeExists is returned on repeated registration of the same code.
	ErrCodeExists = errors.New("code is already registered")
	// ErrInvalidManifest is returned on registration of code with incorrect
	// manifest.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrUnknownEvent is returned when the unit emits notification not
	// declared in its manifest.
	ErrUnknownEvent = errors.New("undeclared event")
	// ErrPanic is returned when unit code panics.
	ErrPanic = errors.New("unit code panicked")
	// ErrClosed is returned from operations of the closed Host.
	ErrClosed = errors.New("host is closed")
)

// Code is executable code registered in the Host.
type Code struct {
	Selector interop.CodeSelector
	Manifest manifest.Manifest
	Contract interop.Contract
}

// Options groups optional Host parameters.
type Options struct {
	// Writes operation details and unit logs. Defaults to zap.NewNop.
	Logger *zap.Logger
	// Number of unit records cached in memory. Defaults to DefaultCacheSize.
	CacheSize int
	// Optional metrics.
	Metrics *Metrics
}

// Host executes units. All Host methods are safe for concurrent use,
// operations are executed one by one.
type Host struct {
	log     *zap.Logger
	metrics *Metrics

	mtx    sync.Mutex
	closed bool
	store  storage.Store
	codes  map[interop.CodeSelector]Code
	units  *lru.Cache[util.Uint160, UnitState]
}

// New constructs Host over the given store. The store is closed by Close.
func New(st storage.Store, opts Options) (*Host, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	cache, err := lru.New[util.Uint160, UnitState](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("init unit cache: %w", err)
	}

	return &Host{
		log:     opts.Logger,
		metrics: opts.Metrics,
		store:   st,
		codes:   make(map[interop.CodeSelector]Code),
		units:   cache,
	}, nil
}

// RegisterCode makes code described by the manifest available for
// instantiation and returns its selector. Returns ErrCodeExists if the code
// has already been registered, ErrInvalidManifest if manifest is
// incorrect and ErrClosed after Close.
func (h *Host) RegisterCode(m *manifest.Manifest, c interop.Contract) (interop.CodeSelector, error) {
	if c == nil {
		return interop.CodeSelector{}, errors.New("missing contract implementation")
	}

	if err := checkManifest(m); err != nil {
		return interop.CodeSelector{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	sel, err := interop.NewCodeSelector(m)
	if err != nil {
		return sel, err
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.closed {
		return sel, ErrClosed
	}

	if _, ok := h.codes[sel]; ok {
		return sel, fmt.Errorf("%w: %s (%s)", ErrCodeExists, sel, m.Name)
	}

	h.codes[sel] = Code{Selector: sel, Manifest: *m, Contract: c}

	h.log.Debug("code registered", zap.String("name", m.Name), zap.Stringer("selector", sel))

	return sel, nil
}

func checkManifest(m *manifest.Manifest) error {
	if m == nil {
		return errors.New("missing manifest")
	}

	if m.Name == "" {
		return errors.New("empty name")
	}

	type methodKey struct {
		name   string
		params int
	}

	methods := make(map[methodKey]struct{}, len(m.ABI.Methods))

	for i := range m.ABI.Methods {
		md := &m.ABI.Methods[i]
		if md.Name == "" {
			return fmt.Errorf("method #%d: empty name", i)
		}

		k := methodKey{md.Name, len(md.Parameters)}
		if _, ok := methods[k]; ok {
			return fmt.Errorf("duplicated method %s with %d parameters", md.Name, k.params)
		}

		methods[k] = struct{}{}
	}

	events := make(map[string]struct{}, len(m.ABI.Events))

	for i := range m.ABI.Events {
		if _, ok := events[m.ABI.Events[i].Name]; ok {
			return fmt.Errorf("duplicated event %s", m.ABI.Events[i].Name)
		}

		events[m.ABI.Events[i].Name] = struct{}{}
	}

	return nil
}

// Code returns code registered by the selector.
func (h *Host) Code(sel interop.CodeSelector) (Code, bool) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, ok := h.codes[sel]

	return c, ok
}

// BalanceOf returns resource balance of the given unit or account.
func (h *Host) BalanceOf(addr util.Uint160) (*big.Int, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	return getBalance(h.store, addr)
}

// UnitState returns record of the unit at the given address. Returns
// interop.ErrUnitNotFound if there is no such unit.
func (h *Host) UnitState(addr util.Uint160) (UnitState, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.closed {
		return UnitState{}, ErrClosed
	}

	if st, ok := h.units.Get(addr); ok {
		return st, nil
	}

	st, ok, err := getUnit(h.store, addr)
	if err != nil {
		return st, err
	}

	if !ok {
		return st, fmt.Errorf("%w: %s", interop.ErrUnitNotFound, address.Uint160ToString(addr))
	}

	h.units.Add(addr, st)

	return st, nil
}

// IterateUnits passes records of all units into f in address order until f
// returns false.
func (h *Host) IterateUnits(f func(UnitState) bool) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.closed {
		return ErrClosed
	}

	return iterateUnits(h.store, f)
}

// IterateStorage passes storage items of the given unit into f in key order
// until f returns false.
func (h *Host) IterateStorage(addr util.Uint160, f func(key, value []byte) bool) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.closed {
		return ErrClosed
	}

	for _, kv := range seekPrefix(h.store, storageKey(addr, nil)) {
		if !f(kv.k, kv.v) {
			break
		}
	}

	return nil
}

// Height returns number of operations committed by the Host.
func (h *Host) Height() (uint32, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.closed {
		return 0, ErrClosed
	}

	return getHeight(h.store)
}

// Close closes underlying store. The Host becomes unusable.
func (h *Host) Close() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.closed {
		return nil
	}

	h.closed = true
	h.units.Purge()

	err := h.store.Close()
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}

// reader is a read part of storage.Store also implemented by
// storage.MemCachedStore.
type reader interface {
	Get(key []byte) ([]byte, error)
	Seek(rng storage.SeekRange, f func(k, v []byte) bool)
}

type kv struct{ k, v []byte }

// seekPrefix returns copies of all items with the given key prefix. Prefix is
// cut from the keys.
func seekPrefix(r reader, prefix []byte) []kv {
	var res []kv

	r.Seek(storage.SeekRange{Prefix: prefix}, func(k, v []byte) bool {
		res = append(res, kv{
			k: append([]byte{}, k[len(prefix):]...),
			v: append([]byte{}, v...),
		})
		return true
	})

	return res
}

func getUnit(r reader, addr util.Uint160) (UnitState, bool, error) {
	data, err := r.Get(unitKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return UnitState{}, false, nil
		}
		return UnitState{}, false, fmt.Errorf("read unit record: %w", err)
	}

	st, err := decodeUnitState(addr, data)
	if err != nil {
		return st, false, fmt.Errorf("decode record of unit %s: %w", address.Uint160ToString(addr), err)
	}

	return st, true, nil
}

func iterateUnits(r reader, f func(UnitState) bool) error {
	for _, item := range seekPrefix(r, []byte{prefixUnit}) {
		addr, err := util.Uint160DecodeBytesBE(item.k)
		if err != nil {
			return fmt.Errorf("invalid unit key: %w", err)
		}

		st, err := decodeUnitState(addr, item.v)
		if err != nil {
			return fmt.Errorf("decode record of unit %s: %w", address.Uint160ToString(addr), err)
		}

		if !f(st) {
			break
		}
	}

	return nil
}

func getBalance(r reader, addr util.Uint160) (*big.Int, error) {
	data, err := r.Get(balanceKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("read balance: %w", err)
	}

	return decodeBalance(data), nil
}

func getHeight(r reader) (uint32, error) {
	data, err := r.Get([]byte{keyHeight})
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read height: %w", err)
	}

	if len(data) != 4 {
		return 0, fmt.Errorf("invalid height length %d", len(data))
	}

	return binary.LittleEndian.Uint32(data), nil
}

func heightBytes(h uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, h)
	return b
}
