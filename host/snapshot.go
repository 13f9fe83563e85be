package host

import (
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/subcontract/dump"
	"github.com/nspcc-dev/subcontract/interop"
	"go.uber.org/zap"
)

// Export dumps all units, their storages and non-zero balances into the
// given directory. The dump is labeled with the given label and the current
// height.
func (h *Host) Export(dir, label string) (dump.ID, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	var id dump.ID

	if h.closed {
		return id, ErrClosed
	}

	height, err := getHeight(h.store)
	if err != nil {
		return id, err
	}

	id = dump.ID{Label: label, Height: height}

	c, err := dump.NewCreator(dir, id)
	if err != nil {
		return id, fmt.Errorf("init dump creator: %w", err)
	}

	err = h.export(c)
	if err == nil {
		err = c.Flush()
	}

	if cErr := c.Close(); err == nil && cErr != nil {
		err = fmt.Errorf("close dump: %w", cErr)
	}

	if err != nil {
		return id, err
	}

	h.log.Info("host state exported", zap.Stringer("id", id), zap.String("dir", dir))

	return id, nil
}

func (h *Host) export(c *dump.Creator) error {
	var units []UnitState

	err := iterateUnits(h.store, func(st UnitState) bool {
		units = append(units, st)
		return true
	})
	if err != nil {
		return err
	}

	for i := range units {
		w := c.AddUnit(dump.Unit{
			Address:  units[i].Address,
			Code:     units[i].Code,
			Deployer: units[i].Deployer,
			Salt:     units[i].Salt,
			Height:   units[i].Height,
		})

		for _, item := range seekPrefix(h.store, storageKey(units[i].Address, nil)) {
			err = w.Write(item.k, item.v)
			if err != nil {
				return fmt.Errorf("dump storage of unit %s: %w", address.Uint160ToString(units[i].Address), err)
			}
		}
	}

	for _, item := range seekPrefix(h.store, []byte{prefixBalance}) {
		addr, err := util.Uint160DecodeBytesBE(item.k)
		if err != nil {
			return fmt.Errorf("invalid balance key: %w", err)
		}

		c.AddAccount(addr, decodeBalance(item.v))
	}

	return nil
}

// Import puts units, storages and balances from the dump into the Host as a
// single committed operation. Balances are overwritten. Import fails with
// interop.ErrAddressCollision if any dumped unit already exists.
func (h *Host) Import(r *dump.Reader) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.closed {
		return ErrClosed
	}

	height, err := getHeight(h.store)
	if err != nil {
		return err
	}

	var (
		overlay = storage.NewMemCachedStore(h.store)
		units   = make(map[util.Uint160]struct{})
	)

	r.IterateUnits(func(u dump.Unit) {
		if err != nil {
			return
		}

		_, ok, gErr := getUnit(overlay, u.Address)
		if gErr != nil {
			err = gErr
			return
		}

		if ok {
			err = fmt.Errorf("unit %s: %w", address.Uint160ToString(u.Address), interop.ErrAddressCollision)
			return
		}

		data, eErr := encodeUnitState(UnitState{
			Address:  u.Address,
			Code:     u.Code,
			Deployer: u.Deployer,
			Salt:     u.Salt,
			Height:   u.Height,
		})
		if eErr != nil {
			err = fmt.Errorf("encode record of unit %s: %w", address.Uint160ToString(u.Address), eErr)
			return
		}

		overlay.Put(unitKey(u.Address), data)
		units[u.Address] = struct{}{}
	})
	if err != nil {
		return err
	}

	r.IterateStorages(func(addr util.Uint160, key, value []byte) {
		if err != nil {
			return
		}

		if _, ok := units[addr]; !ok {
			err = fmt.Errorf("storage item of unit %s missing in dump: %w",
				address.Uint160ToString(addr), interop.ErrUnitNotFound)
			return
		}

		overlay.Put(storageKey(addr, key), append([]byte{}, value...))
	})
	if err != nil {
		return err
	}

	r.IterateAccounts(func(a dump.Account) {
		if err != nil {
			return
		}

		if a.Balance == nil || a.Balance.Sign() < 0 {
			err = fmt.Errorf("invalid balance of %s: %v", address.Uint160ToString(a.Address), a.Balance)
			return
		}

		if a.Balance.Sign() == 0 {
			overlay.Delete(balanceKey(a.Address))
			return
		}

		overlay.Put(balanceKey(a.Address), encodeBalance(new(big.Int).Set(a.Balance)))
	})
	if err != nil {
		return err
	}

	overlay.Put([]byte{keyHeight}, heightBytes(height+1))

	_, err = overlay.PersistSync()
	if err != nil {
		return fmt.Errorf("persist imported state: %w", err)
	}

	h.units.Purge()

	h.log.Info("host state imported", zap.Int("units", len(units)), zap.Uint32("height", height+1))

	return nil
}
