package dump

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// IterateDumps iterates over all dumps collected by the Creator model in the
// specified directory, and passes ID and Reader of each dump into f.
func IterateDumps(dir string, f func(ID, *Reader)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, e error) error {
		if errors.Is(e, fs.ErrNotExist) {
			return nil
		}

		if e != nil {
			return e
		}

		if d.IsDir() {
			if path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if !strings.HasSuffix(name, sep+statesFileSuffix) {
			return nil
		}

		var id ID

		err := id.decodeString(name)
		if err != nil {
			return fmt.Errorf("decode dump ID from file name '%s': %w", name, err)
		}

		r, err := Open(dir, id)
		if err != nil {
			return fmt.Errorf("open dump '%s': %w", name, err)
		}

		f(id, r)

		return nil
	})
}

// Open reads the dump with the given ID from the specified directory.
func Open(dir string, id ID) (*Reader, error) {
	var streams dumpStreams

	err := initDumpStreams(&streams, dir, id, true)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("dump %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("init dump streams: %w", err)
	}

	var r Reader

	err = r.fromDumpStreams(streams.states, streams.storageItems)
	if cErr := streams.close(); err == nil {
		err = cErr
	}
	if err != nil {
		return nil, err
	}

	return &r, nil
}

type storageItem struct {
	addr util.Uint160
	k, v []byte
}

// Reader reads units collected in the superior dump.
type Reader struct {
	state   dumpState
	storage []storageItem
}

func (x *Reader) fromDumpStreams(rStates, rStorageItems io.Reader) error {
	err := json.NewDecoder(rStates).Decode(&x.state)
	if err != nil {
		return fmt.Errorf("decode unit states from JSON: %w", err)
	}

	var rec []string

	_csv := csv.NewReader(rStorageItems)
	_csv.FieldsPerRecord = 3
	_csv.ReuseRecord = true

	for {
		rec, err = _csv.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read next CSV record: %w", err)
		}

		var item storageItem

		// out-of-range safety guaranteed by csv settings
		item.addr, err = address.StringToUint160(rec[0])
		if err != nil {
			return fmt.Errorf("decode unit address: %w", err)
		}

		item.k, err = _encoding.DecodeString(rec[1])
		if err != nil {
			return fmt.Errorf("decode storage item key: %w", err)
		}

		item.v, err = _encoding.DecodeString(rec[2])
		if err != nil {
			return fmt.Errorf("decode storage item value: %w", err)
		}

		x.storage = append(x.storage, item)
	}
}

// IterateUnits passes all unit records from the superior dump into f.
func (x *Reader) IterateUnits(f func(Unit)) {
	for i := range x.state.Units {
		f(x.state.Units[i])
	}
}

// IterateAccounts passes all balances from the superior dump into f.
func (x *Reader) IterateAccounts(f func(Account)) {
	for i := range x.state.Accounts {
		f(x.state.Accounts[i])
	}
}

// IterateStorages passes storage items of all units from the superior dump
// into f in the order they were written.
func (x *Reader) IterateStorages(f func(addr util.Uint160, key, value []byte)) {
	for i := range x.storage {
		f(x.storage[i].addr, x.storage[i].k, x.storage[i].v)
	}
}
