package dump

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Creator dumps states of the host units. Output file format:
//
//	'<label>-<height>-units.json': JSON object with unit records and balances
//	'<label>-<height>-storage.csv': CSV of units' storages
//
// Storage CSV are 'address,key,value' where address stands for Neo address of
// the unit and binary key-value are base64-encoded.
//
// Use IterateDumps or Open to access existing dumps.
type Creator struct {
	dumpStreams

	state dumpState

	storageItemsCSV *csv.Writer
}

// NewCreator returns Creator which dumps units into given directory. The dump
// is identified by specified ID. Resulting Creator should be closed when
// finished working with it.
//
// NewCreator fails if dump with provided ID already exists.
func NewCreator(dir string, id ID) (*Creator, error) {
	var res Creator

	err := initDumpStreams(&res.dumpStreams, dir, id, false)
	if err != nil {
		return nil, err
	}

	res.storageItemsCSV = csv.NewWriter(res.dumpStreams.storageItems)

	return &res, nil
}

// AddUnit adds given unit record to the resulting dump and returns
// StorageWriter for the unit storage. After all needed units are added, they
// should be flushed via Flush method.
func (x *Creator) AddUnit(u Unit) *StorageWriter {
	x.state.Units = append(x.state.Units, u)

	return &StorageWriter{
		addr: u.Address,
		csv:  x.storageItemsCSV,
	}
}

// AddAccount adds resource balance of the given account to the resulting dump.
func (x *Creator) AddAccount(addr util.Uint160, balance *big.Int) {
	x.state.Accounts = append(x.state.Accounts, Account{
		Address: addr,
		Balance: new(big.Int).Set(balance),
	})
}

// Flush flushes accumulated dump to the file system.
func (x *Creator) Flush() error {
	jEnc := json.NewEncoder(x.dumpStreams.states)
	jEnc.SetIndent("", " ")

	err := jEnc.Encode(x.state)
	if err != nil {
		return fmt.Errorf("encode unit states to JSON: %w", err)
	}

	x.storageItemsCSV.Flush()

	err = x.storageItemsCSV.Error()
	if err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	return nil
}

// Close releases underlying resources of the Creator and makes it unusable.
func (x *Creator) Close() error {
	return x.close()
}

// StorageWriter writes data into the superior unit's storage dump.
type StorageWriter struct {
	addr util.Uint160
	csv  *csv.Writer
}

// Write saves given binary key-value into the unit dump as storage item.
func (x *StorageWriter) Write(key, value []byte) error {
	err := x.csv.Write([]string{
		address.Uint160ToString(x.addr),
		_encoding.EncodeToString(key),
		_encoding.EncodeToString(value),
	})
	if err != nil {
		return fmt.Errorf("write storage item as CSV data: %w", err)
	}

	return nil
}
