package dump

import (
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/subcontract/interop"
	"go.uber.org/multierr"
)

// ID is a unique identifier of the dump prepared according to the model
// described in the current package.
type ID struct {
	// Label of the dump source (e.g. testnet, local).
	Label string
	// Host height at which the state was pulled.
	Height uint32
}

// String returns hyphen-separated ID fields.
func (x ID) String() string {
	return x.Label + sep + strconv.FormatUint(uint64(x.Height), 10)
}

// decodes ID fields from the hyphen-separated string.
func (x *ID) decodeString(s string) error {
	ss := strings.Split(s, sep)
	if len(ss) < 2 {
		return fmt.Errorf("expected '%s'-separated string with at least 2 items", sep)
	}

	n, err := strconv.ParseUint(ss[1], 10, 32)
	if err != nil {
		return fmt.Errorf("decode height from '%s': %w", ss[1], err)
	}

	x.Label = ss[0]
	x.Height = uint32(n)

	return nil
}

// Unit is a dumped unit record.
type Unit struct {
	Address  util.Uint160         `json:"address"`
	Code     interop.CodeSelector `json:"code"`
	Deployer util.Uint160         `json:"deployer"`
	Salt     []byte               `json:"salt"`
	Height   uint32               `json:"height"`
}

// Account is a dumped non-zero resource balance.
type Account struct {
	Address util.Uint160 `json:"address"`
	Balance *big.Int     `json:"balance"`
}

// global encoding of binary values.
var _encoding = base64.StdEncoding

// dumpState is a JSON-encoded information about dumped units and balances.
type dumpState struct {
	Units    []Unit    `json:"units"`
	Accounts []Account `json:"accounts"`
}

// dumpStreams groups data streams for units' states and storages.
type dumpStreams struct {
	states, storageItems io.ReadWriteCloser
}

// close closes all opened streams.
func (x *dumpStreams) close() error {
	var err error
	if x.storageItems != nil {
		err = multierr.Append(err, x.storageItems.Close())
	}
	if x.states != nil {
		err = multierr.Append(err, x.states.Close())
	}
	return err
}

const (
	// word separator used in dump file naming
	sep = "-"
	// suffix of file with units' states
	statesFileSuffix = "units.json"
	// suffix of file with units' storages
	storageFileSuffix = "storage.csv"
)

// initDumpStreams opens data streams for the dump files located in the
// specified directory. If read flag is set, streams are read-only. Otherwise,
// files must not exist, and streams are write only.
func initDumpStreams(d *dumpStreams, dir string, id ID, read bool) error {
	var err error

	pathStorage := filepath.Join(dir, strings.Join([]string{id.String(), storageFileSuffix}, sep))
	if !read {
		if err = checkFileNotExists(pathStorage); err != nil {
			return err
		}
	}

	pathStates := filepath.Join(dir, strings.Join([]string{id.String(), statesFileSuffix}, sep))
	if !read {
		if err = checkFileNotExists(pathStates); err != nil {
			return err
		}
	}

	var flag int
	var perm os.FileMode

	if read {
		flag = os.O_RDONLY
	} else {
		flag = os.O_CREATE | os.O_WRONLY
		perm = 0600
	}

	d.storageItems, err = os.OpenFile(pathStorage, flag, perm)
	if err != nil {
		return fmt.Errorf("open file with storage items: %w", err)
	}

	d.states, err = os.OpenFile(pathStates, flag, perm)
	if err != nil {
		_ = d.storageItems.Close()
		return fmt.Errorf("open file with unit states: %w", err)
	}

	return nil
}

// checkFileNotExists checks that there is no file at the specified path.
func checkFileNotExists(p string) error {
	_, err := os.Stat(p)
	if !os.IsNotExist(err) {
		if err == nil {
			err = os.ErrExist
		}
		return fmt.Errorf("file '%s' absence check failed: %w", p, err)
	}
	return nil
}
