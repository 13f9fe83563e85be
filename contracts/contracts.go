/*
Package contracts embeds manifests of the bundled units and pairs them with
the unit code.
*/
package contracts

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/subcontract/contracts/child"
	"github.com/nspcc-dev/subcontract/contracts/parent"
	"github.com/nspcc-dev/subcontract/interop"
)

const (
	childDir  = "child"
	parentDir = "parent"

	manifestName = "manifest.json"
)

// Contract groups information about unit stored in the current package.
type Contract struct {
	Manifest manifest.Manifest
	Impl     interop.Contract
}

var (
	//go:embed */manifest.json
	_fs embed.FS

	errInvalidManifest = errors.New("invalid manifest")
	errMissingImpl     = errors.New("missing unit implementation")

	impls = map[string]interop.Contract{
		childDir:  child.Contract{},
		parentDir: parent.Contract{},
	}

	allContracts = []string{
		childDir,
		parentDir,
	}
)

// GetAll returns all units stored in the package. They're returned in the
// order they're supposed to be registered: Child code is required for Parent
// construction.
func GetAll() ([]Contract, error) {
	return read(_fs, allContracts)
}

// Child returns Child unit.
func Child() (Contract, error) {
	return readContractFromDir(_fs, childDir)
}

// Parent returns Parent unit.
func Parent() (Contract, error) {
	return readContractFromDir(_fs, parentDir)
}

// read same as GetAll but allows to override source fs.FS.
func read(_fs fs.FS, dirs []string) ([]Contract, error) {
	var res = make([]Contract, 0, len(dirs))

	for i := range dirs {
		c, err := readContractFromDir(_fs, dirs[i])
		if err != nil {
			return nil, fmt.Errorf("read contract %s: %w", dirs[i], err)
		}

		res = append(res, c)
	}

	return res, nil
}

func readContractFromDir(_fs fs.FS, dir string) (Contract, error) {
	var c Contract

	impl, ok := impls[dir]
	if !ok {
		return c, fmt.Errorf("%w: %s", errMissingImpl, dir)
	}

	// Only embedded FS is supported now and it uses "/" even on Windows,
	// so filepath.Join() is not applicable.
	fManifest, err := _fs.Open(dir + "/" + manifestName)
	if err != nil {
		return c, fmt.Errorf("open manifest: %w", err)
	}
	defer fManifest.Close()

	err = json.NewDecoder(fManifest).Decode(&c.Manifest)
	if err != nil {
		return c, fmt.Errorf("%w: %w", errInvalidManifest, err)
	}

	c.Impl = impl

	return c, nil
}
