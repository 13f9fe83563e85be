package host

import (
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/emit"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/subcontract/interop"
)

// ManagementHash is the address notifications of the host itself are emitted
// from.
var ManagementHash = hash.Hash160([]byte("management"))

// DeriveAddress returns address of the unit deployed by the given deployer
// running the given code with the given salt. The address is a hash of the
// script which can not be executed:
//
//	ABORT PUSHDATA(deployer) PUSHDATA(code) PUSHDATA(salt)
func DeriveAddress(deployer util.Uint160, code interop.CodeSelector, salt []byte) util.Uint160 {
	w := io.NewBufBinWriter()
	emit.Opcodes(w.BinWriter, opcode.ABORT)
	emit.Bytes(w.BinWriter, deployer.BytesBE())
	emit.Bytes(w.BinWriter, code[:])
	emit.Bytes(w.BinWriter, salt)
	if w.Err != nil {
		panic(w.Err)
	}

	return hash.Hash160(w.Bytes())
}
