package interop

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// CodeSelectorLen is the length of CodeSelector in bytes.
const CodeSelectorLen = util.Uint256Size

// CodeSelector names executable code known to the host. Selectors are
// computed from the code's manifest, see NewCodeSelector.
type CodeSelector [CodeSelectorLen]byte

var errInvalidCodeSelectorLen = errors.New("invalid code selector length")

// NewCodeSelector returns selector of the code described by the given
// manifest: SHA-256 hash of its JSON encoding.
func NewCodeSelector(m *manifest.Manifest) (CodeSelector, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return CodeSelector{}, fmt.Errorf("encode manifest to JSON: %w", err)
	}

	return CodeSelector(hash.Sha256(data)), nil
}

// DecodeCodeSelectorBytes decodes CodeSelector from its binary form.
func DecodeCodeSelectorBytes(b []byte) (CodeSelector, error) {
	var c CodeSelector
	if len(b) != CodeSelectorLen {
		return c, fmt.Errorf("%w: expected %d, got %d", errInvalidCodeSelectorLen, CodeSelectorLen, len(b))
	}

	copy(c[:], b)

	return c, nil
}

// DecodeCodeSelectorString decodes CodeSelector from its base58 text form.
func DecodeCodeSelectorString(s string) (CodeSelector, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return CodeSelector{}, fmt.Errorf("decode base58: %w", err)
	}

	return DecodeCodeSelectorBytes(b)
}

// String returns base58 representation of the selector.
func (c CodeSelector) String() string {
	return base58.Encode(c[:])
}

// IsZero checks whether c is unset.
func (c CodeSelector) IsZero() bool {
	return c == CodeSelector{}
}

// Uint256 returns c as util.Uint256.
func (c CodeSelector) Uint256() util.Uint256 {
	return util.Uint256(c)
}

// MarshalJSON implements json.Marshaler.
func (c CodeSelector) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *CodeSelector) UnmarshalJSON(data []byte) error {
	var s string

	err := json.Unmarshal(data, &s)
	if err != nil {
		return err
	}

	*c, err = DecodeCodeSelectorString(s)

	return err
}
