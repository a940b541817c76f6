package cryptoprovider

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"

	"github.com/synerthink/dotlanth/errs"
)

// defaultProvider backs Executor with this package's concrete algorithm
// implementations; it satisfies HashProvider, SignatureProvider,
// EncryptionProvider and SecureRandomProvider.
type defaultProvider struct{}

func (defaultProvider) Hash(alg HashAlgorithm, data []byte) ([]byte, error) {
	switch alg {
	case SHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case Blake3:
		sum := blake3.Sum256(data)
		return sum[:], nil
	case Keccak256:
		h := sha3.NewLegacyKeccak256()
		h.Write(data)
		return h.Sum(nil), nil
	default:
		return nil, errWithCause(errUnsupportedAlgorithm("hash"), nil)
	}
}

// keccak256 is used internally for the digest that ECDSA signing/verification
// operates over; it is not exposed as a standalone Hash call beyond the
// HashProvider.Hash(Keccak256, ...) path.
func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func errWithCause(e *errs.Error, cause error) *errs.Error {
	if cause == nil {
		return e
	}
	return errs.Wrap(e.Kind, e.Message, cause)
}
