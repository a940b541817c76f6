// Package cryptoprovider wires the four mandatory provider interfaces plus
// the optional zero-knowledge proof provider behind the VM's crypto opcode
// family (spec.md §4.13, C13): hash, signature, encryption, secure random.
package cryptoprovider

import "github.com/synerthink/dotlanth/errs"

// HashAlgorithm selects a digest implementation.
type HashAlgorithm uint8

const (
	SHA256 HashAlgorithm = iota
	Blake3
	Keccak256
)

// SignatureAlgorithm selects a signature scheme.
type SignatureAlgorithm uint8

const (
	Ed25519 SignatureAlgorithm = iota
	ECDSASecp256k1
)

// CipherAlgorithm selects a symmetric AEAD cipher.
type CipherAlgorithm uint8

const (
	AES256GCM CipherAlgorithm = iota
	ChaCha20Poly1305
)

// KeyMaterial carries its algorithm tag alongside the raw key bytes. Release
// zeroes the buffer in place before it is discarded: the observable contract
// is overwrite-before-release, not merely leaving the buffer for the
// collector (spec.md §4.13: "ZeroizeOnDrop semantics").
type KeyMaterial struct {
	Algorithm SignatureAlgorithm
	Cipher    CipherAlgorithm
	bytes     []byte
	isCipher  bool
}

// NewSigningKeyMaterial wraps raw as a signature key under alg.
func NewSigningKeyMaterial(alg SignatureAlgorithm, raw []byte) *KeyMaterial {
	return &KeyMaterial{Algorithm: alg, bytes: append([]byte(nil), raw...)}
}

// NewCipherKeyMaterial wraps raw as a symmetric key under alg.
func NewCipherKeyMaterial(alg CipherAlgorithm, raw []byte) *KeyMaterial {
	return &KeyMaterial{Cipher: alg, bytes: append([]byte(nil), raw...), isCipher: true}
}

// Bytes returns the wrapped key. Panics if Release has already run.
func (k *KeyMaterial) Bytes() []byte {
	if k.bytes == nil {
		panic("cryptoprovider: use of key material after Release")
	}
	return k.bytes
}

// Release overwrites the key buffer with zeroes before discarding it.
func (k *KeyMaterial) Release() {
	for i := range k.bytes {
		k.bytes[i] = 0
	}
	k.bytes = nil
}

// HashProvider computes digests.
type HashProvider interface {
	Hash(alg HashAlgorithm, data []byte) ([]byte, error)
}

// SignatureProvider signs and verifies messages.
type SignatureProvider interface {
	Sign(key *KeyMaterial, message []byte) ([]byte, error)
	Verify(alg SignatureAlgorithm, publicKey, message, signature []byte) (bool, error)
}

// EncryptionProvider performs authenticated symmetric encryption.
type EncryptionProvider interface {
	Encrypt(key *KeyMaterial, nonce, plaintext, additionalData []byte) ([]byte, error)
	Decrypt(key *KeyMaterial, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// SecureRandomProvider produces cryptographically secure random bytes.
type SecureRandomProvider interface {
	Random(n int) ([]byte, error)
}

// ZKProofProvider is the optional zero-knowledge proof backend; a VM built
// without ZK support leaves this nil and ZkProof/ZkVerify opcodes fail with
// KindSecurity "unsupported algorithm".
type ZKProofProvider interface {
	Prove(statement, witness []byte) ([]byte, error)
	VerifyProof(statement, proof []byte) (bool, error)
}

// Executor is the single wiring point the VM's crypto opcode family dispatches
// through (spec.md §4.13: "a single executor wires four provider
// interfaces").
type Executor struct {
	Hash      HashProvider
	Signature SignatureProvider
	Cipher    EncryptionProvider
	Random    SecureRandomProvider
	ZK        ZKProofProvider // optional
}

// NewExecutor builds an Executor backed by this package's default algorithm
// implementations (hash.go / signature.go / cipher.go / random.go).
func NewExecutor() *Executor {
	d := &defaultProvider{}
	return &Executor{Hash: d, Signature: d, Cipher: d, Random: d}
}

func errUnsupportedAlgorithm(family string) *errs.Error {
	return errs.New(errs.KindSecurity, "unsupported algorithm").With(map[string]any{"family": family})
}
