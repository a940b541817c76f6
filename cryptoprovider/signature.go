package cryptoprovider

import (
	"crypto/ed25519"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/synerthink/dotlanth/errs"
)

func errInvalidKey(algorithm string) *errs.Error {
	return errs.New(errs.KindSecurity, "invalid key").With(map[string]any{"algorithm": algorithm})
}

func errInvalidSignature(algorithm string) *errs.Error {
	return errs.New(errs.KindSecurity, "invalid signature").With(map[string]any{"algorithm": algorithm})
}

func (defaultProvider) Sign(key *KeyMaterial, message []byte) ([]byte, error) {
	switch key.Algorithm {
	case Ed25519:
		raw := key.Bytes()
		if len(raw) != ed25519.PrivateKeySize {
			return nil, errInvalidKey("ed25519")
		}
		return ed25519.Sign(ed25519.PrivateKey(raw), message), nil
	case ECDSASecp256k1:
		priv := secp256k1.PrivKeyFromBytes(key.Bytes())
		if priv == nil {
			return nil, errInvalidKey("ecdsa-secp256k1")
		}
		digest := keccak256(message)
		sig := ecdsa.Sign(priv, digest)
		return sig.Serialize(), nil
	default:
		return nil, errUnsupportedAlgorithm("signature")
	}
}

func (defaultProvider) Verify(alg SignatureAlgorithm, publicKey, message, signature []byte) (bool, error) {
	switch alg {
	case Ed25519:
		if len(publicKey) != ed25519.PublicKeySize {
			return false, errInvalidKey("ed25519")
		}
		return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature), nil
	case ECDSASecp256k1:
		pub, err := secp256k1.ParsePubKey(publicKey)
		if err != nil {
			return false, errWithCause(errInvalidKey("ecdsa-secp256k1"), err)
		}
		sig, err := ecdsa.ParseDERSignature(signature)
		if err != nil {
			return false, errWithCause(errInvalidSignature("ecdsa-secp256k1"), err)
		}
		digest := keccak256(message)
		return sig.Verify(digest, pub), nil
	default:
		return false, errUnsupportedAlgorithm("signature")
	}
}
