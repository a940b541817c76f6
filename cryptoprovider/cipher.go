package cryptoprovider

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/synerthink/dotlanth/errs"
)

func errCipherFailure(op, algorithm string) *errs.Error {
	return errs.New(errs.KindSecurity, op+" failed").With(map[string]any{"algorithm": algorithm})
}

func (defaultProvider) aead(key *KeyMaterial) (cipher.AEAD, string, error) {
	switch key.Cipher {
	case AES256GCM:
		block, err := aes.NewCipher(key.Bytes())
		if err != nil {
			return nil, "", errWithCause(errInvalidKey("aes-256-gcm"), err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, "", errWithCause(errInvalidKey("aes-256-gcm"), err)
		}
		return gcm, "aes-256-gcm", nil
	case ChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key.Bytes())
		if err != nil {
			return nil, "", errWithCause(errInvalidKey("chacha20-poly1305"), err)
		}
		return aead, "chacha20-poly1305", nil
	default:
		return nil, "", errUnsupportedAlgorithm("encryption")
	}
}

func (d defaultProvider) Encrypt(key *KeyMaterial, nonce, plaintext, additionalData []byte) ([]byte, error) {
	aead, name, err := d.aead(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errCipherFailure("encrypt", name)
	}
	return aead.Seal(nil, nonce, plaintext, additionalData), nil
}

func (d defaultProvider) Decrypt(key *KeyMaterial, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	aead, name, err := d.aead(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errCipherFailure("decrypt", name)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, errWithCause(errCipherFailure("decrypt", name), err)
	}
	return plaintext, nil
}
