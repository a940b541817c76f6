package cryptoprovider

import (
	"crypto/ed25519"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
)

func TestHashAlgorithms(t *testing.T) {
	ex := NewExecutor()
	for _, alg := range []HashAlgorithm{SHA256, Blake3, Keccak256} {
		sum, err := ex.Hash.Hash(alg, []byte("hello world"))
		require.NoError(t, err)
		require.Len(t, sum, 32)
	}
}

func TestHashUnsupportedAlgorithm(t *testing.T) {
	ex := NewExecutor()
	_, err := ex.Hash.Hash(HashAlgorithm(99), []byte("x"))
	require.Error(t, err)
}

func TestEd25519SignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	ex := NewExecutor()

	key := NewSigningKeyMaterial(Ed25519, priv)
	defer key.Release()
	sig, err := ex.Signature.Sign(key, []byte("message"))
	require.NoError(t, err)

	ok, err := ex.Signature.Verify(Ed25519, pub, []byte("message"), sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ex.Signature.Verify(Ed25519, pub, []byte("tampered"), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestECDSASecp256k1SignVerifyRoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	ex := NewExecutor()

	key := NewSigningKeyMaterial(ECDSASecp256k1, priv.Serialize())
	defer key.Release()
	sig, err := ex.Signature.Sign(key, []byte("message"))
	require.NoError(t, err)

	pub := priv.PubKey().SerializeCompressed()
	ok, err := ex.Signature.Verify(ECDSASecp256k1, pub, []byte("message"), sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestKeyMaterialReleaseZeroesBuffer(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	key := NewCipherKeyMaterial(AES256GCM, raw)
	buf := key.Bytes()
	key.Release()
	require.Equal(t, []byte{0, 0, 0, 0}, buf)
	require.Panics(t, func() { key.Bytes() })
}

func TestAESGCMEncryptDecryptRoundTrip(t *testing.T) {
	ex := NewExecutor()
	key := NewCipherKeyMaterial(AES256GCM, make([]byte, 32))
	defer key.Release()
	nonce := make([]byte, 12)
	plaintext := []byte("top secret")

	ct, err := ex.Cipher.Encrypt(key, nonce, plaintext, []byte("aad"))
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ct)

	pt, err := ex.Cipher.Decrypt(key, nonce, ct, []byte("aad"))
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)
}

func TestAESGCMDecryptFailsOnWrongAAD(t *testing.T) {
	ex := NewExecutor()
	key := NewCipherKeyMaterial(AES256GCM, make([]byte, 32))
	defer key.Release()
	nonce := make([]byte, 12)

	ct, err := ex.Cipher.Encrypt(key, nonce, []byte("top secret"), []byte("aad"))
	require.NoError(t, err)

	_, err = ex.Cipher.Decrypt(key, nonce, ct, []byte("wrong-aad"))
	require.Error(t, err)
}

func TestChaCha20Poly1305EncryptDecryptRoundTrip(t *testing.T) {
	ex := NewExecutor()
	key := NewCipherKeyMaterial(ChaCha20Poly1305, make([]byte, 32))
	defer key.Release()
	nonce := make([]byte, 12)
	plaintext := []byte("another secret")

	ct, err := ex.Cipher.Encrypt(key, nonce, plaintext, nil)
	require.NoError(t, err)
	pt, err := ex.Cipher.Decrypt(key, nonce, ct, nil)
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)
}

func TestRandomProducesRequestedLength(t *testing.T) {
	ex := NewExecutor()
	buf, err := ex.Random.Random(32)
	require.NoError(t, err)
	require.Len(t, buf, 32)

	other, err := ex.Random.Random(32)
	require.NoError(t, err)
	require.NotEqual(t, buf, other)
}

func TestRandomRejectsNegativeLength(t *testing.T) {
	ex := NewExecutor()
	_, err := ex.Random.Random(-1)
	require.Error(t, err)
}
