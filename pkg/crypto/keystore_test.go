package crypto

import (
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecp256k1KeystoreWriteRead(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "owner.json")

	privateKey, err := GenerateSecp256k1PrivateKey()
	require.Nil(t, err)

	ks := &Secp256k1Keystore{
		Path:        keyPath,
		KeyType:     KeyTypeSecp256k1,
		Description: "owner key",
		PrivateKey:  privateKey,
		PublicKey:   privateKey.PublicKey(),
		Password:    "test-password",
	}
	require.Nil(t, ks.Write())

	loaded, err := ReadKeystore[*Secp256k1PrivateKey, *Secp256k1PublicKey](keyPath)
	require.Nil(t, err)
	assert.Equal(t, KeyTypeSecp256k1, loaded.KeyType)
	assert.Equal(t, privateKey.Address(), loaded.PublicKey.Address())

	err = loaded.DecryptPrivateKey("wrong-password")
	assert.NotNil(t, err)

	require.Nil(t, loaded.DecryptPrivateKey("test-password"))
	assert.Equal(t, privateKey.String(), loaded.PrivateKey.String())
}

func TestSecp256k1SignVerify(t *testing.T) {
	privateKey, err := GenerateSecp256k1PrivateKey()
	require.Nil(t, err)

	digest := ethcrypto.Keccak256([]byte("payload"))
	sig, err := privateKey.Sign(digest)
	require.Nil(t, err)
	assert.Equal(t, 65, len(sig))
	assert.True(t, privateKey.PublicKey().Verify(digest, sig))

	other, err := GenerateSecp256k1PrivateKey()
	require.Nil(t, err)
	assert.False(t, other.PublicKey().Verify(digest, sig))
}

func TestEd25519KeystoreWriteRead(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "ed25519.json")

	privateKey, err := GenerateEd25519PrivateKey()
	require.Nil(t, err)

	ks := &Ed25519Keystore{
		Path:       keyPath,
		KeyType:    KeyTypeEd25519,
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
		Password:   "test-password",
	}
	require.Nil(t, ks.Write())

	loaded, err := ReadKeystore[*Ed25519PrivateKey, *Ed25519PublicKey](keyPath)
	require.Nil(t, err)
	assert.Equal(t, KeyTypeEd25519, loaded.KeyType)
	require.Nil(t, loaded.DecryptPrivateKey("test-password"))
	assert.Equal(t, privateKey.String(), loaded.PrivateKey.String())

	msg := []byte("payload")
	sig, err := loaded.PrivateKey.Sign(msg)
	require.Nil(t, err)
	assert.True(t, privateKey.PublicKey().Verify(msg, sig))
}

func TestKeystoreInfoUpdatePassword(t *testing.T) {
	privateKey, err := GenerateSecp256k1PrivateKey()
	require.Nil(t, err)
	raw, err := privateKey.Marshal()
	require.Nil(t, err)

	ks := &Secp256k1Keystore{
		Path:       filepath.Join(t.TempDir(), "session.json"),
		KeyType:    KeyTypeSecp256k1,
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
		Password:   "old",
	}
	require.Nil(t, ks.Write())

	info, err := ReadKeystoreInfo(ks.Path)
	require.Nil(t, err)
	require.Nil(t, info.UpdatePassword("old", "new"))

	decrypted, err := info.DecryptPrivateKey("new")
	require.Nil(t, err)
	assert.Equal(t, raw, decrypted)
}
