package saccount

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasskeyPublicKeyRoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.Nil(t, err)

	encoded, err := EncodePasskeyPublicKey(&priv.PublicKey)
	require.Nil(t, err)
	assert.NotEmpty(t, encoded)

	decoded, err := ParsePasskeyPublicKey(encoded)
	require.Nil(t, err)
	assert.Equal(t, priv.PublicKey.X, decoded.X)
	assert.Equal(t, priv.PublicKey.Y, decoded.Y)
}

func TestEncodePasskeyRejectsWrongCurve(t *testing.T) {
	priv, err := ethcrypto.GenerateKey()
	require.Nil(t, err)

	_, err = EncodePasskeyPublicKey(&priv.PublicKey)
	assert.NotNil(t, err)
}

func TestNewPasskeyRegistrationCall(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.Nil(t, err)

	call, err := NewPasskeyRegistrationCall(testAccount, &priv.PublicKey)
	require.Nil(t, err)
	assert.Equal(t, testAccount, call.To)
	assert.Equal(t, setPasskeySig, call.Data[:4])
}
