package saccount

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-webauthn/webauthn/protocol/webauthncbor"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/pkg/errors"

	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

const (
	AlgoSecp256R1 uint8 = 0
)

// EncodePasskeyPublicKey lowers a P-256 public key to the CBOR encoded COSE
// key the account contract stores.
func EncodePasskeyPublicKey(pubKey *ecdsa.PublicKey) ([]byte, error) {
	if pubKey.Curve != elliptic.P256() {
		return nil, errors.New("passkey public key must be on P-256")
	}

	var pk webauthncose.EC2PublicKeyData
	pk.KeyType = int64(webauthncose.EllipticKey)
	pk.Algorithm = int64(webauthncose.AlgES256)
	pk.Curve = int64(webauthncose.P256)
	pk.XCoord = pubKey.X.Bytes()
	pk.YCoord = pubKey.Y.Bytes()

	return webauthncbor.Marshal(pk)
}

// ParsePasskeyPublicKey extracts the P-256 point back out of COSE key bytes.
func ParsePasskeyPublicKey(publicKey []byte) (*ecdsa.PublicKey, error) {
	var pk webauthncose.EC2PublicKeyData
	if err := webauthncbor.Unmarshal(publicKey, &pk); err != nil {
		return nil, errors.Wrap(err, "invalid passkey public key")
	}

	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(pk.XCoord),
		Y:     new(big.Int).SetBytes(pk.YCoord),
	}, nil
}

// NewPasskeyRegistrationCall builds the account call that installs a
// WebAuthn credential as an additional key.
func NewPasskeyRegistrationCall(account ethcommon.Address, pubKey *ecdsa.PublicKey) (interfaces.Call, error) {
	publicKey, err := EncodePasskeyPublicKey(pubKey)
	if err != nil {
		return interfaces.Call{}, err
	}
	return NewSetPasskeyCall(account, publicKey, AlgoSecp256R1)
}
