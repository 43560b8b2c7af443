package crypto

import (
	"crypto/ecdsa"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var _ KeystoreKey = (*Secp256k1PrivateKey)(nil)

var _ KeystoreKey = (*Secp256k1PublicKey)(nil)

type Secp256k1PrivateKey struct {
	PrivateKey *ecdsa.PrivateKey
}

func GenerateSecp256k1PrivateKey() (*Secp256k1PrivateKey, error) {
	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "secp256k1: failed to generate private key")
	}
	return &Secp256k1PrivateKey{PrivateKey: privateKey}, nil
}

// Sign signs a 32-byte digest and returns the 65-byte [R || S || V] signature
// with V in {0, 1}.
func (e *Secp256k1PrivateKey) Sign(digest []byte) ([]byte, error) {
	return ethcrypto.Sign(digest, e.PrivateKey)
}

func (e *Secp256k1PrivateKey) PublicKey() *Secp256k1PublicKey {
	return &Secp256k1PublicKey{PublicKey: &e.PrivateKey.PublicKey}
}

func (e *Secp256k1PrivateKey) Address() ethcommon.Address {
	return ethcrypto.PubkeyToAddress(e.PrivateKey.PublicKey)
}

func (e *Secp256k1PrivateKey) Type() string {
	return KeyTypeSecp256k1
}

func (e *Secp256k1PrivateKey) String() string {
	return hexutil.Encode(ethcrypto.FromECDSA(e.PrivateKey))
}

func (e *Secp256k1PrivateKey) Marshal() ([]byte, error) {
	return ethcrypto.FromECDSA(e.PrivateKey), nil
}

func (e *Secp256k1PrivateKey) Unmarshal(raw []byte) error {
	if IsZeroBytes(raw) {
		return errors.New("secp256k1: private key is zero")
	}
	privateKey, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return errors.Wrap(err, "secp256k1: bad private key")
	}
	e.PrivateKey = privateKey
	return nil
}

type Secp256k1PublicKey struct {
	PublicKey *ecdsa.PublicKey
}

func (e *Secp256k1PublicKey) Verify(digest []byte, sig []byte) bool {
	if len(sig) < 64 {
		return false
	}
	return ethcrypto.VerifySignature(ethcrypto.CompressPubkey(e.PublicKey), digest, sig[:64])
}

func (e *Secp256k1PublicKey) Address() ethcommon.Address {
	return ethcrypto.PubkeyToAddress(*e.PublicKey)
}

func (e *Secp256k1PublicKey) Type() string {
	return KeyTypeSecp256k1
}

func (e *Secp256k1PublicKey) String() string {
	return hexutil.Encode(ethcrypto.CompressPubkey(e.PublicKey))
}

func (e *Secp256k1PublicKey) Marshal() ([]byte, error) {
	return ethcrypto.CompressPubkey(e.PublicKey), nil
}

func (e *Secp256k1PublicKey) Unmarshal(raw []byte) error {
	if IsZeroBytes(raw) {
		return errors.New("secp256k1: public key is zero")
	}
	publicKey, err := ethcrypto.DecompressPubkey(raw)
	if err != nil {
		return errors.Wrap(err, "secp256k1: bad public key")
	}
	e.PublicKey = publicKey
	return nil
}
