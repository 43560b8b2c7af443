package interfaces

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// RecoverAddressFromSignature recovers the signing address from a 65 byte
// signature over the eth_sign digest of hash.
func RecoverAddressFromSignature(hash [32]byte, signature []byte) (ethcommon.Address, error) {
	if len(signature) != 65 {
		return ethcommon.Address{}, errors.New("invalid signature length")
	}

	ethHash := accounts.TextHash(hash[:])
	// ethers js return r|s|v, v only 1 byte
	// golang return rid, v = rid +27
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	recoveredPub, err := crypto.Ecrecover(ethHash, sig)
	if err != nil {
		return ethcommon.Address{}, err
	}
	pubKey, _ := crypto.UnmarshalPubkey(recoveredPub)
	recoveredAddr := crypto.PubkeyToAddress(*pubKey)
	return recoveredAddr, nil
}

// SignHash signs the eth_sign digest of hash and normalizes V to 27 or 28,
// the form the account contract recovers.
func SignHash(hash [32]byte, key *ecdsa.PrivateKey) ([]byte, error) {
	signature, err := crypto.Sign(accounts.TextHash(hash[:]), key)
	if err != nil {
		return nil, err
	}
	if signature[64] < 27 {
		signature[64] += 27
	}
	return signature, nil
}
