package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-sdk/pkg/loggers"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

var _ Signer = (*OwnerSigner)(nil)

// OwnerSigner signs with the account owner key. Owner signatures carry the
// account's full authority, so no permission checks apply.
type OwnerSigner struct {
	key    *ecdsa.PrivateKey
	addr   ethcommon.Address
	logger logrus.FieldLogger
}

func NewOwnerSigner(key *ecdsa.PrivateKey) (*OwnerSigner, error) {
	if key == nil {
		return nil, errors.New("owner signer requires a key")
	}
	return &OwnerSigner{
		key:    key,
		addr:   ethcrypto.PubkeyToAddress(key.PublicKey),
		logger: loggers.Logger(loggers.Signer),
	}, nil
}

func (owner *OwnerSigner) Info() Info {
	return Info{Kind: KindOwner, Address: owner.addr}
}

func (owner *OwnerSigner) SignOperation(ctx context.Context, userOp *interfaces.UserOperation, entryPoint ethcommon.Address, chainID *big.Int, calls []interfaces.Call) (*SignedOperation, error) {
	hash := interfaces.GetUserOpHash(userOp, entryPoint, chainID)
	signature, err := interfaces.SignHash(hash, owner.key)
	if err != nil {
		return nil, errors.Wrap(err, "sign user operation")
	}

	signedOp := userOp.Clone()
	signedOp.Signature = signature

	owner.logger.WithFields(logrus.Fields{
		"sender":     signedOp.Sender.String(),
		"userOpHash": hash.String(),
	}).Debug("signed user operation with owner key")

	return &SignedOperation{
		Op:     signedOp,
		Hash:   hash,
		Signer: owner.Info(),
	}, nil
}
