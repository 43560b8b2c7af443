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
	"github.com/axiomesh/axiom-aa-sdk/saccount/session"
)

var _ Signer = (*SessionSigner)(nil)

// SessionSigner signs with a session key. The permission is re-validated
// against the batch on every signing attempt, so a revocation or an
// exhausted limit between building and signing stops the flow here.
type SessionSigner struct {
	key     *ecdsa.PrivateKey
	addr    ethcommon.Address
	account ethcommon.Address
	manager *session.Manager
	logger  logrus.FieldLogger
}

func NewSessionSigner(key *ecdsa.PrivateKey, account ethcommon.Address, manager *session.Manager) (*SessionSigner, error) {
	if key == nil {
		return nil, errors.New("session signer requires a key")
	}
	if manager == nil {
		return nil, errors.New("session signer requires the session manager")
	}
	return &SessionSigner{
		key:     key,
		addr:    ethcrypto.PubkeyToAddress(key.PublicKey),
		account: account,
		manager: manager,
		logger:  loggers.Logger(loggers.Signer),
	}, nil
}

func (sessionSigner *SessionSigner) Info() Info {
	return Info{Kind: KindSession, Address: sessionSigner.addr}
}

func (sessionSigner *SessionSigner) SignOperation(ctx context.Context, userOp *interfaces.UserOperation, entryPoint ethcommon.Address, chainID *big.Int, calls []interfaces.Call) (*SignedOperation, error) {
	if userOp.Sender != sessionSigner.account {
		return nil, errors.Errorf("session signer bound to account %s, operation is for %s", sessionSigner.account, userOp.Sender)
	}

	if _, err := sessionSigner.manager.ValidateUse(sessionSigner.account, sessionSigner.addr, calls); err != nil {
		return nil, err
	}

	hash := interfaces.GetUserOpHash(userOp, entryPoint, chainID)
	signature, err := interfaces.SignHash(hash, sessionSigner.key)
	if err != nil {
		return nil, errors.Wrap(err, "sign user operation")
	}

	signedOp := userOp.Clone()
	signedOp.Signature = signature

	sessionSigner.logger.WithFields(logrus.Fields{
		"sender":     signedOp.Sender.String(),
		"signer":     sessionSigner.addr.String(),
		"userOpHash": hash.String(),
	}).Debug("signed user operation with session key")

	return &SignedOperation{
		Op:     signedOp,
		Hash:   hash,
		Signer: sessionSigner.Info(),
	}, nil
}
