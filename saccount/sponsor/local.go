package sponsor

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-sdk/pkg/loggers"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

// clock skew slack applied to validAfter
const localValiditySlack = 10 * time.Second

var _ Sponsor = (*LocalSponsor)(nil)

// LocalSponsor holds the verifying paymaster owner key and signs
// sponsorships itself. It is meant for private deployments where the
// operator of the SDK also operates the paymaster.
type LocalSponsor struct {
	paymaster      ethcommon.Address
	chainID        *big.Int
	key            *ecdsa.PrivateKey
	validityWindow time.Duration
	logger         logrus.FieldLogger
}

func NewLocalSponsor(paymaster ethcommon.Address, chainID *big.Int, key *ecdsa.PrivateKey, validityWindow time.Duration) (*LocalSponsor, error) {
	if key == nil {
		return nil, errors.New("local sponsor requires the paymaster owner key")
	}
	if validityWindow <= 0 {
		return nil, errors.New("local sponsor validity window must be positive")
	}
	return &LocalSponsor{
		paymaster:      paymaster,
		chainID:        chainID,
		key:            key,
		validityWindow: validityWindow,
		logger:         loggers.Logger(loggers.Sponsor),
	}, nil
}

// Owner returns the address the paymaster contract must have as owner for
// this sponsor's signatures to validate.
func (sponsor *LocalSponsor) Owner() ethcommon.Address {
	return ethcrypto.PubkeyToAddress(sponsor.key.PublicKey)
}

func (sponsor *LocalSponsor) SponsorUserOperation(ctx context.Context, userOp *interfaces.UserOperation, entryPoint ethcommon.Address) ([]byte, error) {
	now := time.Now()
	validAfter := big.NewInt(now.Add(-localValiditySlack).Unix())
	validUntil := big.NewInt(now.Add(sponsor.validityWindow).Unix())

	digest := GetHash(userOp, sponsor.chainID, sponsor.paymaster, validUntil, validAfter)
	signature, err := interfaces.SignHash(digest, sponsor.key)
	if err != nil {
		return nil, errors.Wrap(err, "sign paymaster hash")
	}

	paymasterAndData, err := BuildPaymasterAndData(sponsor.paymaster, validUntil, validAfter, signature)
	if err != nil {
		return nil, err
	}

	sponsor.logger.WithFields(logrus.Fields{
		"sender":     userOp.Sender.String(),
		"nonce":      userOp.Nonce.String(),
		"validUntil": validUntil.Int64(),
	}).Debug("sponsored user operation locally")

	return paymasterAndData, nil
}
