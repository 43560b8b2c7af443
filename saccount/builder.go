package saccount

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-sdk/pkg/loggers"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

// Builder assembles unsigned operations from call batches. Gas limits and
// fees are left at zero for the estimator to fill in.
type Builder struct {
	entryPoint ethcommon.Address
	resolver   *Resolver
	backend    interfaces.ChainBackend
	logger     logrus.FieldLogger
}

func NewBuilder(entryPoint ethcommon.Address, resolver *Resolver, backend interfaces.ChainBackend) *Builder {
	return &Builder{
		entryPoint: entryPoint,
		resolver:   resolver,
		backend:    backend,
		logger:     loggers.Logger(loggers.Builder),
	}
}

func (builder *Builder) EntryPoint() ethcommon.Address {
	return builder.entryPoint
}

// Identity fills in the derived account address when the caller supplied
// only owner and salt.
func (builder *Builder) Identity(identity interfaces.AccountIdentity) interfaces.AccountIdentity {
	if identity.Address == (ethcommon.Address{}) {
		return builder.resolver.ResolveIdentity(identity.Owner, identity.Salt, identity.Guardian)
	}
	return identity
}

// Build produces an unsigned operation for the batch. The nonce is read from
// the entrypoint on every call rather than cached, so concurrent flows on
// the same lane serialize at the queue in front of this builder.
func (builder *Builder) Build(ctx context.Context, identity interfaces.AccountIdentity, calls []interfaces.Call, opts interfaces.BuildOptions) (*interfaces.UserOperation, error) {
	identity = builder.Identity(identity)

	callData, err := EncodeCalls(calls)
	if err != nil {
		return nil, err
	}

	nonceKey := opts.NonceKey
	if nonceKey == nil {
		nonceKey = big.NewInt(0)
	}
	nonce, err := builder.backend.GetNonce(ctx, identity.Address, nonceKey)
	if err != nil {
		return nil, errors.Wrap(err, "get account nonce")
	}

	state, err := builder.resolver.DeploymentState(ctx, identity.Address)
	if err != nil {
		return nil, err
	}
	initCode := []byte{}
	if state == DeploymentStateCounterfactual {
		if !opts.DeployIfNeeded {
			return nil, errors.Wrapf(ErrInvalidAccountState, "account %s has no code and deployment is disabled", identity.Address)
		}
		initCode = builder.resolver.BuildInitCode(identity.Owner, identity.Salt, identity.Guardian)
	}

	userOp := &interfaces.UserOperation{
		Sender:               identity.Address,
		Nonce:                nonce,
		InitCode:             initCode,
		CallData:             callData,
		CallGasLimit:         big.NewInt(0),
		VerificationGasLimit: big.NewInt(0),
		PreVerificationGas:   big.NewInt(0),
		MaxFeePerGas:         big.NewInt(0),
		MaxPriorityFeePerGas: big.NewInt(0),
		PaymasterAndData:     []byte{},
		Signature:            []byte{},
	}

	builder.logger.WithFields(logrus.Fields{
		"sender": userOp.Sender.String(),
		"nonce":  userOp.Nonce.String(),
		"calls":  len(calls),
		"deploy": len(initCode) != 0,
	}).Debug("built user operation")

	return userOp, nil
}
