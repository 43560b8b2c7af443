package saccount

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

// DeploymentState reports whether a counterfactual address has been
// materialized on chain yet.
type DeploymentState uint8

const (
	DeploymentStateUnknown DeploymentState = iota
	DeploymentStateCounterfactual
	DeploymentStateDeployed
)

func (state DeploymentState) String() string {
	switch state {
	case DeploymentStateCounterfactual:
		return "counterfactual"
	case DeploymentStateDeployed:
		return "deployed"
	}
	return "unknown"
}

// Resolver derives deterministic account addresses and deployment payloads
// for the account factory. The derivation is pure, so the same owner and
// salt always land on the same address before and after deployment.
type Resolver struct {
	factory ethcommon.Address
	backend interfaces.ChainBackend
}

func NewResolver(factory ethcommon.Address, backend interfaces.ChainBackend) *Resolver {
	return &Resolver{
		factory: factory,
		backend: backend,
	}
}

// ResolveAddress computes the account address the factory will deploy to for
// the owner and salt pair.
func (resolver *Resolver) ResolveAddress(owner ethcommon.Address, salt *big.Int) ethcommon.Address {
	var saltBytes [32]byte
	copy(saltBytes[:], saltOrZero(salt).Bytes())
	return crypto.CreateAddress2(owner, saltBytes, resolver.factory.Bytes())
}

// ResolveIdentity fills in the derived address for an owner, salt and
// optional guardian.
func (resolver *Resolver) ResolveIdentity(owner ethcommon.Address, salt *big.Int, guardian ethcommon.Address) interfaces.AccountIdentity {
	salt = saltOrZero(salt)
	return interfaces.AccountIdentity{
		Address:  resolver.ResolveAddress(owner, salt),
		Owner:    owner,
		Salt:     new(big.Int).Set(salt),
		Guardian: guardian,
	}
}

// BuildInitCode returns the deployment payload for the account: the factory
// address followed by the createAccount call. The guardian argument is only
// appended when one is set.
func (resolver *Resolver) BuildInitCode(owner ethcommon.Address, salt *big.Int, guardian ethcommon.Address) []byte {
	initCode := append([]byte{}, resolver.factory.Bytes()...)
	initCode = append(initCode, createAccountSig...)
	initCode = append(initCode, ethcommon.LeftPadBytes(owner.Bytes(), 32)...)
	initCode = append(initCode, ethcommon.LeftPadBytes(saltOrZero(salt).Bytes(), 32)...)
	if guardian != (ethcommon.Address{}) {
		initCode = append(initCode, ethcommon.LeftPadBytes(guardian.Bytes(), 32)...)
	}
	return initCode
}

// DeploymentState checks whether code exists at the account address.
func (resolver *Resolver) DeploymentState(ctx context.Context, account ethcommon.Address) (DeploymentState, error) {
	code, err := resolver.backend.GetCode(ctx, account)
	if err != nil {
		return DeploymentStateUnknown, errors.Wrap(err, "get account code")
	}
	if len(code) == 0 {
		return DeploymentStateCounterfactual, nil
	}
	return DeploymentStateDeployed, nil
}

func saltOrZero(salt *big.Int) *big.Int {
	if salt == nil {
		return big.NewInt(0)
	}
	return salt
}
