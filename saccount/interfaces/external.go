package interfaces

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// GasEstimate carries the three simulated gas limits for one operation.
type GasEstimate struct {
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
}

// GasFees is the suggested fee pair read from the settlement node.
type GasFees struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// ChainBackend reads account and chain state from the settlement node.
type ChainBackend interface {
	// ChainID returns the chain id the node reports. Implementations may
	// cache it after the first call.
	ChainID(ctx context.Context) (*big.Int, error)

	// GetNonce queries the entrypoint for the account's next nonce under
	// the given 2D nonce key.
	GetNonce(ctx context.Context, account ethcommon.Address, key *big.Int) (*big.Int, error)

	// GetCode returns the runtime code deployed at the address, empty when
	// the account is still counterfactual.
	GetCode(ctx context.Context, account ethcommon.Address) ([]byte, error)

	// EstimateUserOpGas simulates the operation and returns its gas limits.
	EstimateUserOpGas(ctx context.Context, userOp *UserOperation) (*GasEstimate, error)

	// SuggestFees returns the node's current fee suggestion.
	SuggestFees(ctx context.Context) (*GasFees, error)
}
