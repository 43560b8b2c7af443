package interfaces

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Call is one account-level action inside a batch.
type Call struct {
	To    ethcommon.Address
	Value *big.Int
	Data  []byte

	// TolerateRevert marks the call as skippable: a batch containing at
	// least one tolerant call is encoded so that a revert in a tolerant
	// call does not abort the remaining calls.
	TolerateRevert bool
}

// BatchValue sums the native value every call in the batch moves. Session
// key spending checks run against this amount.
func BatchValue(calls []Call) *big.Int {
	total := big.NewInt(0)
	for _, call := range calls {
		if call.Value != nil {
			total.Add(total, call.Value)
		}
	}
	return total
}

// AccountIdentity pins the smart account a flow operates on. Address is
// derived from Owner and Salt and filled in by the resolver; Guardian is
// zero when the account has no recovery key.
type AccountIdentity struct {
	Address  ethcommon.Address
	Owner    ethcommon.Address
	Salt     *big.Int
	Guardian ethcommon.Address
}

// BuildOptions tunes how one operation is assembled.
type BuildOptions struct {
	// NonceKey selects the 2D nonce lane, nil means the default lane 0.
	// Operations on different lanes do not order against each other.
	NonceKey *big.Int

	// DeployIfNeeded attaches the factory payload when the account has no
	// code yet. Without it, building against a counterfactual account is
	// an error.
	DeployIfNeeded bool
}
