package signer

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

// Kind tells which class of key authorized an operation.
type Kind string

const (
	KindOwner   Kind = "owner"
	KindSession Kind = "session"
)

// Info identifies the key behind a signature.
type Info struct {
	Kind    Kind
	Address ethcommon.Address
}

// SignedOperation pairs a finalized operation with the hash that was signed
// and the identity that signed it. The hash is pinned at signing time so a
// later mutation of the operation is detectable.
type SignedOperation struct {
	Op     *interfaces.UserOperation
	Hash   ethcommon.Hash
	Signer Info
}

// Signer produces the account-level signature for a finalized operation.
// The calls are the batch the operation's callData encodes; session signers
// re-validate their permission against them at signing time.
type Signer interface {
	Info() Info
	SignOperation(ctx context.Context, userOp *interfaces.UserOperation, entryPoint ethcommon.Address, chainID *big.Int, calls []interfaces.Call) (*SignedOperation, error)
}

// ErrStaleSignature means an operation no longer matches the hash its
// signature was produced over.
var ErrStaleSignature = errors.New("operation mutated after signing, signature is stale")

// VerifySignedOperation re-derives the operation hash and checks that the
// signature still covers it and recovers to the signer.
func VerifySignedOperation(signed *SignedOperation, entryPoint ethcommon.Address, chainID *big.Int) error {
	hash := interfaces.GetUserOpHash(signed.Op, entryPoint, chainID)
	if hash != signed.Hash {
		return errors.Wrapf(ErrStaleSignature, "signed hash %s, current hash %s", signed.Hash, hash)
	}

	recovered, err := interfaces.RecoverAddressFromSignature(hash, signed.Op.Signature)
	if err != nil {
		return errors.Wrap(ErrStaleSignature, err.Error())
	}
	if recovered != signed.Signer.Address {
		return errors.Wrapf(ErrStaleSignature, "signature recovers to %s, signer is %s", recovered, signed.Signer.Address)
	}
	return nil
}
