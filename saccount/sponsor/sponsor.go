package sponsor

import (
	"context"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

// Sponsor decides whether to pay gas for an operation. A successful call
// returns the paymasterAndData blob to attach before signing; attaching it
// later would invalidate the paymaster signature only, but the operation
// hash the account signs covers the blob too.
type Sponsor interface {
	SponsorUserOperation(ctx context.Context, userOp *interfaces.UserOperation, entryPoint ethcommon.Address) ([]byte, error)
}

// RejectionError means the sponsor looked at the operation and declined it.
// Retrying the same operation will not help.
type RejectionError struct {
	Reason string
}

func (err *RejectionError) Error() string {
	return fmt.Sprintf("sponsorship rejected: %s", err.Reason)
}

// IsRejection reports whether err is a sponsorship rejection rather than a
// transport failure.
func IsRejection(err error) bool {
	var rejection *RejectionError
	return errors.As(err, &rejection)
}
