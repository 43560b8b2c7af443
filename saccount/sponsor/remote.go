package sponsor

import (
	"context"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-sdk/pkg/loggers"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

// Caller is the JSON-RPC transport surface the remote sponsor depends on.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
	Close()
}

var _ Sponsor = (*RemoteSponsor)(nil)

// RemoteSponsor asks an external paymaster service to sponsor operations
// over the pm namespace. A json-rpc error from the service is a rejection;
// transport failures surface unchanged.
type RemoteSponsor struct {
	caller  Caller
	timeout time.Duration
	logger  logrus.FieldLogger
}

func DialRemote(rawURL string, timeout time.Duration) (*RemoteSponsor, error) {
	rpcClient, err := rpc.Dial(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial sponsor rpc %s failed", rawURL)
	}
	return NewRemoteSponsor(rpcClient, timeout), nil
}

func NewRemoteSponsor(caller Caller, timeout time.Duration) *RemoteSponsor {
	return &RemoteSponsor{
		caller:  caller,
		timeout: timeout,
		logger:  loggers.Logger(loggers.Sponsor),
	}
}

func (sponsor *RemoteSponsor) Close() {
	sponsor.caller.Close()
}

type sponsorResultJSON struct {
	PaymasterAndData hexutil.Bytes `json:"paymasterAndData"`
}

func (sponsor *RemoteSponsor) SponsorUserOperation(ctx context.Context, userOp *interfaces.UserOperation, entryPoint ethcommon.Address) ([]byte, error) {
	if sponsor.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sponsor.timeout)
		defer cancel()
	}

	var result sponsorResultJSON
	err := sponsor.caller.CallContext(ctx, &result, "pm_sponsorUserOperation", userOp, entryPoint)
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, &RejectionError{Reason: rpcErr.Error()}
		}
		return nil, errors.Wrap(err, "call sponsor service")
	}
	if len(result.PaymasterAndData) < SIGNATURE_OFFSET {
		return nil, &RejectionError{Reason: "sponsor returned malformed paymasterAndData"}
	}

	sponsor.logger.WithFields(logrus.Fields{
		"sender": userOp.Sender.String(),
		"nonce":  userOp.Nonce.String(),
	}).Debug("sponsored user operation remotely")

	return result.PaymasterAndData, nil
}
