package relay

import (
	"context"
	"regexp"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-sdk/pkg/loggers"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

// Caller abstracts the bundler JSON-RPC connection.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
	Close()
}

// RejectedByValidationError means the bundler refused the operation during
// validation. Resubmitting the same bytes cannot succeed.
type RejectedByValidationError struct {
	// Code is the entrypoint failure code (AA21, AA25, ...) when the
	// bundler surfaced one, empty otherwise.
	Code   string
	Detail string
}

func (err *RejectedByValidationError) Error() string {
	if err.Code == "" {
		return "user operation rejected: " + err.Detail
	}
	return "user operation rejected (" + err.Code + "): " + err.Detail
}

// IsRejectedByValidation reports whether err is a bundler validation
// rejection rather than a transport problem.
func IsRejectedByValidation(err error) bool {
	var rejected *RejectedByValidationError
	return errors.As(err, &rejected)
}

// ErrReceiptTimeout means the receipt did not show up within the poll
// window. The operation may still settle, the handle stays pollable.
var ErrReceiptTimeout = errors.New("user operation receipt not found in time")

var aaCodePattern = regexp.MustCompile(`AA[0-9]{2}`)

type Config struct {
	SubmitRetryNumber   uint
	SubmitRetryBaseTime time.Duration
	PollInterval        time.Duration
	PollTimeout         time.Duration
	ReceiptCacheSize    int
}

// OperationHandle identifies a submitted operation on the bundler.
type OperationHandle struct {
	UserOpHash ethcommon.Hash
	EntryPoint ethcommon.Address
}

// Client talks to a bundler: submits signed operations and polls for their
// receipts. Confirmed receipts are cached so re-polls hit memory.
type Client struct {
	caller     Caller
	entryPoint ethcommon.Address
	config     Config
	receipts   *lru.Cache[ethcommon.Hash, *interfaces.UserOpReceipt]
	logger     logrus.FieldLogger
}

// Dial connects to the bundler RPC endpoint.
func Dial(rawURL string, entryPoint ethcommon.Address, config Config) (*Client, error) {
	caller, err := rpc.Dial(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial bundler %s", rawURL)
	}
	return NewClient(caller, entryPoint, config)
}

func NewClient(caller Caller, entryPoint ethcommon.Address, config Config) (*Client, error) {
	if config.SubmitRetryNumber == 0 {
		config.SubmitRetryNumber = 1
	}
	if config.SubmitRetryBaseTime <= 0 {
		config.SubmitRetryBaseTime = 500 * time.Millisecond
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = 60 * time.Second
	}
	if config.ReceiptCacheSize <= 0 {
		config.ReceiptCacheSize = 256
	}
	receipts, err := lru.New[ethcommon.Hash, *interfaces.UserOpReceipt](config.ReceiptCacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		caller:     caller,
		entryPoint: entryPoint,
		config:     config,
		receipts:   receipts,
		logger:     loggers.Logger(loggers.Relay),
	}, nil
}

func (client *Client) EntryPoint() ethcommon.Address {
	return client.entryPoint
}

// Submit sends the signed operation to the bundler and returns its handle.
// Validation rejections are final. Transport failures are retried up to the
// configured attempt count.
func (client *Client) Submit(ctx context.Context, userOp *interfaces.UserOperation) (*OperationHandle, error) {
	var userOpHash ethcommon.Hash
	var rejected *RejectedByValidationError
	err := retry.Retry(func(attempt uint) error {
		var result ethcommon.Hash
		callErr := client.caller.CallContext(ctx, &result, "eth_sendUserOperation", userOp, client.entryPoint)
		if callErr != nil {
			var rpcErr rpc.Error
			if errors.As(callErr, &rpcErr) {
				rejected = &RejectedByValidationError{
					Code:   aaCodePattern.FindString(rpcErr.Error()),
					Detail: rpcErr.Error(),
				}
				return nil
			}
			client.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"err":     callErr,
			}).Warn("submit user operation failed")
			return callErr
		}
		userOpHash = result
		return nil
	}, strategy.Limit(client.config.SubmitRetryNumber), strategy.Backoff(backoff.BinaryExponential(client.config.SubmitRetryBaseTime)))
	if rejected != nil {
		return nil, rejected
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errors.Wrap(err, "submit user operation")
	}

	client.logger.WithFields(logrus.Fields{
		"sender":     userOp.Sender.String(),
		"nonce":      userOp.Nonce.String(),
		"userOpHash": userOpHash.String(),
	}).Info("submitted user operation")

	return &OperationHandle{UserOpHash: userOpHash, EntryPoint: client.entryPoint}, nil
}

// PollReceipt waits for the operation's receipt, querying the bundler every
// poll interval until it shows up or the timeout passes. A timeout is not a
// failure, the handle can be polled again later. timeout <= 0 uses the
// configured default.
func (client *Client) PollReceipt(ctx context.Context, handle *OperationHandle, timeout time.Duration) (*interfaces.UserOpReceipt, error) {
	if receipt, ok := client.receipts.Get(handle.UserOpHash); ok {
		return receipt, nil
	}
	if timeout <= 0 {
		timeout = client.config.PollTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(client.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.getReceipt(ctx, handle.UserOpHash)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			client.logger.WithFields(logrus.Fields{
				"userOpHash": handle.UserOpHash.String(),
				"err":        err,
			}).Warn("query user operation receipt failed")
		}
		if receipt != nil {
			client.receipts.Add(handle.UserOpHash, receipt)
			client.logger.WithFields(logrus.Fields{
				"userOpHash": handle.UserOpHash.String(),
				"success":    receipt.Success,
				"txHash":     receipt.TxHash.String(),
			}).Info("user operation settled")
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, errors.Wrapf(ErrReceiptTimeout, "user operation %s", handle.UserOpHash)
		case <-ticker.C:
		}
	}
}

func (client *Client) getReceipt(ctx context.Context, userOpHash ethcommon.Hash) (*interfaces.UserOpReceipt, error) {
	// null result means the operation has not settled yet
	var receipt *interfaces.UserOpReceipt
	if err := client.caller.CallContext(ctx, &receipt, "eth_getUserOperationReceipt", userOpHash); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (client *Client) Close() {
	client.caller.Close()
}
