package chainrpc

import (
	"context"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-sdk/pkg/codec"
	"github.com/axiomesh/axiom-aa-sdk/pkg/loggers"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

var (
	// getNonce(address sender, uint192 key)
	getNonceSig = crypto.Keccak256([]byte("getNonce(address,uint192)"))[:4]
)

// Caller is the JSON-RPC transport surface the client depends on.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
	Close()
}

var _ interfaces.ChainBackend = (*Client)(nil)

// Client reads account and chain state from the settlement node over
// JSON-RPC. It implements interfaces.ChainBackend.
type Client struct {
	caller     Caller
	entryPoint ethcommon.Address
	timeout    time.Duration
	logger     logrus.FieldLogger

	chainIDMu sync.Mutex
	chainID   *big.Int
}

// Dial connects to the settlement node. The entryPoint address is used for
// nonce queries and gas simulation.
func Dial(rawURL string, entryPoint ethcommon.Address, timeout time.Duration) (*Client, error) {
	rpcClient, err := rpc.Dial(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial chain rpc %s failed", rawURL)
	}
	return NewClient(rpcClient, entryPoint, timeout), nil
}

func NewClient(caller Caller, entryPoint ethcommon.Address, timeout time.Duration) *Client {
	return &Client{
		caller:     caller,
		entryPoint: entryPoint,
		timeout:    timeout,
		logger:     loggers.Logger(loggers.Chain),
	}
}

func (client *Client) Close() {
	client.caller.Close()
}

func (client *Client) EntryPoint() ethcommon.Address {
	return client.entryPoint
}

func (client *Client) ChainID(ctx context.Context) (*big.Int, error) {
	client.chainIDMu.Lock()
	defer client.chainIDMu.Unlock()
	if client.chainID != nil {
		return new(big.Int).Set(client.chainID), nil
	}

	ctx, cancel := client.withTimeout(ctx)
	defer cancel()
	var raw hexutil.Big
	if err := client.caller.CallContext(ctx, &raw, "eth_chainId"); err != nil {
		return nil, errors.Wrap(err, "get chain id")
	}
	client.chainID = (*big.Int)(&raw)
	return new(big.Int).Set(client.chainID), nil
}

// GetNonce asks the entrypoint for the account's next nonce on the given 2D
// nonce lane.
func (client *Client) GetNonce(ctx context.Context, account ethcommon.Address, key *big.Int) (*big.Int, error) {
	if key == nil {
		key = big.NewInt(0)
	}
	data := append([]byte{}, getNonceSig...)
	data = append(data, ethcommon.LeftPadBytes(account.Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(key.Bytes(), 32)...)

	ctx, cancel := client.withTimeout(ctx)
	defer cancel()
	var raw hexutil.Bytes
	err := client.caller.CallContext(ctx, &raw, "eth_call", map[string]any{
		"to":   client.entryPoint,
		"data": hexutil.Bytes(data),
	}, "latest")
	if err != nil {
		return nil, errors.Wrap(err, "call entrypoint getNonce")
	}

	nonce, err := codec.UnpackBigInt(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode entrypoint nonce")
	}
	return nonce, nil
}

func (client *Client) GetCode(ctx context.Context, account ethcommon.Address) ([]byte, error) {
	ctx, cancel := client.withTimeout(ctx)
	defer cancel()
	var raw hexutil.Bytes
	if err := client.caller.CallContext(ctx, &raw, "eth_getCode", account, "latest"); err != nil {
		return nil, errors.Wrapf(err, "get code of %s", account)
	}
	return raw, nil
}

type gasEstimateJSON struct {
	CallGasLimit         *hexutil.Big `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
}

// EstimateUserOpGas simulates the operation through the node. A json-rpc
// error from the node means the simulation itself rejected the operation;
// transport failures surface unchanged for the caller to retry.
func (client *Client) EstimateUserOpGas(ctx context.Context, userOp *interfaces.UserOperation) (*interfaces.GasEstimate, error) {
	ctx, cancel := client.withTimeout(ctx)
	defer cancel()
	var raw gasEstimateJSON
	if err := client.caller.CallContext(ctx, &raw, "eth_estimateUserOperationGas", userOp, client.entryPoint); err != nil {
		return nil, err
	}
	if raw.CallGasLimit == nil || raw.VerificationGasLimit == nil || raw.PreVerificationGas == nil {
		return nil, errors.New("node returned incomplete gas estimate")
	}
	return &interfaces.GasEstimate{
		CallGasLimit:         (*big.Int)(raw.CallGasLimit),
		VerificationGasLimit: (*big.Int)(raw.VerificationGasLimit),
		PreVerificationGas:   (*big.Int)(raw.PreVerificationGas),
	}, nil
}

func (client *Client) SuggestFees(ctx context.Context) (*interfaces.GasFees, error) {
	ctx, cancel := client.withTimeout(ctx)
	defer cancel()

	var gasPrice hexutil.Big
	if err := client.caller.CallContext(ctx, &gasPrice, "eth_gasPrice"); err != nil {
		return nil, errors.Wrap(err, "get gas price")
	}
	var tip hexutil.Big
	if err := client.caller.CallContext(ctx, &tip, "eth_maxPriorityFeePerGas"); err != nil {
		// older nodes only expose the legacy price
		client.logger.WithField("err", err).Debug("max priority fee not available, fallback to gas price")
		tip = gasPrice
	}

	return &interfaces.GasFees{
		MaxFeePerGas:         (*big.Int)(&gasPrice),
		MaxPriorityFeePerGas: (*big.Int)(&tip),
	}, nil
}

func (client *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if client.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, client.timeout)
}
