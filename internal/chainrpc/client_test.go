package chainrpc

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

var testEntryPoint = ethcommon.HexToAddress("0x0000000000000000000000000000000000001008")

type fakeCaller struct {
	chainID      *big.Int
	nonce        *big.Int
	code         []byte
	gasPrice     *big.Int
	tip          *big.Int
	tipErr       error
	estimate     *gasEstimateJSON
	estimateErr  error
	calls        []string
	lastCallData hexutil.Bytes
}

func (caller *fakeCaller) CallContext(ctx context.Context, result any, method string, args ...any) error {
	caller.calls = append(caller.calls, method)
	switch method {
	case "eth_chainId":
		*(result.(*hexutil.Big)) = hexutil.Big(*caller.chainID)
	case "eth_call":
		arg := args[0].(map[string]any)
		caller.lastCallData = arg["data"].(hexutil.Bytes)
		*(result.(*hexutil.Bytes)) = ethcommon.LeftPadBytes(caller.nonce.Bytes(), 32)
	case "eth_getCode":
		*(result.(*hexutil.Bytes)) = caller.code
	case "eth_estimateUserOperationGas":
		if caller.estimateErr != nil {
			return caller.estimateErr
		}
		*(result.(*gasEstimateJSON)) = *caller.estimate
	case "eth_gasPrice":
		*(result.(*hexutil.Big)) = hexutil.Big(*caller.gasPrice)
	case "eth_maxPriorityFeePerGas":
		if caller.tipErr != nil {
			return caller.tipErr
		}
		*(result.(*hexutil.Big)) = hexutil.Big(*caller.tip)
	}
	return nil
}

func (caller *fakeCaller) Close() {}

func newTestClient(caller *fakeCaller) *Client {
	return NewClient(caller, testEntryPoint, time.Second)
}

func TestChainIDCached(t *testing.T) {
	caller := &fakeCaller{chainID: big.NewInt(1356)}
	client := newTestClient(caller)

	chainID, err := client.ChainID(context.Background())
	require.Nil(t, err)
	assert.Equal(t, big.NewInt(1356), chainID)

	_, err = client.ChainID(context.Background())
	require.Nil(t, err)
	assert.Equal(t, []string{"eth_chainId"}, caller.calls)
}

func TestGetNonce(t *testing.T) {
	caller := &fakeCaller{nonce: big.NewInt(9)}
	client := newTestClient(caller)

	nonce, err := client.GetNonce(context.Background(), testEntryPoint, big.NewInt(3))
	require.Nil(t, err)
	assert.Equal(t, big.NewInt(9), nonce)

	require.Equal(t, 4+32*2, len(caller.lastCallData))
	assert.Equal(t, getNonceSig, []byte(caller.lastCallData[:4]))
	assert.Equal(t, big.NewInt(3), new(big.Int).SetBytes(caller.lastCallData[36:68]))

	// nil key falls back to the default lane
	_, err = client.GetNonce(context.Background(), testEntryPoint, nil)
	require.Nil(t, err)
	assert.Equal(t, big.NewInt(0), new(big.Int).SetBytes(caller.lastCallData[36:68]))
}

func TestGetCode(t *testing.T) {
	caller := &fakeCaller{code: []byte{0x60, 0x80}}
	client := newTestClient(caller)

	code, err := client.GetCode(context.Background(), testEntryPoint)
	require.Nil(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, code)
}

func TestEstimateUserOpGas(t *testing.T) {
	caller := &fakeCaller{
		estimate: &gasEstimateJSON{
			CallGasLimit:         (*hexutil.Big)(big.NewInt(33100)),
			VerificationGasLimit: (*hexutil.Big)(big.NewInt(90000)),
			PreVerificationGas:   (*hexutil.Big)(big.NewInt(21000)),
		},
	}
	client := newTestClient(caller)

	estimate, err := client.EstimateUserOpGas(context.Background(), &interfaces.UserOperation{})
	require.Nil(t, err)
	assert.Equal(t, big.NewInt(33100), estimate.CallGasLimit)
	assert.Equal(t, big.NewInt(90000), estimate.VerificationGasLimit)
	assert.Equal(t, big.NewInt(21000), estimate.PreVerificationGas)

	caller.estimate = &gasEstimateJSON{}
	_, err = client.EstimateUserOpGas(context.Background(), &interfaces.UserOperation{})
	assert.NotNil(t, err)

	caller.estimateErr = errors.New("execution reverted")
	_, err = client.EstimateUserOpGas(context.Background(), &interfaces.UserOperation{})
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestSuggestFees(t *testing.T) {
	caller := &fakeCaller{
		gasPrice: big.NewInt(2000000000),
		tip:      big.NewInt(1000000000),
	}
	client := newTestClient(caller)

	fees, err := client.SuggestFees(context.Background())
	require.Nil(t, err)
	assert.Equal(t, big.NewInt(2000000000), fees.MaxFeePerGas)
	assert.Equal(t, big.NewInt(1000000000), fees.MaxPriorityFeePerGas)

	caller.tipErr = errors.New("method not found")
	fees, err = client.SuggestFees(context.Background())
	require.Nil(t, err)
	assert.Equal(t, fees.MaxFeePerGas, fees.MaxPriorityFeePerGas)
}
