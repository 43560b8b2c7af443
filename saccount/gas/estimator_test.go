package gas

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

type stubBackend struct {
	estimate     *interfaces.GasEstimate
	estimateErrs []error
	estimateCall int
	fees         *interfaces.GasFees
	feesErr      error
}

func (backend *stubBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1356), nil
}

func (backend *stubBackend) GetNonce(ctx context.Context, account ethcommon.Address, key *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (backend *stubBackend) GetCode(ctx context.Context, account ethcommon.Address) ([]byte, error) {
	return nil, nil
}

func (backend *stubBackend) EstimateUserOpGas(ctx context.Context, userOp *interfaces.UserOperation) (*interfaces.GasEstimate, error) {
	idx := backend.estimateCall
	backend.estimateCall++
	if idx < len(backend.estimateErrs) && backend.estimateErrs[idx] != nil {
		return nil, backend.estimateErrs[idx]
	}
	return backend.estimate, nil
}

func (backend *stubBackend) SuggestFees(ctx context.Context) (*interfaces.GasFees, error) {
	if backend.feesErr != nil {
		return nil, backend.feesErr
	}
	return backend.fees, nil
}

type revertRPCError struct {
	msg string
}

func (err *revertRPCError) Error() string  { return err.msg }
func (err *revertRPCError) ErrorCode() int { return 3 }

func newStubBackend() *stubBackend {
	return &stubBackend{
		estimate: &interfaces.GasEstimate{
			CallGasLimit:         big.NewInt(21000),
			VerificationGasLimit: big.NewInt(90000),
			PreVerificationGas:   big.NewInt(50000),
		},
		fees: &interfaces.GasFees{
			MaxFeePerGas:         big.NewInt(2000000000),
			MaxPriorityFeePerGas: big.NewInt(1000000000),
		},
	}
}

func gasTestOp() *interfaces.UserOperation {
	return &interfaces.UserOperation{
		Sender:               ethcommon.HexToAddress("0xc7F999b83Af6DF9e67d0a37Ee7e900bF38b3D013"),
		Nonce:                big.NewInt(1),
		InitCode:             []byte{},
		CallData:             []byte{0xb6, 0x1d, 0x27, 0xf6},
		CallGasLimit:         big.NewInt(0),
		VerificationGasLimit: big.NewInt(0),
		PreVerificationGas:   big.NewInt(0),
		MaxFeePerGas:         big.NewInt(0),
		MaxPriorityFeePerGas: big.NewInt(0),
		PaymasterAndData:     []byte{},
		Signature:            []byte{},
	}
}

func TestEstimateFillsGasAndFees(t *testing.T) {
	backend := newStubBackend()
	estimator := NewEstimator(backend, 20, 3, time.Millisecond)

	userOp := gasTestOp()
	estimated, err := estimator.Estimate(context.Background(), userOp)
	require.Nil(t, err)

	// 20 percent on top of every simulated limit
	assert.Equal(t, big.NewInt(25200), estimated.CallGasLimit)
	assert.Equal(t, big.NewInt(108000), estimated.VerificationGasLimit)
	assert.Equal(t, big.NewInt(60000), estimated.PreVerificationGas)
	assert.Equal(t, big.NewInt(2000000000), estimated.MaxFeePerGas)
	assert.Equal(t, big.NewInt(1000000000), estimated.MaxPriorityFeePerGas)

	// estimation does not leave a signature behind
	assert.Empty(t, estimated.Signature)
	// the input operation is untouched
	assert.Equal(t, big.NewInt(0), userOp.CallGasLimit)
}

func TestEstimateKeepsPinnedFees(t *testing.T) {
	backend := newStubBackend()
	estimator := NewEstimator(backend, 0, 3, time.Millisecond)

	userOp := gasTestOp()
	userOp.MaxFeePerGas = big.NewInt(5)
	userOp.MaxPriorityFeePerGas = big.NewInt(3)

	estimated, err := estimator.Estimate(context.Background(), userOp)
	require.Nil(t, err)
	assert.Equal(t, big.NewInt(5), estimated.MaxFeePerGas)
	assert.Equal(t, big.NewInt(3), estimated.MaxPriorityFeePerGas)
	assert.Equal(t, big.NewInt(21000), estimated.CallGasLimit)
}

func TestEstimateClassifiesRevert(t *testing.T) {
	backend := newStubBackend()
	backend.estimateErrs = []error{&revertRPCError{msg: "execution reverted: AA23 reverted"}}
	estimator := NewEstimator(backend, 20, 3, time.Millisecond)

	_, err := estimator.Estimate(context.Background(), gasTestOp())
	require.True(t, IsSimulationReverted(err))
	assert.Contains(t, err.Error(), "AA23")
	// a revert is permanent, no retries happen
	assert.Equal(t, 1, backend.estimateCall)
}

func TestEstimateRetriesTransientFailures(t *testing.T) {
	backend := newStubBackend()
	backend.estimateErrs = []error{errors.New("connection refused"), errors.New("connection refused")}
	estimator := NewEstimator(backend, 20, 3, time.Millisecond)

	estimated, err := estimator.Estimate(context.Background(), gasTestOp())
	require.Nil(t, err)
	assert.Equal(t, 3, backend.estimateCall)
	assert.Equal(t, big.NewInt(25200), estimated.CallGasLimit)
}

func TestEstimateUnavailableAfterRetries(t *testing.T) {
	backend := newStubBackend()
	backend.estimateErrs = []error{
		errors.New("connection refused"),
		errors.New("connection refused"),
		errors.New("connection refused"),
	}
	estimator := NewEstimator(backend, 20, 3, time.Millisecond)

	_, err := estimator.Estimate(context.Background(), gasTestOp())
	assert.True(t, errors.Is(err, ErrEstimationUnavailable))
}

func TestEstimateFeesUnavailable(t *testing.T) {
	backend := newStubBackend()
	backend.feesErr = errors.New("connection refused")
	estimator := NewEstimator(backend, 20, 2, time.Millisecond)

	_, err := estimator.Estimate(context.Background(), gasTestOp())
	assert.True(t, errors.Is(err, ErrEstimationUnavailable))
}
