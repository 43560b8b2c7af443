package gas

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-sdk/pkg/loggers"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

// SimulationRevertedError means the node simulated the operation and it
// reverted. The operation is broken as constructed, retrying cannot help.
type SimulationRevertedError struct {
	Reason string
}

func (err *SimulationRevertedError) Error() string {
	return fmt.Sprintf("gas simulation reverted: %s", err.Reason)
}

// IsSimulationReverted reports whether err is a simulation revert rather
// than an availability problem.
func IsSimulationReverted(err error) bool {
	var reverted *SimulationRevertedError
	return errors.As(err, &reverted)
}

// ErrEstimationUnavailable means the node could not be reached for
// simulation. The operation itself may be fine.
var ErrEstimationUnavailable = errors.New("gas estimation unavailable")

// placeholder signature so simulation pays a representative validation cost
var dummySignature = func() []byte {
	sig := make([]byte, 65)
	for i := range sig {
		sig[i] = 0xff
	}
	sig[64] = 28
	return sig
}()

// Estimator fills the gas fields of an unsigned operation from a node
// simulation, padding each limit with a safety margin.
type Estimator struct {
	backend       interfaces.ChainBackend
	margin        uint64
	retryNumber   uint
	retryBaseTime time.Duration
	logger        logrus.FieldLogger
}

// NewEstimator builds an estimator. margin is a percentage added on top of
// every simulated limit.
func NewEstimator(backend interfaces.ChainBackend, margin uint64, retryNumber uint, retryBaseTime time.Duration) *Estimator {
	if retryNumber == 0 {
		retryNumber = 1
	}
	if retryBaseTime <= 0 {
		retryBaseTime = 500 * time.Millisecond
	}
	return &Estimator{
		backend:       backend,
		margin:        margin,
		retryNumber:   retryNumber,
		retryBaseTime: retryBaseTime,
		logger:        loggers.Logger(loggers.Gas),
	}
}

// Estimate returns a copy of the operation with fees and gas limits filled
// in. Fees already set on the operation are kept, so callers can pin their
// own price.
func (estimator *Estimator) Estimate(ctx context.Context, userOp *interfaces.UserOperation) (*interfaces.UserOperation, error) {
	estimated := userOp.Clone()

	if estimated.MaxFeePerGas == nil || estimated.MaxFeePerGas.Sign() == 0 {
		fees, err := estimator.suggestFees(ctx)
		if err != nil {
			return nil, err
		}
		estimated.MaxFeePerGas = fees.MaxFeePerGas
		estimated.MaxPriorityFeePerGas = fees.MaxPriorityFeePerGas
	}

	sim := estimated.Clone()
	if len(sim.Signature) == 0 {
		sim.Signature = dummySignature
	}

	estimate, err := estimator.simulate(ctx, sim)
	if err != nil {
		return nil, err
	}

	estimated.CallGasLimit = estimator.applyMargin(estimate.CallGasLimit)
	estimated.VerificationGasLimit = estimator.applyMargin(estimate.VerificationGasLimit)
	estimated.PreVerificationGas = estimator.applyMargin(estimate.PreVerificationGas)

	estimator.logger.WithFields(logrus.Fields{
		"sender":               estimated.Sender.String(),
		"nonce":                estimated.Nonce.String(),
		"callGasLimit":         estimated.CallGasLimit.String(),
		"verificationGasLimit": estimated.VerificationGasLimit.String(),
		"preVerificationGas":   estimated.PreVerificationGas.String(),
	}).Debug("estimated user operation gas")

	return estimated, nil
}

func (estimator *Estimator) simulate(ctx context.Context, sim *interfaces.UserOperation) (*interfaces.GasEstimate, error) {
	var estimate *interfaces.GasEstimate
	var reverted *SimulationRevertedError
	err := retry.Retry(func(attempt uint) error {
		var callErr error
		estimate, callErr = estimator.backend.EstimateUserOpGas(ctx, sim)
		if callErr != nil {
			var rpcErr rpc.Error
			if errors.As(callErr, &rpcErr) {
				reverted = &SimulationRevertedError{Reason: rpcErr.Error()}
				return nil
			}
			estimator.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"err":     callErr,
			}).Warn("estimate user op gas failed")
			return callErr
		}
		return nil
	}, strategy.Limit(estimator.retryNumber), strategy.Backoff(backoff.BinaryExponential(estimator.retryBaseTime)))
	if reverted != nil {
		return nil, reverted
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errors.Wrap(ErrEstimationUnavailable, err.Error())
	}
	return estimate, nil
}

func (estimator *Estimator) suggestFees(ctx context.Context) (*interfaces.GasFees, error) {
	var fees *interfaces.GasFees
	err := retry.Retry(func(attempt uint) error {
		var callErr error
		fees, callErr = estimator.backend.SuggestFees(ctx)
		return callErr
	}, strategy.Limit(estimator.retryNumber), strategy.Backoff(backoff.BinaryExponential(estimator.retryBaseTime)))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errors.Wrap(ErrEstimationUnavailable, err.Error())
	}
	return fees, nil
}

func (estimator *Estimator) applyMargin(limit *big.Int) *big.Int {
	if limit == nil {
		return big.NewInt(0)
	}
	padded := new(big.Int).Mul(limit, big.NewInt(int64(100+estimator.margin)))
	return padded.Div(padded, big.NewInt(100))
}
