package executor

import (
	"context"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-sdk/pkg/loggers"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
	"github.com/axiomesh/axiom-aa-sdk/saccount/relay"
	"github.com/axiomesh/axiom-aa-sdk/saccount/session"
	"github.com/axiomesh/axiom-aa-sdk/saccount/signer"
	"github.com/axiomesh/axiom-aa-sdk/saccount/sponsor"
)

// Phase is where one execution currently stands, or where it stopped.
type Phase int

const (
	PhaseBuilt Phase = iota
	PhaseGasEstimated
	PhaseSponsored
	PhaseUnsponsored
	PhaseSigned
	PhaseSubmitted
	PhaseConfirmed
	PhaseReverted
	PhaseTimeout
	PhaseFailed
)

func (phase Phase) String() string {
	switch phase {
	case PhaseBuilt:
		return "Built"
	case PhaseGasEstimated:
		return "GasEstimated"
	case PhaseSponsored:
		return "Sponsored"
	case PhaseUnsponsored:
		return "Unsponsored"
	case PhaseSigned:
		return "Signed"
	case PhaseSubmitted:
		return "Submitted"
	case PhaseConfirmed:
		return "Confirmed"
	case PhaseReverted:
		return "Reverted"
	case PhaseTimeout:
		return "Timeout"
	case PhaseFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the flow stops at this phase.
func (phase Phase) Terminal() bool {
	switch phase {
	case PhaseConfirmed, PhaseReverted, PhaseTimeout, PhaseFailed:
		return true
	}
	return false
}

// ErrSponsorshipRequired means the options demanded a paymaster but no
// sponsorship was granted.
var ErrSponsorshipRequired = errors.New("sponsorship required but not granted")

// Builder assembles unsigned operations. Satisfied by saccount.Builder.
type Builder interface {
	Identity(identity interfaces.AccountIdentity) interfaces.AccountIdentity
	Build(ctx context.Context, identity interfaces.AccountIdentity, calls []interfaces.Call, opts interfaces.BuildOptions) (*interfaces.UserOperation, error)
	EntryPoint() ethcommon.Address
}

// Estimator fills in gas limits and fees. Satisfied by gas.Estimator.
type Estimator interface {
	Estimate(ctx context.Context, userOp *interfaces.UserOperation) (*interfaces.UserOperation, error)
}

// Relay submits signed operations and polls their receipts. Satisfied by
// relay.Client.
type Relay interface {
	Submit(ctx context.Context, userOp *interfaces.UserOperation) (*relay.OperationHandle, error)
	PollReceipt(ctx context.Context, handle *relay.OperationHandle, timeout time.Duration) (*interfaces.UserOpReceipt, error)
}

// Options tune one execution.
type Options struct {
	// NonceKey selects the 2D nonce lane, nil means lane 0.
	NonceKey *big.Int

	// DeployIfNeeded deploys the account on first use.
	DeployIfNeeded bool

	// DisableSponsorship self-funds even when a sponsor is configured.
	DisableSponsorship bool

	// RequireSponsorship fails the flow instead of falling back to
	// self-funding when no sponsorship is granted.
	RequireSponsorship bool

	// WaitTimeout bounds the receipt poll, <= 0 uses the relay default.
	WaitTimeout time.Duration
}

// Result is the terminal state of one execution. Handle stays valid and
// pollable on Timeout.
type Result struct {
	Phase   Phase
	UserOp  *interfaces.UserOperation
	Handle  *relay.OperationHandle
	Receipt *interfaces.UserOpReceipt

	// Err holds the terminal error on Failed, the poll error on Timeout,
	// and the revoked-during-flight advisory when settlement recording
	// reported one.
	Err error
}

// Executor drives one operation through build, estimate, sponsor, sign,
// submit and receipt polling. The section up to submission is serialized
// per account and nonce lane.
type Executor struct {
	chainID   *big.Int
	builder   Builder
	estimator Estimator
	sponsor   sponsor.Sponsor
	sessions  *session.Manager
	relay     Relay
	queue     *laneQueue
	logger    logrus.FieldLogger
}

// New wires an executor. sponsorClient may be nil when no paymaster is
// configured, sessions may be nil when session settlement bookkeeping is
// not wanted.
func New(chainID *big.Int, builder Builder, estimator Estimator, sponsorClient sponsor.Sponsor, sessions *session.Manager, relayClient Relay) *Executor {
	return &Executor{
		chainID:   chainID,
		builder:   builder,
		estimator: estimator,
		sponsor:   sponsorClient,
		sessions:  sessions,
		relay:     relayClient,
		queue:     newLaneQueue(),
		logger:    loggers.Logger(loggers.Executor),
	}
}

// Execute runs the full flow and blocks until a terminal phase. The
// returned error is non-nil only when the flow failed before settlement
// could be decided; Timeout and Reverted are reported through the result,
// not the error.
//
// Cancelling ctx before submission aborts the flow cleanly. After
// submission the operation cannot be withdrawn, cancellation only stops
// the receipt poll and the result keeps the pollable handle.
func (executor *Executor) Execute(ctx context.Context, identity interfaces.AccountIdentity, calls []interfaces.Call, opSigner signer.Signer, opts Options) (*Result, error) {
	start := time.Now()
	identity = executor.builder.Identity(identity)
	result := &Result{Phase: PhaseBuilt}

	executor.queue.run(identity.Address, opts.NonceKey, func() {
		executor.submitFlow(ctx, identity, calls, opSigner, opts, result)
	})
	if result.Phase == PhaseFailed {
		executor.finish(result, start)
		return result, result.Err
	}

	// polling happens outside the serialized section so the lane is free
	// for the next operation while this one settles
	receipt, err := executor.relay.PollReceipt(ctx, result.Handle, opts.WaitTimeout)
	if err != nil {
		result.Phase = PhaseTimeout
		result.Err = err
		executor.finish(result, start)
		return result, nil
	}

	result.Receipt = receipt
	if receipt.Success {
		result.Phase = PhaseConfirmed
	} else {
		result.Phase = PhaseReverted
	}
	executor.recordSettlement(result, identity, opSigner, calls)
	executor.finish(result, start)
	return result, nil
}

func (executor *Executor) submitFlow(ctx context.Context, identity interfaces.AccountIdentity, calls []interfaces.Call, opSigner signer.Signer, opts Options, result *Result) {
	fail := func(err error) {
		result.Phase = PhaseFailed
		result.Err = err
	}
	if err := ctx.Err(); err != nil {
		fail(err)
		return
	}

	userOp, err := executor.builder.Build(ctx, identity, calls, interfaces.BuildOptions{
		NonceKey:       opts.NonceKey,
		DeployIfNeeded: opts.DeployIfNeeded,
	})
	if err != nil {
		fail(err)
		return
	}
	result.UserOp = userOp

	userOp, err = executor.estimator.Estimate(ctx, userOp)
	if err != nil {
		fail(err)
		return
	}
	result.Phase = PhaseGasEstimated
	result.UserOp = userOp

	userOp, err = executor.sponsorStep(ctx, userOp, opts, result)
	if err != nil {
		fail(err)
		return
	}
	result.UserOp = userOp

	signed, err := opSigner.SignOperation(ctx, userOp, executor.builder.EntryPoint(), executor.chainID, calls)
	if err != nil {
		if reason := session.DeniedReason(err); reason != "" {
			sessionDenialCounter.WithLabelValues(string(reason)).Inc()
		}
		fail(err)
		return
	}
	result.Phase = PhaseSigned
	result.UserOp = signed.Op

	if err := ctx.Err(); err != nil {
		fail(err)
		return
	}
	handle, err := executor.relay.Submit(ctx, signed.Op)
	if err != nil {
		fail(err)
		return
	}
	result.Phase = PhaseSubmitted
	result.Handle = handle
}

// sponsorStep attaches paymasterAndData before signing so the signed hash
// covers it. A declined sponsorship falls back to self-funding unless the
// options require a paymaster.
func (executor *Executor) sponsorStep(ctx context.Context, userOp *interfaces.UserOperation, opts Options, result *Result) (*interfaces.UserOperation, error) {
	if executor.sponsor != nil && !opts.DisableSponsorship {
		blob, err := executor.sponsor.SponsorUserOperation(ctx, userOp, executor.builder.EntryPoint())
		switch {
		case err == nil:
			sponsored := userOp.Clone()
			sponsored.PaymasterAndData = blob
			result.Phase = PhaseSponsored
			return sponsored, nil
		case sponsor.IsRejection(err):
			if opts.RequireSponsorship {
				return nil, errors.Wrap(ErrSponsorshipRequired, err.Error())
			}
			executor.logger.WithFields(logrus.Fields{
				"sender": userOp.Sender.String(),
				"err":    err,
			}).Warn("sponsorship declined, self funding")
		default:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if opts.RequireSponsorship {
				return nil, err
			}
			executor.logger.WithFields(logrus.Fields{
				"sender": userOp.Sender.String(),
				"err":    err,
			}).Warn("sponsor unreachable, self funding")
		}
	} else if opts.RequireSponsorship {
		return nil, ErrSponsorshipRequired
	}
	result.Phase = PhaseUnsponsored
	return userOp, nil
}

// recordSettlement books the settled spend against the session permission.
// Owner-signed operations carry no permission, nothing to record.
func (executor *Executor) recordSettlement(result *Result, identity interfaces.AccountIdentity, opSigner signer.Signer, calls []interfaces.Call) {
	info := opSigner.Info()
	if executor.sessions == nil || info.Kind != signer.KindSession {
		return
	}

	// a reverted batch moved no value, only the gas was spent
	totalValue := big.NewInt(0)
	if result.Phase == PhaseConfirmed {
		totalValue = interfaces.BatchValue(calls)
	}
	actualGasCost := big.NewInt(0)
	if result.Receipt.ActualGasCost != nil {
		actualGasCost = result.Receipt.ActualGasCost
	}

	err := executor.sessions.RecordSettlement(identity.Address, info.Address, result.Handle.UserOpHash, actualGasCost, totalValue)
	if err != nil {
		result.Err = err
		if errors.Is(err, session.ErrRevokedDuringFlight) {
			executor.logger.WithFields(logrus.Fields{
				"userOpHash": result.Handle.UserOpHash.String(),
				"signer":     info.Address.String(),
			}).Warn("session permission revoked while operation was in flight")
			return
		}
		executor.logger.WithFields(logrus.Fields{
			"userOpHash": result.Handle.UserOpHash.String(),
			"err":        err,
		}).Error("record session settlement failed")
	}
}

func (executor *Executor) finish(result *Result, start time.Time) {
	phase := result.Phase.String()
	elapsed := time.Since(start)
	finishedOpsCounter.WithLabelValues(phase).Inc()
	opLatency.WithLabelValues(phase).Observe(elapsed.Seconds())

	fields := logrus.Fields{
		"phase":   phase,
		"elapsed": elapsed.String(),
	}
	if result.Handle != nil {
		fields["userOpHash"] = result.Handle.UserOpHash.String()
	}
	if result.Err != nil {
		fields["err"] = result.Err
		executor.logger.WithFields(fields).Warn("user operation flow finished")
		return
	}
	executor.logger.WithFields(fields).Info("user operation flow finished")
}

// Close drains the lane queues. In-flight flows finish first.
func (executor *Executor) Close() {
	executor.queue.close()
}
