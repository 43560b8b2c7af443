package session

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/axiomesh/axiom-aa-sdk/pkg/codec"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

var (
	// WildcardTarget lets a permission match any call target.
	WildcardTarget = ethcommon.HexToAddress("0xFFfFfFffFFfffFFfFFfFFFFFffFFFffffFfFFFfF")

	// WildcardSelector lets a permission match any call selector, including
	// plain value transfers with an empty payload.
	WildcardSelector = []byte{0xff, 0xff, 0xff, 0xff}
)

// Permission is a scoped session grant: a session key may act for the
// account only against the granted target and selector, inside the validity
// window, and within the value and spending limits. SpentAmount accumulates
// settled gas cost plus moved value.
type Permission struct {
	Account    ethcommon.Address `json:"account"`
	Signer     ethcommon.Address `json:"signer"`
	ValidAfter uint64            `json:"validAfter"`
	ValidUntil uint64            `json:"validUntil"`

	Target   ethcommon.Address `json:"target"`
	Selector hexutil.Bytes     `json:"selector"`

	// ValueLimit caps the native value of a single call, SpendingLimit caps
	// the cumulative settled spend of the whole grant.
	ValueLimit    *big.Int `json:"valueLimit"`
	SpendingLimit *big.Int `json:"spendingLimit"`
	SpentAmount   *big.Int `json:"spentAmount"`

	Revoked        bool          `json:"revoked"`
	GrantSignature hexutil.Bytes `json:"grantSignature"`
	GrantedAt      int64         `json:"grantedAt"`
}

// GrantHash is the digest the account owner signs to authorize the
// permission. Every scoping field is bound, so tampering with any of them
// invalidates the grant signature.
func GrantHash(perm *Permission) ethcommon.Hash {
	args := abi.Arguments{
		{Name: "account", Type: codec.AddressType},
		{Name: "signer", Type: codec.AddressType},
		{Name: "validAfter", Type: codec.UInt64Type},
		{Name: "validUntil", Type: codec.UInt64Type},
		{Name: "target", Type: codec.AddressType},
		{Name: "selector", Type: codec.Bytes32Type},
		{Name: "valueLimit", Type: codec.BigIntType},
		{Name: "spendingLimit", Type: codec.BigIntType},
	}
	packed, _ := args.Pack(
		perm.Account,
		perm.Signer,
		perm.ValidAfter,
		perm.ValidUntil,
		perm.Target,
		ethcommon.BytesToHash(perm.Selector),
		perm.ValueLimit,
		perm.SpendingLimit,
	)
	return crypto.Keccak256Hash(packed)
}

// IsWildcardTarget reports whether the permission matches any target.
func (perm *Permission) IsWildcardTarget() bool {
	return perm.Target == WildcardTarget
}

// IsWildcardSelector reports whether the permission matches any selector.
func (perm *Permission) IsWildcardSelector() bool {
	return bytes.Equal(perm.Selector, WildcardSelector)
}

// AllowsCall checks one call against the permission scope. Calls with an
// empty payload carry no selector and only match wildcard selector grants.
func (perm *Permission) AllowsCall(call interfaces.Call) *PermissionDeniedError {
	if !perm.IsWildcardTarget() && call.To != perm.Target {
		return &PermissionDeniedError{
			Reason: DeniedTargetMismatch,
			Detail: fmt.Sprintf("call target %s, granted target %s", call.To, perm.Target),
		}
	}

	if !perm.IsWildcardSelector() {
		if len(call.Data) < 4 {
			return &PermissionDeniedError{
				Reason: DeniedSelectorMismatch,
				Detail: "call carries no selector",
			}
		}
		if !bytes.Equal(call.Data[:4], perm.Selector) {
			return &PermissionDeniedError{
				Reason: DeniedSelectorMismatch,
				Detail: fmt.Sprintf("call selector %x, granted selector %x", call.Data[:4], []byte(perm.Selector)),
			}
		}
	}

	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}
	if perm.ValueLimit != nil && value.Cmp(perm.ValueLimit) > 0 {
		return &PermissionDeniedError{
			Reason: DeniedValueLimitExceeded,
			Detail: fmt.Sprintf("call value %s, value limit %s", value, perm.ValueLimit),
		}
	}

	return nil
}

// Remaining returns how much settled spend is still available.
func (perm *Permission) Remaining() *big.Int {
	if perm.SpentAmount == nil || perm.SpentAmount.Cmp(perm.SpendingLimit) >= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(perm.SpendingLimit, perm.SpentAmount)
}

// Status is the lifecycle state of a permission at one point in time.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusActive
	StatusNotYetValid
	StatusExpired
	StatusRevoked
	StatusExhausted
)

func (status Status) String() string {
	switch status {
	case StatusActive:
		return "active"
	case StatusNotYetValid:
		return "not yet valid"
	case StatusExpired:
		return "expired"
	case StatusRevoked:
		return "revoked"
	case StatusExhausted:
		return "exhausted"
	}
	return "unknown"
}

// StatusAt evaluates the permission state at the given unix time.
func (perm *Permission) StatusAt(now uint64) Status {
	switch {
	case perm.Revoked:
		return StatusRevoked
	case now < perm.ValidAfter:
		return StatusNotYetValid
	case now > perm.ValidUntil:
		return StatusExpired
	case perm.SpentAmount != nil && perm.SpendingLimit != nil && perm.SpentAmount.Cmp(perm.SpendingLimit) >= 0:
		return StatusExhausted
	}
	return StatusActive
}

// DenyReason classifies why a permission check failed.
type DenyReason string

const (
	DeniedRevoked            DenyReason = "revoked"
	DeniedNotYetValid        DenyReason = "not yet valid"
	DeniedExpired            DenyReason = "expired"
	DeniedTargetMismatch     DenyReason = "target mismatch"
	DeniedSelectorMismatch   DenyReason = "selector mismatch"
	DeniedValueLimitExceeded DenyReason = "value limit exceeded"
	DeniedSpendingLimit      DenyReason = "spending limit exceeded"
)

// PermissionDeniedError rejects a session key use with the first failed
// check.
type PermissionDeniedError struct {
	Reason DenyReason
	Detail string
}

func (err *PermissionDeniedError) Error() string {
	if err.Detail == "" {
		return fmt.Sprintf("session permission denied: %s", err.Reason)
	}
	return fmt.Sprintf("session permission denied: %s, %s", err.Reason, err.Detail)
}

// IsPermissionDenied reports whether err wraps a permission denial.
func IsPermissionDenied(err error) bool {
	var denied *PermissionDeniedError
	return errors.As(err, &denied)
}

// DeniedReason extracts the denial reason, empty when err is not a denial.
func DeniedReason(err error) DenyReason {
	var denied *PermissionDeniedError
	if errors.As(err, &denied) {
		return denied.Reason
	}
	return ""
}
