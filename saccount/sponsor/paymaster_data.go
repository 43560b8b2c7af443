package sponsor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/axiomesh/axiom-aa-sdk/pkg/codec"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

const (
	VALID_TIMESTAMP_OFFSET = 20
	SIGNATURE_OFFSET       = 84
)

// packForPaymaster packs the operation without its paymasterAndData, which
// is what the paymaster signature covers.
func packForPaymaster(userOp *interfaces.UserOperation) []byte {
	args := abi.Arguments{
		{Name: "sender", Type: codec.AddressType},
		{Name: "nonce", Type: codec.BigIntType},
		{Name: "initCode", Type: codec.Bytes32Type},
		{Name: "callData", Type: codec.Bytes32Type},
		{Name: "callGasLimit", Type: codec.BigIntType},
		{Name: "verificationGasLimit", Type: codec.BigIntType},
		{Name: "preVerificationGas", Type: codec.BigIntType},
		{Name: "maxFeePerGas", Type: codec.BigIntType},
		{Name: "maxPriorityFeePerGas", Type: codec.BigIntType},
	}
	packed, _ := args.Pack(
		userOp.Sender,
		userOp.Nonce,
		crypto.Keccak256Hash(userOp.InitCode),
		crypto.Keccak256Hash(userOp.CallData),
		userOp.CallGasLimit,
		userOp.VerificationGasLimit,
		userOp.PreVerificationGas,
		userOp.MaxFeePerGas,
		userOp.MaxPriorityFeePerGas,
	)

	return packed
}

// GetHash is the digest the paymaster owner signs to agree to pay for the
// operation's gas.
func GetHash(userOp *interfaces.UserOperation, chainID *big.Int, paymaster ethcommon.Address, validUntil, validAfter *big.Int) [32]byte {
	hash := crypto.Keccak256(
		packForPaymaster(userOp),
		ethcommon.LeftPadBytes(chainID.Bytes(), 32),
		ethcommon.LeftPadBytes(paymaster.Bytes(), 32),
		ethcommon.LeftPadBytes(validUntil.Bytes(), 32),
		ethcommon.LeftPadBytes(validAfter.Bytes(), 32),
	)
	var digest [32]byte
	copy(digest[:], hash)
	return digest
}

// BuildPaymasterAndData assembles the wire blob: paymaster address, packed
// validity window, then the paymaster signature.
func BuildPaymasterAndData(paymaster ethcommon.Address, validUntil, validAfter *big.Int, signature []byte) ([]byte, error) {
	arg := abi.Arguments{
		{Name: "validUntil", Type: codec.UInt48Type},
		{Name: "validAfter", Type: codec.UInt48Type},
	}
	validTimeData, err := arg.Pack(validUntil, validAfter)
	if err != nil {
		return nil, errors.Wrap(err, "pack paymaster validity window")
	}

	data := append([]byte{}, paymaster.Bytes()...)
	data = append(data, validTimeData...)
	data = append(data, signature...)
	return data, nil
}

// ParsePaymasterAndData splits a paymasterAndData blob back into its parts.
func ParsePaymasterAndData(paymasterAndData []byte) (paymaster ethcommon.Address, validUntil, validAfter *big.Int, signature []byte, err error) {
	if len(paymasterAndData) < SIGNATURE_OFFSET {
		return ethcommon.Address{}, nil, nil, nil, errors.New("parse paymasterAndData failed, length is too short")
	}

	paymaster = ethcommon.BytesToAddress(paymasterAndData[:VALID_TIMESTAMP_OFFSET])
	validTimeData := paymasterAndData[VALID_TIMESTAMP_OFFSET:SIGNATURE_OFFSET]

	arg := abi.Arguments{
		{Name: "validUntil", Type: codec.UInt48Type},
		{Name: "validAfter", Type: codec.UInt48Type},
	}
	validTime, err := arg.Unpack(validTimeData)
	if err != nil {
		return ethcommon.Address{}, nil, nil, nil, err
	}
	if len(validTime) != 2 {
		return ethcommon.Address{}, nil, nil, nil, errors.New("parse valid time failed from paymasterAndData")
	}
	validUntil = validTime[0].(*big.Int)
	validAfter = validTime[1].(*big.Int)

	signature = paymasterAndData[SIGNATURE_OFFSET:]
	return paymaster, validUntil, validAfter, signature, nil
}
