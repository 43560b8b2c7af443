package interfaces

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/axiomesh/axiom-aa-sdk/pkg/codec"
)

// UserOperation is one intended state change routed through the entrypoint.
// Signature stays empty until every other field is final; mutating a signed
// operation changes its hash and voids the signature.
type UserOperation struct {
	Sender               ethcommon.Address `json:"sender"`
	Nonce                *big.Int          `json:"nonce"`
	InitCode             []byte            `json:"initCode"`
	CallData             []byte            `json:"callData"`
	CallGasLimit         *big.Int          `json:"callGasLimit"`
	VerificationGasLimit *big.Int          `json:"verificationGasLimit"`
	PreVerificationGas   *big.Int          `json:"preVerificationGas"`
	MaxFeePerGas         *big.Int          `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *big.Int          `json:"maxPriorityFeePerGas"`
	PaymasterAndData     []byte            `json:"paymasterAndData"`
	Signature            []byte            `json:"signature"`
}

func PackForSignature(userOp *UserOperation) []byte {
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
		{Name: "paymasterAndData", Type: codec.Bytes32Type},
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
		crypto.Keccak256Hash(userOp.PaymasterAndData),
	)

	return packed
}

// GetUserOpHash returns the hash of the userOp + entryPoint address + chainID.
func GetUserOpHash(userOp *UserOperation, entryPoint ethcommon.Address, chainID *big.Int) ethcommon.Hash {
	return crypto.Keccak256Hash(
		crypto.Keccak256(PackForSignature(userOp)),
		ethcommon.LeftPadBytes(entryPoint.Bytes(), 32),
		ethcommon.LeftPadBytes(chainID.Bytes(), 32),
	)
}

func GetGasPrice(userOp *UserOperation) *big.Int {
	return math.BigMin(userOp.MaxFeePerGas, userOp.MaxPriorityFeePerGas)
}

// Clone deep-copies the operation so later stages can mutate their own copy
// without invalidating an already-derived hash.
func (userOp *UserOperation) Clone() *UserOperation {
	return &UserOperation{
		Sender:               userOp.Sender,
		Nonce:                cloneBig(userOp.Nonce),
		InitCode:             cloneBytes(userOp.InitCode),
		CallData:             cloneBytes(userOp.CallData),
		CallGasLimit:         cloneBig(userOp.CallGasLimit),
		VerificationGasLimit: cloneBig(userOp.VerificationGasLimit),
		PreVerificationGas:   cloneBig(userOp.PreVerificationGas),
		MaxFeePerGas:         cloneBig(userOp.MaxFeePerGas),
		MaxPriorityFeePerGas: cloneBig(userOp.MaxPriorityFeePerGas),
		PaymasterAndData:     cloneBytes(userOp.PaymasterAndData),
		Signature:            cloneBytes(userOp.Signature),
	}
}

func cloneBig(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

// userOperationJSON is the bundler wire form: quantities and byte strings are
// 0x-prefixed hex.
type userOperationJSON struct {
	Sender               ethcommon.Address `json:"sender"`
	Nonce                *hexutil.Big      `json:"nonce"`
	InitCode             hexutil.Bytes     `json:"initCode"`
	CallData             hexutil.Bytes     `json:"callData"`
	CallGasLimit         *hexutil.Big      `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big      `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big      `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big      `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big      `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes     `json:"paymasterAndData"`
	Signature            hexutil.Bytes     `json:"signature"`
}

func (userOp *UserOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal(&userOperationJSON{
		Sender:               userOp.Sender,
		Nonce:                bigToWire(userOp.Nonce),
		InitCode:             userOp.InitCode,
		CallData:             userOp.CallData,
		CallGasLimit:         bigToWire(userOp.CallGasLimit),
		VerificationGasLimit: bigToWire(userOp.VerificationGasLimit),
		PreVerificationGas:   bigToWire(userOp.PreVerificationGas),
		MaxFeePerGas:         bigToWire(userOp.MaxFeePerGas),
		MaxPriorityFeePerGas: bigToWire(userOp.MaxPriorityFeePerGas),
		PaymasterAndData:     userOp.PaymasterAndData,
		Signature:            userOp.Signature,
	})
}

func (userOp *UserOperation) UnmarshalJSON(raw []byte) error {
	var wire userOperationJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	userOp.Sender = wire.Sender
	userOp.Nonce = bigFromWire(wire.Nonce)
	userOp.InitCode = wire.InitCode
	userOp.CallData = wire.CallData
	userOp.CallGasLimit = bigFromWire(wire.CallGasLimit)
	userOp.VerificationGasLimit = bigFromWire(wire.VerificationGasLimit)
	userOp.PreVerificationGas = bigFromWire(wire.PreVerificationGas)
	userOp.MaxFeePerGas = bigFromWire(wire.MaxFeePerGas)
	userOp.MaxPriorityFeePerGas = bigFromWire(wire.MaxPriorityFeePerGas)
	userOp.PaymasterAndData = wire.PaymasterAndData
	userOp.Signature = wire.Signature
	return nil
}

func bigToWire(x *big.Int) *hexutil.Big {
	if x == nil {
		x = big.NewInt(0)
	}
	return (*hexutil.Big)(x)
}

func bigFromWire(x *hexutil.Big) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return (*big.Int)(x)
}
