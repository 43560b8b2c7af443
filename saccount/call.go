package saccount

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/samber/lo"

	"github.com/axiomesh/axiom-aa-sdk/pkg/codec"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

var (
	// execute(address dest, uint256 value, bytes func)
	executeSig = crypto.Keccak256([]byte("execute(address,uint256,bytes)"))[:4]

	// executeBatch(address[] dest, bytes[] func)
	executeBatchSig = crypto.Keccak256([]byte("executeBatch(address[],bytes[])"))[:4]

	// executeBatch(address[] dest, uint256[] value, bytes[] func)
	executeBatchValueSig = crypto.Keccak256([]byte("executeBatch(address[],uint256[],bytes[])"))[:4]

	// executeBatchTolerant(address[] dest, uint256[] value, bytes[] func, bool[] tolerate)
	executeBatchTolerantSig = crypto.Keccak256([]byte("executeBatchTolerant(address[],uint256[],bytes[],bool[])"))[:4]

	// setGuardian(address guardian)
	setGuardianSig = crypto.Keccak256([]byte("setGuardian(address)"))[:4]

	// resetOwner(address owner)
	resetOwnerSig = crypto.Keccak256([]byte("resetOwner(address)"))[:4]

	// setSession(address addr, uint256 spendingLimit, uint64 validAfter, uint64 validUntil)
	setSessionSig = crypto.Keccak256([]byte("setSession(address,uint256,uint64,uint64)"))[:4]

	// transfer(address to, uint256 value)
	transferSig = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

	// setPasskey(bytes publicKey, uint8 algo)
	setPasskeySig = crypto.Keccak256([]byte("setPasskey(bytes,uint8)"))[:4]

	// createAccount(address owner, uint256 salt)
	createAccountSig = crypto.Keccak256([]byte("createAccount(address,uint256)"))[:4]
)

// EncodeCalls lowers a batch to the callData the smart account executes.
// One plain call uses execute, value-free batches use the two array
// executeBatch, batches carrying value use the three array form, and a batch
// containing at least one tolerant call uses executeBatchTolerant so marked
// calls may revert without aborting the rest.
func EncodeCalls(calls []interfaces.Call) ([]byte, error) {
	if len(calls) == 0 {
		return nil, ErrEmptyBatch
	}

	tolerant := lo.SomeBy(calls, func(call interfaces.Call) bool {
		return call.TolerateRevert
	})
	hasValue := lo.SomeBy(calls, func(call interfaces.Call) bool {
		return call.Value != nil && call.Value.Sign() != 0
	})

	if !tolerant && len(calls) == 1 {
		return packWithSig(executeSig, abi.Arguments{
			{Name: "dest", Type: codec.AddressType},
			{Name: "value", Type: codec.BigIntType},
			{Name: "func", Type: codec.BytesType},
		}, calls[0].To, callValue(calls[0]), callData(calls[0]))
	}

	dests := lo.Map(calls, func(call interfaces.Call, _ int) ethcommon.Address {
		return call.To
	})
	values := lo.Map(calls, func(call interfaces.Call, _ int) *big.Int {
		return callValue(call)
	})
	datas := lo.Map(calls, func(call interfaces.Call, _ int) []byte {
		return callData(call)
	})

	if tolerant {
		tolerations := lo.Map(calls, func(call interfaces.Call, _ int) bool {
			return call.TolerateRevert
		})
		return packWithSig(executeBatchTolerantSig, abi.Arguments{
			{Name: "dest", Type: codec.AddressSliceType},
			{Name: "value", Type: codec.BigIntSliceType},
			{Name: "func", Type: codec.BytesSliceType},
			{Name: "tolerate", Type: codec.BoolSliceType},
		}, dests, values, datas, tolerations)
	}

	if !hasValue {
		return packWithSig(executeBatchSig, abi.Arguments{
			{Name: "dest", Type: codec.AddressSliceType},
			{Name: "func", Type: codec.BytesSliceType},
		}, dests, datas)
	}

	return packWithSig(executeBatchValueSig, abi.Arguments{
		{Name: "dest", Type: codec.AddressSliceType},
		{Name: "value", Type: codec.BigIntSliceType},
		{Name: "func", Type: codec.BytesSliceType},
	}, dests, values, datas)
}

// NewTransferCall moves native value from the account to the recipient.
func NewTransferCall(to ethcommon.Address, value *big.Int) interfaces.Call {
	return interfaces.Call{
		To:    to,
		Value: value,
		Data:  []byte{},
	}
}

// NewTokenTransferCall calls transfer on an ERC20 token held by the account.
func NewTokenTransferCall(token ethcommon.Address, recipient ethcommon.Address, amount *big.Int) (interfaces.Call, error) {
	data, err := packWithSig(transferSig, abi.Arguments{
		{Name: "to", Type: codec.AddressType},
		{Name: "value", Type: codec.BigIntType},
	}, recipient, amount)
	if err != nil {
		return interfaces.Call{}, err
	}
	return interfaces.Call{To: token, Value: big.NewInt(0), Data: data}, nil
}

// NewSetGuardianCall points the account's recovery key at guardian. The call
// targets the account itself.
func NewSetGuardianCall(account ethcommon.Address, guardian ethcommon.Address) (interfaces.Call, error) {
	data, err := packWithSig(setGuardianSig, abi.Arguments{
		{Name: "guardian", Type: codec.AddressType},
	}, guardian)
	if err != nil {
		return interfaces.Call{}, err
	}
	return interfaces.Call{To: account, Value: big.NewInt(0), Data: data}, nil
}

// NewResetOwnerCall rotates the account owner. The account contract only
// honors it on the guardian path.
func NewResetOwnerCall(account ethcommon.Address, newOwner ethcommon.Address) (interfaces.Call, error) {
	data, err := packWithSig(resetOwnerSig, abi.Arguments{
		{Name: "owner", Type: codec.AddressType},
	}, newOwner)
	if err != nil {
		return interfaces.Call{}, err
	}
	return interfaces.Call{To: account, Value: big.NewInt(0), Data: data}, nil
}

// NewSetSessionCall registers a session key in the account contract. The
// contract keeps a single session slot, so a later call replaces the
// previous key.
func NewSetSessionCall(account ethcommon.Address, signer ethcommon.Address, spendingLimit *big.Int, validAfter uint64, validUntil uint64) (interfaces.Call, error) {
	data, err := packWithSig(setSessionSig, abi.Arguments{
		{Name: "addr", Type: codec.AddressType},
		{Name: "spendingLimit", Type: codec.BigIntType},
		{Name: "validAfter", Type: codec.UInt64Type},
		{Name: "validUntil", Type: codec.UInt64Type},
	}, signer, spendingLimit, validAfter, validUntil)
	if err != nil {
		return interfaces.Call{}, err
	}
	return interfaces.Call{To: account, Value: big.NewInt(0), Data: data}, nil
}

// NewSetPasskeyCall installs a WebAuthn credential on the account. The
// publicKey bytes are the CBOR encoded COSE key the contract stores.
func NewSetPasskeyCall(account ethcommon.Address, publicKey []byte, algo uint8) (interfaces.Call, error) {
	data, err := packWithSig(setPasskeySig, abi.Arguments{
		{Name: "publicKey", Type: codec.BytesType},
		{Name: "algo", Type: codec.UInt8Type},
	}, publicKey, algo)
	if err != nil {
		return interfaces.Call{}, err
	}
	return interfaces.Call{To: account, Value: big.NewInt(0), Data: data}, nil
}

func packWithSig(sig []byte, args abi.Arguments, values ...any) ([]byte, error) {
	packed, err := codec.Pack(args, values...)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, sig...), packed...), nil
}

func callValue(call interfaces.Call) *big.Int {
	if call.Value == nil {
		return big.NewInt(0)
	}
	return call.Value
}

func callData(call interfaces.Call) []byte {
	if call.Data == nil {
		return []byte{}
	}
	return call.Data
}
