package codec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ABI argument types shared by every package that packs smart account data.
// abi.NewType only fails on malformed type strings, all of which are literals
// here.
var (
	AddressType, _      = abi.NewType("address", "", nil)
	BigIntType, _       = abi.NewType("uint256", "", nil)
	UInt192Type, _      = abi.NewType("uint192", "", nil)
	UInt64Type, _       = abi.NewType("uint64", "", nil)
	UInt48Type, _       = abi.NewType("uint48", "", nil)
	UInt8Type, _        = abi.NewType("uint8", "", nil)
	Bytes32Type, _      = abi.NewType("bytes32", "", nil)
	BytesType, _        = abi.NewType("bytes", "", nil)
	BoolType, _         = abi.NewType("bool", "", nil)
	AddressSliceType, _ = abi.NewType("address[]", "", nil)
	BigIntSliceType, _  = abi.NewType("uint256[]", "", nil)
	BytesSliceType, _   = abi.NewType("bytes[]", "", nil)
	BoolSliceType, _    = abi.NewType("bool[]", "", nil)
)

// Selector returns the 4-byte method selector of a canonical signature,
// e.g. "execute(address,uint256,bytes)".
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// Pack ABI-encodes values against args. Encoding is deterministic: identical
// values always produce identical bytes.
func Pack(args abi.Arguments, values ...any) ([]byte, error) {
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, errors.Wrap(err, "abi pack")
	}
	return packed, nil
}

// PackCall prepends the method selector to the packed arguments.
func PackCall(signature string, args abi.Arguments, values ...any) ([]byte, error) {
	packed, err := Pack(args, values...)
	if err != nil {
		return nil, err
	}
	return append(Selector(signature), packed...), nil
}

// UnpackBigInt decodes a single uint256 return value.
func UnpackBigInt(data []byte) (*big.Int, error) {
	values, err := abi.Arguments{{Type: BigIntType}}.Unpack(data)
	if err != nil {
		return nil, errors.Wrap(err, "abi unpack uint256")
	}
	res, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("abi unpack uint256: unexpected type %T", values[0])
	}
	return res, nil
}

func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

func Keccak256Hash(data ...[]byte) ethcommon.Hash {
	return crypto.Keccak256Hash(data...)
}

// LeftPad32 left-pads b to a 32-byte word.
func LeftPad32(b []byte) []byte {
	return ethcommon.LeftPadBytes(b, 32)
}
