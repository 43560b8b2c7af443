package interfaces

import (
	"encoding/json"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockUserOp() *UserOperation {
	return &UserOperation{
		Sender:               ethcommon.HexToAddress("0xc7F999b83Af6DF9e67d0a37Ee7e900bF38b3D013"),
		Nonce:                big.NewInt(1),
		InitCode:             []byte{},
		CallData:             ethcommon.Hex2Bytes("b61d27f6"),
		CallGasLimit:         big.NewInt(21000),
		VerificationGasLimit: big.NewInt(90000),
		PreVerificationGas:   big.NewInt(21000),
		MaxFeePerGas:         big.NewInt(2000000000),
		MaxPriorityFeePerGas: big.NewInt(1000000000),
		PaymasterAndData:     []byte{},
		Signature:            []byte{},
	}
}

func TestPackForSignature(t *testing.T) {
	userOp := mockUserOp()
	packed := PackForSignature(userOp)
	// 10 static words
	assert.Equal(t, 320, len(packed))
	assert.Equal(t, packed, PackForSignature(userOp))

	// the signature is not part of the packed form
	signed := userOp.Clone()
	signed.Signature = []byte("sig")
	assert.Equal(t, packed, PackForSignature(signed))
}

func TestGetUserOpHash(t *testing.T) {
	entryPoint := ethcommon.HexToAddress("0x0000000000000000000000000000000000001008")
	chainID := big.NewInt(1356)

	userOp := mockUserOp()
	hash := GetUserOpHash(userOp, entryPoint, chainID)
	assert.Equal(t, hash, GetUserOpHash(userOp, entryPoint, chainID))

	// every bound input shifts the hash
	other := userOp.Clone()
	other.Nonce = big.NewInt(2)
	assert.NotEqual(t, hash, GetUserOpHash(other, entryPoint, chainID))

	other = userOp.Clone()
	other.CallData = ethcommon.Hex2Bytes("18dfb3c7")
	assert.NotEqual(t, hash, GetUserOpHash(other, entryPoint, chainID))

	other = userOp.Clone()
	other.PaymasterAndData = []byte{0x01}
	assert.NotEqual(t, hash, GetUserOpHash(other, entryPoint, chainID))

	assert.NotEqual(t, hash, GetUserOpHash(userOp, entryPoint, big.NewInt(1357)))
	assert.NotEqual(t, hash, GetUserOpHash(userOp, ethcommon.HexToAddress("0x0000000000000000000000000000000000001009"), chainID))
}

func TestGetGasPrice(t *testing.T) {
	userOp := mockUserOp()
	assert.Equal(t, big.NewInt(1000000000), GetGasPrice(userOp))

	userOp.MaxPriorityFeePerGas = big.NewInt(3000000000)
	assert.Equal(t, big.NewInt(2000000000), GetGasPrice(userOp))
}

func TestClone(t *testing.T) {
	userOp := mockUserOp()
	cloned := userOp.Clone()
	require.Equal(t, userOp, cloned)

	cloned.Nonce.SetInt64(99)
	cloned.CallData[0] = 0xff
	assert.Equal(t, big.NewInt(1), userOp.Nonce)
	assert.Equal(t, byte(0xb6), userOp.CallData[0])
}

func TestUserOperationJSON(t *testing.T) {
	userOp := mockUserOp()
	userOp.Signature = []byte{0x01, 0x02}

	raw, err := json.Marshal(userOp)
	require.Nil(t, err)
	assert.Contains(t, string(raw), `"nonce":"0x1"`)
	assert.Contains(t, string(raw), `"callData":"0xb61d27f6"`)
	assert.Contains(t, string(raw), `"signature":"0x0102"`)

	var decoded UserOperation
	err = json.Unmarshal(raw, &decoded)
	require.Nil(t, err)
	assert.Equal(t, userOp.Sender, decoded.Sender)
	assert.Equal(t, userOp.Nonce, decoded.Nonce)
	assert.Equal(t, userOp.CallGasLimit, decoded.CallGasLimit)
	assert.Equal(t, GetUserOpHash(userOp, ethcommon.Address{}, big.NewInt(1)), GetUserOpHash(&decoded, ethcommon.Address{}, big.NewInt(1)))
}

func TestUserOpReceiptJSON(t *testing.T) {
	receipt := &UserOpReceipt{
		UserOpHash:    ethcommon.HexToHash("0xaa"),
		Sender:        ethcommon.HexToAddress("0xc7F999b83Af6DF9e67d0a37Ee7e900bF38b3D013"),
		Nonce:         big.NewInt(7),
		ActualGasCost: big.NewInt(123456),
		ActualGasUsed: big.NewInt(60000),
		Success:       true,
		TxHash:        ethcommon.HexToHash("0xbb"),
		BlockNumber:   42,
	}

	raw, err := json.Marshal(receipt)
	require.Nil(t, err)
	assert.Contains(t, string(raw), `"actualGasCost":"0x1e240"`)
	assert.Contains(t, string(raw), `"blockNumber":"0x2a"`)

	var decoded UserOpReceipt
	err = json.Unmarshal(raw, &decoded)
	require.Nil(t, err)
	assert.Equal(t, receipt, &decoded)
}
