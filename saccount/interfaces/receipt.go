package interfaces

import (
	"encoding/json"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UserOpReceipt is the bundler's settlement record for one operation.
// Success false means the account-level call reverted after the operation
// itself was validated and paid for.
type UserOpReceipt struct {
	UserOpHash    ethcommon.Hash    `json:"userOpHash"`
	Sender        ethcommon.Address `json:"sender"`
	Nonce         *big.Int          `json:"nonce"`
	Paymaster     ethcommon.Address `json:"paymaster"`
	ActualGasCost *big.Int          `json:"actualGasCost"`
	ActualGasUsed *big.Int          `json:"actualGasUsed"`
	Success       bool              `json:"success"`
	Reason        string            `json:"reason"`
	TxHash        ethcommon.Hash    `json:"transactionHash"`
	BlockNumber   uint64            `json:"blockNumber"`
	BlockHash     ethcommon.Hash    `json:"blockHash"`
}

type userOpReceiptJSON struct {
	UserOpHash    ethcommon.Hash    `json:"userOpHash"`
	Sender        ethcommon.Address `json:"sender"`
	Nonce         *hexutil.Big      `json:"nonce"`
	Paymaster     ethcommon.Address `json:"paymaster"`
	ActualGasCost *hexutil.Big      `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big      `json:"actualGasUsed"`
	Success       bool              `json:"success"`
	Reason        string            `json:"reason"`
	TxHash        ethcommon.Hash    `json:"transactionHash"`
	BlockNumber   hexutil.Uint64    `json:"blockNumber"`
	BlockHash     ethcommon.Hash    `json:"blockHash"`
}

func (receipt *UserOpReceipt) MarshalJSON() ([]byte, error) {
	return json.Marshal(&userOpReceiptJSON{
		UserOpHash:    receipt.UserOpHash,
		Sender:        receipt.Sender,
		Nonce:         bigToWire(receipt.Nonce),
		Paymaster:     receipt.Paymaster,
		ActualGasCost: bigToWire(receipt.ActualGasCost),
		ActualGasUsed: bigToWire(receipt.ActualGasUsed),
		Success:       receipt.Success,
		Reason:        receipt.Reason,
		TxHash:        receipt.TxHash,
		BlockNumber:   hexutil.Uint64(receipt.BlockNumber),
		BlockHash:     receipt.BlockHash,
	})
}

func (receipt *UserOpReceipt) UnmarshalJSON(raw []byte) error {
	var wire userOpReceiptJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	receipt.UserOpHash = wire.UserOpHash
	receipt.Sender = wire.Sender
	receipt.Nonce = bigFromWire(wire.Nonce)
	receipt.Paymaster = wire.Paymaster
	receipt.ActualGasCost = bigFromWire(wire.ActualGasCost)
	receipt.ActualGasUsed = bigFromWire(wire.ActualGasUsed)
	receipt.Success = wire.Success
	receipt.Reason = wire.Reason
	receipt.TxHash = wire.TxHash
	receipt.BlockNumber = uint64(wire.BlockNumber)
	receipt.BlockHash = wire.BlockHash
	return nil
}
