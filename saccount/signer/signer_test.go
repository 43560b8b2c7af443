package signer

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomesh/axiom-aa-sdk/pkg/kv"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
	"github.com/axiomesh/axiom-aa-sdk/saccount/session"
)

var (
	testEntryPoint = ethcommon.HexToAddress("0x0000000000000000000000000000000000001008")
	testTarget     = ethcommon.HexToAddress("0xEd17543171C1459714cdC6519b58fFcC29A3C3c9")
	testChainID    = big.NewInt(1356)

	transferSelector = ethcrypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
)

func signerTestOp(sender ethcommon.Address) (*interfaces.UserOperation, []interfaces.Call) {
	data := append([]byte{}, transferSelector...)
	data = append(data, ethcommon.LeftPadBytes(testTarget.Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(big.NewInt(10).Bytes(), 32)...)
	calls := []interfaces.Call{{To: testTarget, Value: big.NewInt(10), Data: data}}

	return &interfaces.UserOperation{
		Sender:               sender,
		Nonce:                big.NewInt(1),
		InitCode:             []byte{},
		CallData:             data,
		CallGasLimit:         big.NewInt(33100),
		VerificationGasLimit: big.NewInt(90000),
		PreVerificationGas:   big.NewInt(21000),
		MaxFeePerGas:         big.NewInt(2000000000),
		MaxPriorityFeePerGas: big.NewInt(1000000000),
		PaymasterAndData:     []byte{},
		Signature:            []byte{},
	}, calls
}

func TestOwnerSignerSignsAndRecovers(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.Nil(t, err)
	owner, err := NewOwnerSigner(key)
	require.Nil(t, err)
	assert.Equal(t, KindOwner, owner.Info().Kind)

	userOp, calls := signerTestOp(testTarget)
	signed, err := owner.SignOperation(context.Background(), userOp, testEntryPoint, testChainID, calls)
	require.Nil(t, err)

	// the input operation stays unsigned
	assert.Empty(t, userOp.Signature)
	require.Equal(t, 65, len(signed.Op.Signature))
	assert.True(t, signed.Op.Signature[64] == 27 || signed.Op.Signature[64] == 28)
	assert.Equal(t, interfaces.GetUserOpHash(userOp, testEntryPoint, testChainID), signed.Hash)

	recovered, err := interfaces.RecoverAddressFromSignature(signed.Hash, signed.Op.Signature)
	require.Nil(t, err)
	assert.Equal(t, owner.Info().Address, recovered)

	require.Nil(t, VerifySignedOperation(signed, testEntryPoint, testChainID))
}

func TestVerifySignedOperationDetectsMutation(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.Nil(t, err)
	owner, err := NewOwnerSigner(key)
	require.Nil(t, err)

	userOp, calls := signerTestOp(testTarget)
	signed, err := owner.SignOperation(context.Background(), userOp, testEntryPoint, testChainID, calls)
	require.Nil(t, err)

	// bump a fee after signing
	signed.Op.MaxFeePerGas = big.NewInt(3000000000)
	err = VerifySignedOperation(signed, testEntryPoint, testChainID)
	assert.True(t, errors.Is(err, ErrStaleSignature))

	// tamper with the signature itself
	signed, err = owner.SignOperation(context.Background(), userOp, testEntryPoint, testChainID, calls)
	require.Nil(t, err)
	signed.Op.Signature[10] ^= 0xff
	err = VerifySignedOperation(signed, testEntryPoint, testChainID)
	assert.True(t, errors.Is(err, ErrStaleSignature))
}

func newSessionFixture(t *testing.T) (*SessionSigner, *session.Manager, ethcommon.Address, []interfaces.Call, *interfaces.UserOperation) {
	t.Helper()

	ownerKey, err := ethcrypto.GenerateKey()
	require.Nil(t, err)
	ownerAddr := ethcrypto.PubkeyToAddress(ownerKey.PublicKey)
	sessionKey, err := ethcrypto.GenerateKey()
	require.Nil(t, err)
	sessionAddr := ethcrypto.PubkeyToAddress(sessionKey.PublicKey)
	account := ethcommon.HexToAddress("0xc7F999b83Af6DF9e67d0a37Ee7e900bF38b3D013")

	manager := session.NewManager(session.NewStore(kv.NewMemory()), false)
	now := uint64(time.Now().Unix())
	perm := &session.Permission{
		Account:       account,
		Signer:        sessionAddr,
		ValidAfter:    now - 60,
		ValidUntil:    now + 3600,
		Target:        testTarget,
		Selector:      hexutil.Bytes(transferSelector),
		ValueLimit:    big.NewInt(1000),
		SpendingLimit: big.NewInt(100),
	}
	grantSig, err := interfaces.SignHash(session.GrantHash(perm), ownerKey)
	require.Nil(t, err)
	require.Nil(t, manager.Grant(perm, ownerAddr, grantSig))

	sessionSigner, err := NewSessionSigner(sessionKey, account, manager)
	require.Nil(t, err)

	userOp, calls := signerTestOp(account)
	return sessionSigner, manager, account, calls, userOp
}

func TestSessionSignerHappyPath(t *testing.T) {
	sessionSigner, _, _, calls, userOp := newSessionFixture(t)

	signed, err := sessionSigner.SignOperation(context.Background(), userOp, testEntryPoint, testChainID, calls)
	require.Nil(t, err)
	assert.Equal(t, KindSession, signed.Signer.Kind)

	recovered, err := interfaces.RecoverAddressFromSignature(signed.Hash, signed.Op.Signature)
	require.Nil(t, err)
	assert.Equal(t, sessionSigner.Info().Address, recovered)
}

func TestSessionSignerChecksPermissionAtSigning(t *testing.T) {
	sessionSigner, manager, account, calls, userOp := newSessionFixture(t)

	// revoked between build and sign
	require.Nil(t, manager.Revoke(account, sessionSigner.Info().Address))
	_, err := sessionSigner.SignOperation(context.Background(), userOp, testEntryPoint, testChainID, calls)
	assert.Equal(t, session.DeniedRevoked, session.DeniedReason(err))
}

func TestSessionSignerRejectsScopeViolation(t *testing.T) {
	sessionSigner, _, _, _, userOp := newSessionFixture(t)

	badCalls := []interfaces.Call{{To: testEntryPoint, Value: big.NewInt(10), Data: transferSelector}}
	_, err := sessionSigner.SignOperation(context.Background(), userOp, testEntryPoint, testChainID, badCalls)
	assert.Equal(t, session.DeniedTargetMismatch, session.DeniedReason(err))
}

func TestSessionSignerAccountBinding(t *testing.T) {
	sessionSigner, _, _, calls, _ := newSessionFixture(t)

	foreignOp, _ := signerTestOp(testTarget)
	_, err := sessionSigner.SignOperation(context.Background(), foreignOp, testEntryPoint, testChainID, calls)
	assert.NotNil(t, err)
}
