package sponsor

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

	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

var (
	testPaymaster  = ethcommon.HexToAddress("0x000000000000000000000000000000000000100a")
	testEntryPoint = ethcommon.HexToAddress("0x0000000000000000000000000000000000001008")
	testChainID    = big.NewInt(1356)
)

func sponsorTestOp() *interfaces.UserOperation {
	return &interfaces.UserOperation{
		Sender:               ethcommon.HexToAddress("0xc7F999b83Af6DF9e67d0a37Ee7e900bF38b3D013"),
		Nonce:                big.NewInt(1),
		InitCode:             []byte{},
		CallData:             []byte{0xb6, 0x1d, 0x27, 0xf6},
		CallGasLimit:         big.NewInt(33100),
		VerificationGasLimit: big.NewInt(90000),
		PreVerificationGas:   big.NewInt(21000),
		MaxFeePerGas:         big.NewInt(2000000000),
		MaxPriorityFeePerGas: big.NewInt(1000000000),
		PaymasterAndData:     []byte{},
		Signature:            []byte{},
	}
}

func TestLocalSponsorRoundTrip(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.Nil(t, err)
	local, err := NewLocalSponsor(testPaymaster, testChainID, key, 10*time.Minute)
	require.Nil(t, err)

	userOp := sponsorTestOp()
	blob, err := local.SponsorUserOperation(context.Background(), userOp, testEntryPoint)
	require.Nil(t, err)

	paymaster, validUntil, validAfter, signature, err := ParsePaymasterAndData(blob)
	require.Nil(t, err)
	assert.Equal(t, testPaymaster, paymaster)
	assert.True(t, validAfter.Cmp(validUntil) < 0)
	require.Equal(t, 65, len(signature))

	digest := GetHash(userOp, testChainID, paymaster, validUntil, validAfter)
	recovered, err := interfaces.RecoverAddressFromSignature(digest, signature)
	require.Nil(t, err)
	assert.Equal(t, local.Owner(), recovered)
}

func TestPaymasterHashBindsOperation(t *testing.T) {
	userOp := sponsorTestOp()
	validUntil := big.NewInt(2000)
	validAfter := big.NewInt(1000)

	digest := GetHash(userOp, testChainID, testPaymaster, validUntil, validAfter)

	other := userOp.Clone()
	other.Nonce = big.NewInt(2)
	assert.NotEqual(t, digest, GetHash(other, testChainID, testPaymaster, validUntil, validAfter))

	// the paymaster digest does not cover paymasterAndData itself
	withBlob := userOp.Clone()
	withBlob.PaymasterAndData = []byte{0x01, 0x02}
	assert.Equal(t, digest, GetHash(withBlob, testChainID, testPaymaster, validUntil, validAfter))

	assert.NotEqual(t, digest, GetHash(userOp, big.NewInt(1357), testPaymaster, validUntil, validAfter))
	assert.NotEqual(t, digest, GetHash(userOp, testChainID, testEntryPoint, validUntil, validAfter))
}

func TestSponsorshipChangesUserOpHash(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.Nil(t, err)
	local, err := NewLocalSponsor(testPaymaster, testChainID, key, 10*time.Minute)
	require.Nil(t, err)

	userOp := sponsorTestOp()
	unsponsoredHash := interfaces.GetUserOpHash(userOp, testEntryPoint, testChainID)

	blob, err := local.SponsorUserOperation(context.Background(), userOp, testEntryPoint)
	require.Nil(t, err)
	sponsored := userOp.Clone()
	sponsored.PaymasterAndData = blob

	// signing must happen after sponsorship or the signature would not
	// cover the paymaster blob
	assert.NotEqual(t, unsponsoredHash, interfaces.GetUserOpHash(sponsored, testEntryPoint, testChainID))
}

func TestBuildParseRoundTrip(t *testing.T) {
	signature := make([]byte, 65)
	signature[64] = 27
	blob, err := BuildPaymasterAndData(testPaymaster, big.NewInt(2000), big.NewInt(1000), signature)
	require.Nil(t, err)
	assert.Equal(t, SIGNATURE_OFFSET+65, len(blob))

	paymaster, validUntil, validAfter, parsedSig, err := ParsePaymasterAndData(blob)
	require.Nil(t, err)
	assert.Equal(t, testPaymaster, paymaster)
	assert.Equal(t, big.NewInt(2000), validUntil)
	assert.Equal(t, big.NewInt(1000), validAfter)
	assert.Equal(t, signature, parsedSig)

	_, _, _, _, err = ParsePaymasterAndData(blob[:50])
	assert.NotNil(t, err)
}

type fakeSponsorCaller struct {
	blob hexutil.Bytes
	err  error
}

func (caller *fakeSponsorCaller) CallContext(ctx context.Context, result any, method string, args ...any) error {
	if caller.err != nil {
		return caller.err
	}
	*(result.(*sponsorResultJSON)) = sponsorResultJSON{PaymasterAndData: caller.blob}
	return nil
}

func (caller *fakeSponsorCaller) Close() {}

type fakeRPCError struct {
	msg string
}

func (err *fakeRPCError) Error() string  { return err.msg }
func (err *fakeRPCError) ErrorCode() int { return -32000 }

func TestRemoteSponsor(t *testing.T) {
	blob := make([]byte, SIGNATURE_OFFSET+65)
	remote := NewRemoteSponsor(&fakeSponsorCaller{blob: blob}, time.Second)

	got, err := remote.SponsorUserOperation(context.Background(), sponsorTestOp(), testEntryPoint)
	require.Nil(t, err)
	assert.Equal(t, blob, got)

	// the service said no
	remote = NewRemoteSponsor(&fakeSponsorCaller{err: &fakeRPCError{msg: "budget exhausted"}}, time.Second)
	_, err = remote.SponsorUserOperation(context.Background(), sponsorTestOp(), testEntryPoint)
	assert.True(t, IsRejection(err))

	// transport trouble is not a rejection
	remote = NewRemoteSponsor(&fakeSponsorCaller{err: errors.New("connection refused")}, time.Second)
	_, err = remote.SponsorUserOperation(context.Background(), sponsorTestOp(), testEntryPoint)
	assert.False(t, IsRejection(err))

	// a short blob cannot carry a signature
	remote = NewRemoteSponsor(&fakeSponsorCaller{blob: blob[:10]}, time.Second)
	_, err = remote.SponsorUserOperation(context.Background(), sponsorTestOp(), testEntryPoint)
	assert.True(t, IsRejection(err))
}
