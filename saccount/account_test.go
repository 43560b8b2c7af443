package saccount

import (
	"context"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAddress(t *testing.T) {
	resolver := NewResolver(testFactory, newFakeBackend())

	addr := resolver.ResolveAddress(testOwner, big.NewInt(1))
	assert.Equal(t, addr, resolver.ResolveAddress(testOwner, big.NewInt(1)))
	assert.NotEqual(t, addr, resolver.ResolveAddress(testOwner, big.NewInt(2)))
	assert.NotEqual(t, addr, resolver.ResolveAddress(testRecipient, big.NewInt(1)))

	// nil salt behaves as salt zero
	assert.Equal(t, resolver.ResolveAddress(testOwner, big.NewInt(0)), resolver.ResolveAddress(testOwner, nil))

	var saltBytes [32]byte
	copy(saltBytes[:], big.NewInt(1).Bytes())
	assert.Equal(t, crypto.CreateAddress2(testOwner, saltBytes, testFactory.Bytes()), addr)
}

func TestResolveIdentity(t *testing.T) {
	resolver := NewResolver(testFactory, newFakeBackend())

	identity := resolver.ResolveIdentity(testOwner, big.NewInt(5), testRecipient)
	assert.Equal(t, resolver.ResolveAddress(testOwner, big.NewInt(5)), identity.Address)
	assert.Equal(t, testOwner, identity.Owner)
	assert.Equal(t, big.NewInt(5), identity.Salt)
	assert.Equal(t, testRecipient, identity.Guardian)
}

func TestBuildInitCode(t *testing.T) {
	resolver := NewResolver(testFactory, newFakeBackend())

	initCode := resolver.BuildInitCode(testOwner, big.NewInt(1), ethcommon.Address{})
	assert.Equal(t, 20+4+32+32, len(initCode))
	assert.Equal(t, testFactory.Bytes(), initCode[:20])
	assert.Equal(t, createAccountSig, initCode[20:24])
	assert.Equal(t, ethcommon.LeftPadBytes(testOwner.Bytes(), 32), initCode[24:56])
	assert.Equal(t, big.NewInt(1), new(big.Int).SetBytes(initCode[56:88]))

	withGuardian := resolver.BuildInitCode(testOwner, big.NewInt(1), testRecipient)
	assert.Equal(t, 20+4+32+32+32, len(withGuardian))
	assert.Equal(t, ethcommon.LeftPadBytes(testRecipient.Bytes(), 32), withGuardian[88:120])
}

func TestDeploymentState(t *testing.T) {
	backend := newFakeBackend()
	resolver := NewResolver(testFactory, backend)
	account := resolver.ResolveAddress(testOwner, big.NewInt(1))

	state, err := resolver.DeploymentState(context.Background(), account)
	require.Nil(t, err)
	assert.Equal(t, DeploymentStateCounterfactual, state)

	backend.codes[account] = []byte{0x60, 0x80}
	state, err = resolver.DeploymentState(context.Background(), account)
	require.Nil(t, err)
	assert.Equal(t, DeploymentStateDeployed, state)

	backend.codeErr = errors.New("node down")
	state, err = resolver.DeploymentState(context.Background(), account)
	assert.NotNil(t, err)
	assert.Equal(t, DeploymentStateUnknown, state)
}
