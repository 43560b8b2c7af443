package saccount

import (
	"context"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomesh/axiom-aa-sdk/pkg/repo"
	"github.com/axiomesh/axiom-aa-sdk/saccount/executor"
	"github.com/axiomesh/axiom-aa-sdk/saccount/session"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	rep, err := repo.Default(t.TempDir())
	require.Nil(t, err)

	client, err := NewClient(rep)
	require.Nil(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestNewClientFromRepo(t *testing.T) {
	client := newTestClient(t)

	assert.Equal(t, ethcommon.HexToAddress("0x0000000000000000000000000000000000001008"), client.EntryPoint())
	assert.Equal(t, big.NewInt(1356), client.ChainID())
}

func TestPredictAddress(t *testing.T) {
	client := newTestClient(t)
	owner := ethcommon.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")

	predicted := client.PredictAddress(owner, big.NewInt(1))
	assert.NotEqual(t, ethcommon.Address{}, predicted)
	assert.Equal(t, predicted, client.PredictAddress(owner, big.NewInt(1)))
	assert.NotEqual(t, predicted, client.PredictAddress(owner, big.NewInt(2)))
}

func TestClientSessionLifecycle(t *testing.T) {
	client := newTestClient(t)

	ownerKey, err := ethcrypto.GenerateKey()
	require.Nil(t, err)
	sessionKey, err := ethcrypto.GenerateKey()
	require.Nil(t, err)
	sessionAddr := ethcrypto.PubkeyToAddress(sessionKey.PublicKey)

	account := client.PredictAddress(ethcrypto.PubkeyToAddress(ownerKey.PublicKey), big.NewInt(0))
	now := uint64(time.Now().Unix())
	perm := &session.Permission{
		Account:       account,
		Signer:        sessionAddr,
		ValidAfter:    now - 60,
		ValidUntil:    now + 3600,
		Target:        ethcommon.HexToAddress("0xEd17543171C1459714cdC6519b58fFcC29A3C3c9"),
		Selector:      hexutil.Bytes(ethcrypto.Keccak256([]byte("transfer(address,uint256)"))[:4]),
		ValueLimit:    big.NewInt(1000),
		SpendingLimit: big.NewInt(100),
	}

	result, err := client.GrantSessionKey(context.Background(), perm, ownerKey, false, executor.Options{})
	require.Nil(t, err)
	assert.Nil(t, result)

	status, stored, err := client.PermissionStatus(account, sessionAddr)
	require.Nil(t, err)
	assert.Equal(t, session.StatusActive, status)
	assert.Equal(t, big.NewInt(0), stored.SpentAmount)

	require.Nil(t, client.RevokeSessionKey(account, sessionAddr))
	status, _, err = client.PermissionStatus(account, sessionAddr)
	require.Nil(t, err)
	assert.Equal(t, session.StatusRevoked, status)
}

func TestClientRejectsUnknownSponsorMode(t *testing.T) {
	rep, err := repo.Default(t.TempDir())
	require.Nil(t, err)
	rep.Config.Sponsor.Enable = true
	rep.Config.Sponsor.Mode = "delegated"

	_, err = NewClient(rep)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "unknown sponsor mode")
}
