package saccount

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-sdk/internal/chainrpc"
	"github.com/axiomesh/axiom-aa-sdk/pkg/kv"
	"github.com/axiomesh/axiom-aa-sdk/pkg/loggers"
	"github.com/axiomesh/axiom-aa-sdk/pkg/repo"
	"github.com/axiomesh/axiom-aa-sdk/saccount/executor"
	"github.com/axiomesh/axiom-aa-sdk/saccount/gas"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
	"github.com/axiomesh/axiom-aa-sdk/saccount/relay"
	"github.com/axiomesh/axiom-aa-sdk/saccount/session"
	"github.com/axiomesh/axiom-aa-sdk/saccount/signer"
	"github.com/axiomesh/axiom-aa-sdk/saccount/sponsor"
)

// Client is the assembled SDK: it wires the chain backend, builder,
// estimator, sponsor, session manager, relay and executor from one repo
// config and exposes the account-abstraction flows on top of them.
type Client struct {
	repo      *repo.Repo
	chainID   *big.Int
	backend   *chainrpc.Client
	resolver  *Resolver
	builder   *Builder
	estimator *gas.Estimator
	sponsor   sponsor.Sponsor
	sessions  *session.Manager
	relay     *relay.Client
	executor  *executor.Executor
	logger    logrus.FieldLogger
}

// NewClient connects every component from the repo config. The session
// store opens under the repo storage dir, so one repo root equals one
// session bookkeeping domain.
func NewClient(rep *repo.Repo) (*Client, error) {
	if err := loggers.Initialize(rep); err != nil {
		return nil, errors.Wrap(err, "initialize loggers")
	}
	cfg := rep.Config
	entryPoint := ethcommon.HexToAddress(cfg.Chain.EntryPointAddr)
	factory := ethcommon.HexToAddress(cfg.Chain.AccountFactoryAddr)
	chainID := new(big.Int).SetUint64(cfg.Chain.ChainID)

	backend, err := chainrpc.Dial(cfg.Chain.RPCAddr, entryPoint, cfg.Chain.RequestTimeout.ToDuration())
	if err != nil {
		return nil, err
	}

	storage, err := kv.Open(cfg.Storage.KvType, repo.GetStoragePath(rep.RepoRoot, repo.SessionStoreName), cfg.Storage.Sync)
	if err != nil {
		backend.Close()
		return nil, errors.Wrap(err, "open session store")
	}
	sessions := session.NewManager(session.NewStore(storage), cfg.Session.AllowWildcard)

	sponsorClient, err := newSponsor(cfg, chainID)
	if err != nil {
		backend.Close()
		_ = sessions.Close()
		return nil, err
	}

	relayClient, err := relay.Dial(cfg.Bundler.RPCAddr, entryPoint, relay.Config{
		SubmitRetryNumber:   nonNegative(cfg.Bundler.SubmitRetryNumber),
		SubmitRetryBaseTime: cfg.Bundler.SubmitRetryBaseTime.ToDuration(),
		PollInterval:        cfg.Bundler.PollInterval.ToDuration(),
		PollTimeout:         cfg.Bundler.PollTimeout.ToDuration(),
		ReceiptCacheSize:    cfg.Bundler.ReceiptCacheSize,
	})
	if err != nil {
		backend.Close()
		_ = sessions.Close()
		closeSponsor(sponsorClient)
		return nil, err
	}

	resolver := NewResolver(factory, backend)
	builder := NewBuilder(entryPoint, resolver, backend)
	estimator := gas.NewEstimator(backend, cfg.Gas.EstimateMargin, nonNegative(cfg.Gas.RetryNumber), cfg.Gas.RetryBaseTime.ToDuration())

	return &Client{
		repo:      rep,
		chainID:   chainID,
		backend:   backend,
		resolver:  resolver,
		builder:   builder,
		estimator: estimator,
		sponsor:   sponsorClient,
		sessions:  sessions,
		relay:     relayClient,
		executor:  executor.New(chainID, builder, estimator, sponsorClient, sessions, relayClient),
		logger:    loggers.Logger(loggers.App),
	}, nil
}

func newSponsor(cfg *repo.Config, chainID *big.Int) (sponsor.Sponsor, error) {
	if !cfg.Sponsor.Enable {
		return nil, nil
	}
	switch cfg.Sponsor.Mode {
	case repo.SponsorModeRemote:
		return sponsor.DialRemote(cfg.Sponsor.RPCAddr, cfg.Sponsor.RequestTimeout.ToDuration())
	case repo.SponsorModeLocal:
		key, err := repo.ReadKey(cfg.Sponsor.LocalKeyPath)
		if err != nil {
			return nil, errors.Wrapf(err, "load local sponsor key from %s", cfg.Sponsor.LocalKeyPath)
		}
		return sponsor.NewLocalSponsor(ethcommon.HexToAddress(cfg.Sponsor.PaymasterAddr), chainID, key, cfg.Sponsor.ValidityWindow.ToDuration())
	default:
		return nil, errors.Errorf("unknown sponsor mode %q", cfg.Sponsor.Mode)
	}
}

func closeSponsor(sponsorClient sponsor.Sponsor) {
	if closer, ok := sponsorClient.(interface{ Close() }); ok {
		closer.Close()
	}
}

func nonNegative(n int) uint {
	if n < 0 {
		return 0
	}
	return uint(n)
}

// ChainID returns the chain the client signs for.
func (client *Client) ChainID() *big.Int {
	return new(big.Int).Set(client.chainID)
}

func (client *Client) EntryPoint() ethcommon.Address {
	return client.builder.EntryPoint()
}

// Sessions exposes the session permission manager for direct bookkeeping.
func (client *Client) Sessions() *session.Manager {
	return client.sessions
}

// PredictAddress derives the counterfactual account address for an owner
// and salt without touching the chain.
func (client *Client) PredictAddress(owner ethcommon.Address, salt *big.Int) ethcommon.Address {
	return client.resolver.ResolveAddress(owner, salt)
}

// AccountState reports whether the account is deployed, counterfactual or
// unknown.
func (client *Client) AccountState(ctx context.Context, account ethcommon.Address) (DeploymentState, error) {
	return client.resolver.DeploymentState(ctx, account)
}

// Execute drives the calls through build, estimate, sponsor, sign, submit
// and receipt polling, blocking until a terminal phase.
func (client *Client) Execute(ctx context.Context, identity interfaces.AccountIdentity, calls []interfaces.Call, opSigner signer.Signer, opts executor.Options) (*executor.Result, error) {
	return client.executor.Execute(ctx, identity, calls, opSigner, opts)
}

// Transfer moves native value from the account, the most common single-call
// flow.
func (client *Client) Transfer(ctx context.Context, identity interfaces.AccountIdentity, opSigner signer.Signer, to ethcommon.Address, value *big.Int, opts executor.Options) (*executor.Result, error) {
	return client.Execute(ctx, identity, []interfaces.Call{NewTransferCall(to, value)}, opSigner, opts)
}

// Receipt re-polls the bundler for a handle from an earlier execution, for
// flows that ended in Timeout. timeout <= 0 uses the configured default.
func (client *Client) Receipt(ctx context.Context, handle *relay.OperationHandle, timeout time.Duration) (*interfaces.UserOpReceipt, error) {
	return client.relay.PollReceipt(ctx, handle, timeout)
}

// GrantSessionKey authorizes a session key for the permission's account.
// The owner key signs the grant hash locally. With register set, the
// account's on-chain session window is also written through a setSession
// operation, so the settlement layer enforces the same bounds. The returned
// result is nil when no on-chain registration was requested.
func (client *Client) GrantSessionKey(ctx context.Context, perm *session.Permission, ownerKey *ecdsa.PrivateKey, register bool, opts executor.Options) (*executor.Result, error) {
	if ownerKey == nil {
		return nil, errors.New("owner key is nil")
	}
	grantSig, err := interfaces.SignHash(session.GrantHash(perm), ownerKey)
	if err != nil {
		return nil, err
	}
	owner := ethcrypto.PubkeyToAddress(ownerKey.PublicKey)
	if err := client.sessions.Grant(perm, owner, grantSig); err != nil {
		return nil, err
	}
	if !register {
		return nil, nil
	}

	ownerSigner, err := signer.NewOwnerSigner(ownerKey)
	if err != nil {
		return nil, err
	}
	call, err := NewSetSessionCall(perm.Account, perm.Signer, perm.SpendingLimit, perm.ValidAfter, perm.ValidUntil)
	if err != nil {
		return nil, err
	}
	identity := interfaces.AccountIdentity{Address: perm.Account, Owner: owner}
	return client.executor.Execute(ctx, identity, []interfaces.Call{call}, ownerSigner, opts)
}

// RevokeSessionKey revokes the permission locally. Revocation is
// authoritative on the client side: signing requests with the key are
// refused from this point even if the chain still has it registered.
func (client *Client) RevokeSessionKey(account ethcommon.Address, sessionSigner ethcommon.Address) error {
	return client.sessions.Revoke(account, sessionSigner)
}

// PermissionStatus reports the current state and bookkeeping of a session
// permission.
func (client *Client) PermissionStatus(account ethcommon.Address, sessionSigner ethcommon.Address) (session.Status, *session.Permission, error) {
	return client.sessions.Status(account, sessionSigner)
}

// RegisterPasskey executes a setPasskey operation binding a P-256 passkey
// public key to the account.
func (client *Client) RegisterPasskey(ctx context.Context, identity interfaces.AccountIdentity, ownerKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey, opts executor.Options) (*executor.Result, error) {
	identity = client.builder.Identity(identity)
	call, err := NewPasskeyRegistrationCall(identity.Address, publicKey)
	if err != nil {
		return nil, err
	}
	ownerSigner, err := signer.NewOwnerSigner(ownerKey)
	if err != nil {
		return nil, err
	}
	return client.executor.Execute(ctx, identity, []interfaces.Call{call}, ownerSigner, opts)
}

// Close shuts the pipeline down. In-flight executions finish first.
func (client *Client) Close() {
	client.executor.Close()
	client.relay.Close()
	closeSponsor(client.sponsor)
	client.backend.Close()
	if err := client.sessions.Close(); err != nil {
		client.logger.WithFields(logrus.Fields{"err": err}).Warn("close session store failed")
	}
}
