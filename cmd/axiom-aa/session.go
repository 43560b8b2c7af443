package main

import (
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/axiomesh/axiom-aa-sdk/cmd/axiom-aa/common"
	"github.com/axiomesh/axiom-aa-sdk/pkg/crypto"
	"github.com/axiomesh/axiom-aa-sdk/pkg/repo"
	"github.com/axiomesh/axiom-aa-sdk/saccount"
	"github.com/axiomesh/axiom-aa-sdk/saccount/executor"
	"github.com/axiomesh/axiom-aa-sdk/saccount/session"
)

var sessionArgs = struct {
	Account       string
	Signer        string
	Label         string
	Target        string
	Selector      string
	ValueLimit    string
	SpendingLimit string
	ValidAfter    uint64
	ValidUntil    uint64
	TTL           time.Duration
	Salt          uint64
	Register      bool
}{}

func sessionScopeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "signer",
			Usage:       "Session signer address",
			Destination: &sessionArgs.Signer,
			Required:    false,
		},
		&cli.StringFlag{
			Name:        "label",
			Usage:       "Session keystore label, used when signer is not set",
			Destination: &sessionArgs.Label,
			Required:    false,
		},
		&cli.StringFlag{
			Name:        "account",
			Usage:       "Smart account address, defaults to the address predicted from the owner keystore and salt",
			Destination: &sessionArgs.Account,
			Required:    false,
		},
		&cli.Uint64Flag{
			Name:        "salt",
			Usage:       "Account salt used when account is not set",
			Destination: &sessionArgs.Salt,
			Required:    false,
		},
	}
}

var sessionCMD = &cli.Command{
	Name:  "session",
	Usage: "The session key manage commands",
	Subcommands: []*cli.Command{
		{
			Name:   "grant",
			Usage:  "Grant a scoped session key for the smart account",
			Action: grantSession,
			Flags: append(sessionScopeFlags(), []cli.Flag{
				common.KeystorePasswordFlag(),
				&cli.StringFlag{
					Name:        "target",
					Usage:       "Call target the session key is allowed to reach, empty means any target",
					Destination: &sessionArgs.Target,
					Required:    false,
				},
				&cli.StringFlag{
					Name:        "selector",
					Usage:       "4 bytes function selector(hex string) the session key is allowed to call, empty means any function",
					Destination: &sessionArgs.Selector,
					Required:    false,
				},
				&cli.StringFlag{
					Name:        "spending-limit",
					Usage:       "Cumulative native value and gas the session key may spend",
					Destination: &sessionArgs.SpendingLimit,
					Required:    true,
				},
				&cli.StringFlag{
					Name:        "value-limit",
					Usage:       "Native value cap of a single call, defaults to the spending limit",
					Destination: &sessionArgs.ValueLimit,
					Required:    false,
				},
				&cli.Uint64Flag{
					Name:        "valid-after",
					Usage:       "Unix timestamp the grant becomes valid at, used together with valid-until",
					Destination: &sessionArgs.ValidAfter,
					Required:    false,
				},
				&cli.Uint64Flag{
					Name:        "valid-until",
					Usage:       "Unix timestamp the grant expires at, empty means now plus ttl",
					Destination: &sessionArgs.ValidUntil,
					Required:    false,
				},
				&cli.DurationFlag{
					Name:        "ttl",
					Usage:       "Grant lifetime when valid-until is not set",
					Value:       24 * time.Hour,
					Destination: &sessionArgs.TTL,
					Required:    false,
				},
				&cli.BoolFlag{
					Name:        "register",
					Usage:       "Also register the session key on chain through a user operation",
					Destination: &sessionArgs.Register,
					Required:    false,
				},
			}...),
		},
		{
			Name:   "revoke",
			Usage:  "Revoke a granted session key",
			Action: revokeSession,
			Flags:  sessionScopeFlags(),
		},
		{
			Name:   "status",
			Usage:  "Show the state and remaining allowance of a session key",
			Action: sessionStatus,
			Flags:  sessionScopeFlags(),
		},
	},
}

func grantSession(ctx *cli.Context) error {
	r, err := common.PrepareRepo(ctx)
	if err != nil {
		return err
	}
	client, err := saccount.NewClient(r)
	if err != nil {
		return err
	}
	defer client.Close()

	signerAddr, err := resolveSessionSigner(r.RepoRoot)
	if err != nil {
		return err
	}
	account, err := resolveAccount(client, r.RepoRoot)
	if err != nil {
		return err
	}

	password, err := common.GetPassword(ctx, false)
	if err != nil {
		return err
	}
	ownerKey, err := repo.LoadOwnerKey(r.RepoRoot, password)
	if err != nil {
		return err
	}

	target := session.WildcardTarget
	if sessionArgs.Target != "" {
		target = ethcommon.HexToAddress(sessionArgs.Target)
	}
	selector := session.WildcardSelector
	if sessionArgs.Selector != "" {
		selector, err = hexutil.Decode(sessionArgs.Selector)
		if err != nil {
			return errors.Wrap(err, "failed to parse selector")
		}
	}
	spendingLimit, ok := new(big.Int).SetString(sessionArgs.SpendingLimit, 10)
	if !ok {
		return errors.Errorf("invalid spending limit %q", sessionArgs.SpendingLimit)
	}
	valueLimit := spendingLimit
	if sessionArgs.ValueLimit != "" {
		valueLimit, ok = new(big.Int).SetString(sessionArgs.ValueLimit, 10)
		if !ok {
			return errors.Errorf("invalid value limit %q", sessionArgs.ValueLimit)
		}
	}

	validAfter, validUntil := sessionArgs.ValidAfter, sessionArgs.ValidUntil
	if validUntil == 0 {
		now := time.Now()
		validAfter = uint64(now.Add(-time.Minute).Unix())
		validUntil = uint64(now.Add(sessionArgs.TTL).Unix())
	}

	perm := &session.Permission{
		Account:       account,
		Signer:        signerAddr,
		ValidAfter:    validAfter,
		ValidUntil:    validUntil,
		Target:        target,
		Selector:      selector,
		ValueLimit:    valueLimit,
		SpendingLimit: spendingLimit,
	}

	result, err := client.GrantSessionKey(ctx.Context, perm, ownerKey, sessionArgs.Register, executor.Options{DeployIfNeeded: true})
	if err != nil {
		return err
	}
	fmt.Println("session key granted")
	if result != nil {
		if err := printOperationResult(result); err != nil {
			return err
		}
	}
	return common.Pretty(perm)
}

func revokeSession(ctx *cli.Context) error {
	r, err := common.PrepareRepo(ctx)
	if err != nil {
		return err
	}
	client, err := saccount.NewClient(r)
	if err != nil {
		return err
	}
	defer client.Close()

	signerAddr, err := resolveSessionSigner(r.RepoRoot)
	if err != nil {
		return err
	}
	account, err := resolveAccount(client, r.RepoRoot)
	if err != nil {
		return err
	}

	if err := client.RevokeSessionKey(account, signerAddr); err != nil {
		return err
	}
	fmt.Println("session key revoked")
	return nil
}

func sessionStatus(ctx *cli.Context) error {
	r, err := common.PrepareRepo(ctx)
	if err != nil {
		return err
	}
	client, err := saccount.NewClient(r)
	if err != nil {
		return err
	}
	defer client.Close()

	signerAddr, err := resolveSessionSigner(r.RepoRoot)
	if err != nil {
		return err
	}
	account, err := resolveAccount(client, r.RepoRoot)
	if err != nil {
		return err
	}

	status, perm, err := client.PermissionStatus(account, signerAddr)
	if err != nil {
		return err
	}
	fmt.Printf("status: %s\n", status)
	if perm != nil {
		fmt.Printf("remaining allowance: %s\n", perm.Remaining())
		return common.Pretty(perm)
	}
	return nil
}

func resolveSessionSigner(repoRoot string) (ethcommon.Address, error) {
	if sessionArgs.Signer != "" {
		return ethcommon.HexToAddress(sessionArgs.Signer), nil
	}
	if sessionArgs.Label == "" {
		return ethcommon.Address{}, errors.New("one of signer or label is required")
	}
	keyPath := filepath.Join(repo.GetSessionKeysPath(repoRoot), sessionArgs.Label+".json")
	info, err := crypto.ReadKeystoreInfo(keyPath)
	if err != nil {
		return ethcommon.Address{}, err
	}
	return ethcommon.HexToAddress(info.Extra["address"]), nil
}

func resolveAccount(client *saccount.Client, repoRoot string) (ethcommon.Address, error) {
	if sessionArgs.Account != "" {
		return ethcommon.HexToAddress(sessionArgs.Account), nil
	}
	info, err := crypto.ReadKeystoreInfo(repo.GetKeystorePath(repoRoot))
	if err != nil {
		return ethcommon.Address{}, errors.Wrap(err, "account flag not set and owner keystore unreadable")
	}
	owner := ethcommon.HexToAddress(info.Extra["address"])
	return client.PredictAddress(owner, new(big.Int).SetUint64(sessionArgs.Salt)), nil
}
