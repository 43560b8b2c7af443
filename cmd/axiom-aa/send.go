package main

import (
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/axiomesh/axiom-aa-sdk/cmd/axiom-aa/common"
	"github.com/axiomesh/axiom-aa-sdk/pkg/crypto"
	"github.com/axiomesh/axiom-aa-sdk/pkg/repo"
	"github.com/axiomesh/axiom-aa-sdk/saccount"
	"github.com/axiomesh/axiom-aa-sdk/saccount/executor"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
	"github.com/axiomesh/axiom-aa-sdk/saccount/relay"
	"github.com/axiomesh/axiom-aa-sdk/saccount/signer"
)

var transferArgs = struct {
	To        string
	Value     string
	Account   string
	Salt      uint64
	NonceKey  uint64
	Session   string
	Deploy    bool
	NoSponsor bool
	Timeout   time.Duration
}{}

var transferCMD = &cli.Command{
	Name:   "transfer",
	Usage:  "Transfer native value from the smart account",
	Action: transfer,
	Flags: []cli.Flag{
		common.KeystorePasswordFlag(),
		&cli.StringFlag{
			Name:        "to",
			Usage:       "Recipient address",
			Destination: &transferArgs.To,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "value",
			Usage:       "Native value to move",
			Destination: &transferArgs.Value,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "account",
			Usage:       "Smart account address, defaults to the address predicted from the owner keystore and salt",
			Destination: &transferArgs.Account,
			Required:    false,
		},
		&cli.Uint64Flag{
			Name:        "salt",
			Usage:       "Account salt used when account is not set",
			Destination: &transferArgs.Salt,
			Required:    false,
		},
		&cli.Uint64Flag{
			Name:        "nonce-key",
			Usage:       "Nonce lane of the operation, operations on different lanes do not order against each other",
			Destination: &transferArgs.NonceKey,
			Required:    false,
		},
		&cli.StringFlag{
			Name:        "session",
			Usage:       "Sign with this session keystore label instead of the owner key",
			Destination: &transferArgs.Session,
			Required:    false,
		},
		&cli.BoolFlag{
			Name:        "deploy",
			Usage:       "Deploy the account first when it is still counterfactual",
			Destination: &transferArgs.Deploy,
			Required:    false,
		},
		&cli.BoolFlag{
			Name:        "no-sponsor",
			Usage:       "Self fund the operation even when a sponsor is configured",
			Destination: &transferArgs.NoSponsor,
			Required:    false,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "How long to wait for the receipt",
			Value:       time.Minute,
			Destination: &transferArgs.Timeout,
			Required:    false,
		},
	},
}

func transfer(ctx *cli.Context) error {
	r, err := common.PrepareRepo(ctx)
	if err != nil {
		return err
	}
	client, err := saccount.NewClient(r)
	if err != nil {
		return err
	}
	defer client.Close()

	value, ok := new(big.Int).SetString(transferArgs.Value, 10)
	if !ok {
		return errors.Errorf("invalid value %q", transferArgs.Value)
	}

	password, err := common.GetPassword(ctx, false)
	if err != nil {
		return err
	}
	identity, opSigner, err := resolveSender(client, r.RepoRoot, password)
	if err != nil {
		return err
	}

	opts := executor.Options{
		DeployIfNeeded:     transferArgs.Deploy,
		DisableSponsorship: transferArgs.NoSponsor,
		WaitTimeout:        transferArgs.Timeout,
	}
	if ctx.IsSet("nonce-key") {
		opts.NonceKey = new(big.Int).SetUint64(transferArgs.NonceKey)
	}

	result, err := client.Transfer(ctx.Context, identity, opSigner, ethcommon.HexToAddress(transferArgs.To), value, opts)
	if err != nil {
		return err
	}
	return printOperationResult(result)
}

func resolveSender(client *saccount.Client, repoRoot string, password string) (interfaces.AccountIdentity, signer.Signer, error) {
	salt := new(big.Int).SetUint64(transferArgs.Salt)

	if transferArgs.Session != "" {
		sessionKey, err := repo.LoadSessionKey(repoRoot, transferArgs.Session, password)
		if err != nil {
			return interfaces.AccountIdentity{}, nil, err
		}
		account := ethcommon.HexToAddress(transferArgs.Account)
		if transferArgs.Account == "" {
			info, err := crypto.ReadKeystoreInfo(repo.GetKeystorePath(repoRoot))
			if err != nil {
				return interfaces.AccountIdentity{}, nil, errors.Wrap(err, "account flag not set and owner keystore unreadable")
			}
			account = client.PredictAddress(ethcommon.HexToAddress(info.Extra["address"]), salt)
		}
		opSigner, err := signer.NewSessionSigner(sessionKey, account, client.Sessions())
		if err != nil {
			return interfaces.AccountIdentity{}, nil, err
		}
		return interfaces.AccountIdentity{Address: account}, opSigner, nil
	}

	ownerKey, err := repo.LoadOwnerKey(repoRoot, password)
	if err != nil {
		return interfaces.AccountIdentity{}, nil, err
	}
	opSigner, err := signer.NewOwnerSigner(ownerKey)
	if err != nil {
		return interfaces.AccountIdentity{}, nil, err
	}
	owner := ethcrypto.PubkeyToAddress(ownerKey.PublicKey)
	account := ethcommon.HexToAddress(transferArgs.Account)
	if transferArgs.Account == "" {
		account = client.PredictAddress(owner, salt)
	}
	return interfaces.AccountIdentity{Address: account, Owner: owner, Salt: salt}, opSigner, nil
}

func printOperationResult(result *executor.Result) error {
	fmt.Printf("phase: %s\n", result.Phase)
	if result.Handle != nil {
		fmt.Printf("userOpHash: %s\n", result.Handle.UserOpHash)
	}
	if result.Err != nil {
		fmt.Printf("note: %s\n", result.Err)
	}
	if result.Receipt != nil {
		return common.Pretty(result.Receipt)
	}
	return nil
}

var receiptArgs = struct {
	Hash    string
	Timeout time.Duration
}{}

var receiptCMD = &cli.Command{
	Name:   "receipt",
	Usage:  "Query or wait for a user operation receipt",
	Action: receipt,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "hash",
			Usage:       "User operation hash",
			Destination: &receiptArgs.Hash,
			Required:    true,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "How long to wait before giving up",
			Value:       time.Minute,
			Destination: &receiptArgs.Timeout,
			Required:    false,
		},
	},
}

func receipt(ctx *cli.Context) error {
	r, err := common.PrepareRepo(ctx)
	if err != nil {
		return err
	}
	client, err := saccount.NewClient(r)
	if err != nil {
		return err
	}
	defer client.Close()

	handle := &relay.OperationHandle{
		UserOpHash: ethcommon.HexToHash(receiptArgs.Hash),
		EntryPoint: client.EntryPoint(),
	}
	rec, err := client.Receipt(ctx.Context, handle, receiptArgs.Timeout)
	if err != nil {
		return err
	}
	return common.Pretty(rec)
}
