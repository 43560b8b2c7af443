package main

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/axiomesh/axiom-aa-sdk/cmd/axiom-aa/common"
	"github.com/axiomesh/axiom-aa-sdk/internal/chainrpc"
	"github.com/axiomesh/axiom-aa-sdk/pkg/crypto"
	"github.com/axiomesh/axiom-aa-sdk/pkg/repo"
	"github.com/axiomesh/axiom-aa-sdk/saccount"
)

var accountArgs = struct {
	Owner string
	Salt  uint64
	Addr  string
}{}

var accountCMD = &cli.Command{
	Name:  "account",
	Usage: "The smart account query commands",
	Subcommands: []*cli.Command{
		{
			Name:   "predict",
			Usage:  "Predict the smart account address for an owner and salt",
			Action: predictAccount,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "owner",
					Usage:       "Owner address, defaults to the owner keystore address",
					Destination: &accountArgs.Owner,
					Required:    false,
				},
				&cli.Uint64Flag{
					Name:        "salt",
					Usage:       "Account salt",
					Destination: &accountArgs.Salt,
					Required:    false,
				},
			},
		},
		{
			Name:   "state",
			Usage:  "Show whether the smart account is deployed",
			Action: accountState,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "addr",
					Usage:       "Smart account address",
					Destination: &accountArgs.Addr,
					Required:    true,
				},
			},
		},
	},
}

func predictAccount(ctx *cli.Context) error {
	r, err := common.PrepareRepo(ctx)
	if err != nil {
		return err
	}

	owner := accountArgs.Owner
	if owner == "" {
		info, err := crypto.ReadKeystoreInfo(repo.GetKeystorePath(r.RepoRoot))
		if err != nil {
			return errors.Wrap(err, "owner flag not set and owner keystore unreadable")
		}
		owner = info.Extra["address"]
	}

	resolver := saccount.NewResolver(ethcommon.HexToAddress(r.Config.Chain.AccountFactoryAddr), nil)
	addr := resolver.ResolveAddress(ethcommon.HexToAddress(owner), new(big.Int).SetUint64(accountArgs.Salt))
	fmt.Printf("smart account address: %s\n", addr)
	return nil
}

func accountState(ctx *cli.Context) error {
	r, err := common.PrepareRepo(ctx)
	if err != nil {
		return err
	}

	backend, err := chainrpc.Dial(r.Config.Chain.RPCAddr, ethcommon.HexToAddress(r.Config.Chain.EntryPointAddr), r.Config.Chain.RequestTimeout.ToDuration())
	if err != nil {
		return err
	}
	defer backend.Close()

	resolver := saccount.NewResolver(ethcommon.HexToAddress(r.Config.Chain.AccountFactoryAddr), backend)
	state, err := resolver.DeploymentState(ctx.Context, ethcommon.HexToAddress(accountArgs.Addr))
	if err != nil {
		return err
	}
	fmt.Printf("account %s state: %s\n", accountArgs.Addr, state)
	return nil
}
