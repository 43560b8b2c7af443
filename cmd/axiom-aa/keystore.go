package main

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/axiomesh/axiom-aa-sdk/cmd/axiom-aa/common"
	"github.com/axiomesh/axiom-aa-sdk/pkg/crypto"
	"github.com/axiomesh/axiom-aa-sdk/pkg/repo"
)

var ownerKeystorePrivateKeyFlagVar string

func ownerKeystorePrivateKeyFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "owner-private-key",
		Usage:       "Owner keystore private key(hex string), if not specified, generate a new one",
		Destination: &ownerKeystorePrivateKeyFlagVar,
		EnvVars:     []string{"AXIOM_AA_OWNER_KEYSTORE_PRIVATE_KEY"},
		Required:    false,
	}
}

var sessionKeyLabelFlagVar string

func sessionKeyLabelFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "label",
		Usage:       "Session key label, used as the keystore file name",
		Destination: &sessionKeyLabelFlagVar,
		Required:    true,
	}
}

var keystoreOldPasswordFlagVar string
var keystoreNewPasswordFlagVar string

var keystoreCMD = &cli.Command{
	Name:  "keystore",
	Usage: "The keystore manage commands",
	Subcommands: []*cli.Command{
		{
			Name:   "generate-owner",
			Usage:  "Generate the encrypted owner keystore(if not exist)",
			Action: generateOwnerKeystore,
			Flags: []cli.Flag{
				common.KeystorePasswordFlag(),
				ownerKeystorePrivateKeyFlag(),
			},
		},
		{
			Name:   "generate-session",
			Usage:  "Generate an encrypted session key keystore",
			Action: generateSessionKeystore,
			Flags: []cli.Flag{
				common.KeystorePasswordFlag(),
				sessionKeyLabelFlag(),
			},
		},
		{
			Name:   "owner-address",
			Usage:  "Show owner address",
			Action: showOwnerAddress,
		},
		{
			Name:   "owner-private-key",
			Usage:  "Show owner keystore private key",
			Action: showOwnerPrivateKey,
			Flags: []cli.Flag{
				common.KeystorePasswordFlag(),
			},
		},
		{
			Name:   "session-list",
			Usage:  "List session key labels and addresses",
			Action: listSessionKeystores,
		},
		{
			Name:   "update-password",
			Usage:  "Update keystore password for all keystore(owner and session keys)",
			Action: updateKeystorePassword,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "old-password",
					Usage:       "Old keystore password",
					EnvVars:     []string{"AXIOM_AA_KEYSTORE_OLD_PASSWORD"},
					Destination: &keystoreOldPasswordFlagVar,
					Required:    false,
				},
				&cli.StringFlag{
					Name:        "new-password",
					Usage:       "New keystore password",
					EnvVars:     []string{"AXIOM_AA_KEYSTORE_NEW_PASSWORD"},
					Destination: &keystoreNewPasswordFlagVar,
					Required:    false,
				},
			},
		},
	},
}

func generateOwnerKeystore(ctx *cli.Context) error {
	p, err := common.GetRootPath(ctx)
	if err != nil {
		return err
	}
	if !repo.FileExist(filepath.Join(p, repo.CfgFileName)) {
		fmt.Println("axiom-aa repo not exist")
		return nil
	}
	if repo.FileExist(repo.GetKeystorePath(p)) {
		fmt.Printf("%s already exist\n", repo.GetKeystorePath(p))
		return nil
	}

	password, err := common.GetPassword(ctx, true)
	if err != nil {
		return err
	}

	var privateKey *ecdsa.PrivateKey
	if ownerKeystorePrivateKeyFlagVar != "" {
		privateKey, err = repo.ParseKey([]byte(ownerKeystorePrivateKeyFlagVar))
		if err != nil {
			return errors.Wrap(err, "failed to parse owner private key")
		}
	}

	ks, err := repo.GenerateOwnerKeystore(p, password, privateKey)
	if err != nil {
		return err
	}
	fmt.Printf("generate owner keystore success, path: %s\n", ks.Path)
	fmt.Printf("owner address: %s\n", ks.Extra["address"])
	return nil
}

func generateSessionKeystore(ctx *cli.Context) error {
	p, err := common.GetRootPath(ctx)
	if err != nil {
		return err
	}
	if !repo.FileExist(filepath.Join(p, repo.CfgFileName)) {
		fmt.Println("axiom-aa repo not exist")
		return nil
	}
	keyPath := filepath.Join(repo.GetSessionKeysPath(p), sessionKeyLabelFlagVar+".json")
	if repo.FileExist(keyPath) {
		fmt.Printf("%s already exist\n", keyPath)
		return nil
	}

	password, err := common.GetPassword(ctx, true)
	if err != nil {
		return err
	}

	ks, err := repo.GenerateSessionKeystore(p, sessionKeyLabelFlagVar, password)
	if err != nil {
		return err
	}
	fmt.Printf("generate session keystore success, path: %s\n", ks.Path)
	fmt.Printf("session key address: %s\n", ks.Extra["address"])
	return nil
}

func showOwnerAddress(ctx *cli.Context) error {
	p, err := common.GetRootPath(ctx)
	if err != nil {
		return err
	}
	if !repo.FileExist(repo.GetKeystorePath(p)) {
		fmt.Printf("%s not exist\n", repo.GetKeystorePath(p))
		return nil
	}
	info, err := crypto.ReadKeystoreInfo(repo.GetKeystorePath(p))
	if err != nil {
		return err
	}
	fmt.Println(info.Extra["address"])
	return nil
}

func showOwnerPrivateKey(ctx *cli.Context) error {
	p, err := common.GetRootPath(ctx)
	if err != nil {
		return err
	}
	if !repo.FileExist(repo.GetKeystorePath(p)) {
		fmt.Printf("%s not exist\n", repo.GetKeystorePath(p))
		return nil
	}
	password, err := common.GetPassword(ctx, false)
	if err != nil {
		return err
	}
	key, err := repo.LoadOwnerKey(p, password)
	if err != nil {
		return errors.Wrap(err, "failed to decrypt owner keystore private key, please check password")
	}
	fmt.Println(repo.KeyString(key))
	return nil
}

func listSessionKeystores(ctx *cli.Context) error {
	p, err := common.GetRootPath(ctx)
	if err != nil {
		return err
	}
	dir := repo.GetSessionKeysPath(p)
	if !repo.FileExist(dir) {
		fmt.Println("no session keys")
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := crypto.ReadKeystoreInfo(filepath.Join(dir, entry.Name()))
		if err != nil {
			fmt.Printf("read %s failed: %s\n", entry.Name(), err)
			continue
		}
		fmt.Printf("%s: %s\n", info.Extra["label"], info.Extra["address"])
	}
	return nil
}

func updateKeystorePassword(ctx *cli.Context) error {
	p, err := common.GetRootPath(ctx)
	if err != nil {
		return err
	}
	if !repo.FileExist(filepath.Join(p, repo.CfgFileName)) {
		fmt.Println("axiom-aa repo not exist")
		return nil
	}

	var keystorePaths []string
	if repo.FileExist(repo.GetKeystorePath(p)) {
		keystorePaths = append(keystorePaths, repo.GetKeystorePath(p))
	}
	sessionDir := repo.GetSessionKeysPath(p)
	if repo.FileExist(sessionDir) {
		entries, err := os.ReadDir(sessionDir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			keystorePaths = append(keystorePaths, filepath.Join(sessionDir, entry.Name()))
		}
	}
	if len(keystorePaths) == 0 {
		fmt.Println("no keystore to update")
		return nil
	}

	fmt.Println("input old password:")
	oldPassword := keystoreOldPasswordFlagVar
	if !ctx.IsSet("old-password") {
		oldPassword, err = common.EnterPassword(false)
		if err != nil {
			return err
		}
	}
	fmt.Println("input new password:")
	newPassword := keystoreNewPasswordFlagVar
	if !ctx.IsSet("new-password") {
		newPassword, err = common.EnterPassword(false)
		if err != nil {
			return err
		}
	}

	for _, keystorePath := range keystorePaths {
		info, err := crypto.ReadKeystoreInfo(keystorePath)
		if err != nil {
			return err
		}
		if err := info.UpdatePassword(oldPassword, newPassword); err != nil {
			return errors.Wrapf(err, "failed to update keystore password for %s", keystorePath)
		}
		if err := crypto.WriteKeystoreInfo(keystorePath, info); err != nil {
			return err
		}
	}
	fmt.Println("update keystore password success")
	return nil
}
