package common

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/axiomesh/axiom-aa-sdk/pkg/loggers"
	"github.com/axiomesh/axiom-aa-sdk/pkg/repo"
)

var KeystorePasswordFlagVar string

func KeystorePasswordFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "password",
		Usage:       "Keystore password",
		EnvVars:     []string{"AXIOM_AA_KEYSTORE_PASSWORD"},
		Destination: &KeystorePasswordFlagVar,
		Aliases:     []string{"pwd"},
		Required:    false,
	}
}

func EnterPassword(needConfirm bool) (string, error) {
	var password string
	fmt.Println("enter a password for keystore(will use default if input empty):")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", errors.Wrap(err, "can not read password")
	}
	text := string(passwordBytes)
	password = strings.ReplaceAll(text, "\n", "")
	if needConfirm {
		fmt.Println("please re-enter password for keystore:")
		passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return "", errors.Wrap(err, "can not read password")
		}
		confirmedPassword := strings.ReplaceAll(string(passwordBytes), "\n", "")
		if password != confirmedPassword {
			fmt.Println("passwords did not match, please try again")
			return EnterPassword(true)
		}
	}
	return password, nil
}

// GetPassword resolves the keystore password from the flag, the prompt, or
// the default, in that order.
func GetPassword(ctx *cli.Context, needConfirm bool) (string, error) {
	password := KeystorePasswordFlagVar
	if !ctx.IsSet(KeystorePasswordFlag().Name) {
		var err error
		password, err = EnterPassword(needConfirm)
		if err != nil {
			return "", err
		}
	}
	if password == "" {
		password = repo.DefaultKeystorePassword
		fmt.Println("keystore password is empty, will use default")
	}
	return password, nil
}

func Pretty(d any) error {
	res, err := json.MarshalIndent(d, "", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(res))
	return nil
}

func GetRootPath(ctx *cli.Context) (string, error) {
	p := ctx.String("repo")

	var err error
	if p == "" {
		p, err = repo.LoadRepoRootFromEnv(p)
		if err != nil {
			return "", err
		}
	}
	return p, nil
}

func PrepareRepo(ctx *cli.Context) (*repo.Repo, error) {
	p, err := GetRootPath(ctx)
	if err != nil {
		return nil, err
	}
	if !repo.FileExist(filepath.Join(p, repo.CfgFileName)) {
		return nil, errors.New("axiom-aa repo not exist")
	}

	r, err := repo.Load(p)
	if err != nil {
		return nil, err
	}

	fmt.Printf("%s-repo: %s\n", repo.AppName, r.RepoRoot)

	if err := loggers.Initialize(r); err != nil {
		return nil, err
	}
	return r, nil
}

func WaitUserConfirm() error {
	var choice string
	if _, err := fmt.Scanln(&choice); err != nil {
		return err
	}
	if choice != "y" {
		return errors.New("interrupt by user")
	}
	return nil
}
