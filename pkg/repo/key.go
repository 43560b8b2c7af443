package repo

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/axiomesh/axiom-aa-sdk/pkg/crypto"
)

// GenerateKey use secp256k1
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ethcrypto.GenerateKey()
}

func KeyString(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(ethcrypto.FromECDSA(key))
}

func WriteKey(keyPath string, key *ecdsa.PrivateKey) error {
	return os.WriteFile(keyPath, []byte(KeyString(key)), 0600)
}

func ParseKey(keyBytes []byte) (*ecdsa.PrivateKey, error) {
	return ethcrypto.HexToECDSA(string(keyBytes))
}

func ReadKey(keyPath string) (*ecdsa.PrivateKey, error) {
	keyFile, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	return ParseKey(keyFile)
}

// GenerateOwnerKeystore creates (or imports) the owner key and stores it
// encrypted in the repo root. Returns the written keystore.
func GenerateOwnerKeystore(repoRoot string, password string, privateKey *ecdsa.PrivateKey) (*crypto.Secp256k1Keystore, error) {
	var err error
	if privateKey == nil {
		privateKey, err = ethcrypto.GenerateKey()
		if err != nil {
			return nil, err
		}
	}
	if password == DefaultKeystorePassword {
		fmt.Println("Warning: Using default keystore password [", DefaultKeystorePassword, "], please change it")
	}

	priKey := &crypto.Secp256k1PrivateKey{PrivateKey: privateKey}
	ks := &crypto.Secp256k1Keystore{
		Path:        GetKeystorePath(repoRoot),
		KeyType:     crypto.KeyTypeSecp256k1,
		Description: "smart account owner key",
		PrivateKey:  priKey,
		PublicKey:   priKey.PublicKey(),
		Password:    password,
		Extra: map[string]string{
			"address": priKey.Address().String(),
		},
	}
	if err := ks.Write(); err != nil {
		return nil, err
	}
	return ks, nil
}

// LoadOwnerKey reads and decrypts the owner key from the repo root.
func LoadOwnerKey(repoRoot string, password string) (*ecdsa.PrivateKey, error) {
	keyPath := GetKeystorePath(repoRoot)
	if !FileExist(keyPath) {
		return nil, errors.Errorf("owner keystore not found at %s, generate it first", keyPath)
	}
	ks, err := crypto.ReadKeystore[*crypto.Secp256k1PrivateKey, *crypto.Secp256k1PublicKey](keyPath)
	if err != nil {
		return nil, err
	}
	if err := ks.DecryptPrivateKey(password); err != nil {
		return nil, err
	}
	return ks.PrivateKey.PrivateKey, nil
}

// GenerateSessionKeystore creates a fresh session key stored encrypted under
// the session-keys dir, named by the given label.
func GenerateSessionKeystore(repoRoot string, label string, password string) (*crypto.Secp256k1Keystore, error) {
	dir := GetSessionKeysPath(repoRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create session keys dir %s", dir)
	}

	priKey, err := crypto.GenerateSecp256k1PrivateKey()
	if err != nil {
		return nil, err
	}
	ks := &crypto.Secp256k1Keystore{
		Path:        filepath.Join(dir, label+".json"),
		KeyType:     crypto.KeyTypeSecp256k1,
		Description: "delegated session key",
		PrivateKey:  priKey,
		PublicKey:   priKey.PublicKey(),
		Password:    password,
		Extra: map[string]string{
			"address": priKey.Address().String(),
			"label":   label,
		},
	}
	if err := ks.Write(); err != nil {
		return nil, err
	}
	return ks, nil
}

// LoadSessionKey reads and decrypts a session key by label.
func LoadSessionKey(repoRoot string, label string, password string) (*ecdsa.PrivateKey, error) {
	keyPath := filepath.Join(GetSessionKeysPath(repoRoot), label+".json")
	if !FileExist(keyPath) {
		return nil, errors.Errorf("session keystore not found at %s", keyPath)
	}
	ks, err := crypto.ReadKeystore[*crypto.Secp256k1PrivateKey, *crypto.Secp256k1PublicKey](keyPath)
	if err != nil {
		return nil, err
	}
	if err := ks.DecryptPrivateKey(password); err != nil {
		return nil, err
	}
	return ks.PrivateKey.PrivateKey, nil
}
