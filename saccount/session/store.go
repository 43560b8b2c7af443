package session

import (
	"encoding/json"
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/axiomesh/axiom-aa-sdk/pkg/kv"
)

const (
	permissionKeyPrefix = "perm-"
	settlementKeyPrefix = "settled-"
)

// Store persists permissions and their settlement marks. Settlement marks
// make spend recording idempotent per operation hash.
type Store struct {
	storage kv.BatchStorage
}

func NewStore(storage kv.BatchStorage) *Store {
	return &Store{storage: storage}
}

func (store *Store) Close() error {
	return store.storage.Close()
}

func permissionKey(account ethcommon.Address, signer ethcommon.Address) []byte {
	return []byte(fmt.Sprintf("%s%s-%s", permissionKeyPrefix, strings.ToLower(account.Hex()), strings.ToLower(signer.Hex())))
}

func settlementKey(account ethcommon.Address, signer ethcommon.Address, userOpHash ethcommon.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s-%s-%s", settlementKeyPrefix, strings.ToLower(account.Hex()), strings.ToLower(signer.Hex()), userOpHash.Hex()))
}

func (store *Store) PutPermission(perm *Permission) error {
	raw, err := json.Marshal(perm)
	if err != nil {
		return errors.Wrap(err, "marshal permission")
	}
	return store.storage.Put(permissionKey(perm.Account, perm.Signer), raw)
}

func (store *Store) GetPermission(account ethcommon.Address, signer ethcommon.Address) (*Permission, bool, error) {
	raw, exists, err := store.storage.Get(permissionKey(account, signer))
	if err != nil {
		return nil, false, errors.Wrap(err, "read permission")
	}
	if !exists {
		return nil, false, nil
	}

	perm := &Permission{}
	if err := json.Unmarshal(raw, perm); err != nil {
		return nil, false, errors.Wrap(err, "unmarshal permission")
	}
	return perm, true, nil
}

func (store *Store) ListPermissions(account ethcommon.Address) ([]*Permission, error) {
	prefix := []byte(permissionKeyPrefix + strings.ToLower(account.Hex()) + "-")

	var perms []*Permission
	err := store.storage.Iterate(prefix, func(key []byte, value []byte) error {
		perm := &Permission{}
		if err := json.Unmarshal(value, perm); err != nil {
			return errors.Wrapf(err, "unmarshal permission at %s", key)
		}
		perms = append(perms, perm)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (store *Store) HasSettlement(account ethcommon.Address, signer ethcommon.Address, userOpHash ethcommon.Hash) (bool, error) {
	_, exists, err := store.storage.Get(settlementKey(account, signer, userOpHash))
	if err != nil {
		return false, errors.Wrap(err, "read settlement mark")
	}
	return exists, nil
}

// RecordSettlement writes the updated permission and the settlement mark in
// one batch so a crash cannot double count the spend.
func (store *Store) RecordSettlement(perm *Permission, userOpHash ethcommon.Hash) error {
	raw, err := json.Marshal(perm)
	if err != nil {
		return errors.Wrap(err, "marshal permission")
	}

	batch := store.storage.Batch()
	batch.Put(permissionKey(perm.Account, perm.Signer), raw)
	batch.Put(settlementKey(perm.Account, perm.Signer, userOpHash), []byte{0x01})
	return batch.Write()
}
