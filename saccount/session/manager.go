package session

import (
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-sdk/pkg/loggers"
	"github.com/axiomesh/axiom-aa-sdk/saccount/interfaces"
)

var (
	// ErrMalformedGrant rejects a grant whose scoping fields do not form a
	// usable permission.
	ErrMalformedGrant = errors.New("malformed session grant")

	// ErrUnauthorizedGrant rejects a grant whose signature does not recover
	// to the account owner.
	ErrUnauthorizedGrant = errors.New("session grant not signed by account owner")

	// ErrPermissionNotFound is returned when no grant exists for the
	// account and signer pair.
	ErrPermissionNotFound = errors.New("session permission not found")

	// ErrRevokedDuringFlight reports that an operation settled after its
	// permission was revoked. The spend is still recorded.
	ErrRevokedDuringFlight = errors.New("session permission revoked while operation in flight")
)

// Manager owns the client-side session key registry. Revocation here is
// authoritative for the SDK: a revoked permission stops signing immediately,
// whether or not the chain still has the key registered.
type Manager struct {
	store         *Store
	allowWildcard bool
	logger        logrus.FieldLogger

	mu sync.Mutex
}

func NewManager(store *Store, allowWildcard bool) *Manager {
	return &Manager{
		store:         store,
		allowWildcard: allowWildcard,
		logger:        loggers.Logger(loggers.Session),
	}
}

func (manager *Manager) Close() error {
	return manager.store.Close()
}

// Grant verifies the owner's signature over the grant hash and persists the
// permission. Granting again for the same account and signer replaces the
// previous permission and resets its spent amount.
func (manager *Manager) Grant(perm *Permission, owner ethcommon.Address, grantSig []byte) error {
	if err := manager.checkGrant(perm); err != nil {
		return err
	}

	recovered, err := interfaces.RecoverAddressFromSignature(GrantHash(perm), grantSig)
	if err != nil {
		return errors.Wrap(ErrUnauthorizedGrant, err.Error())
	}
	if recovered != owner {
		return errors.Wrapf(ErrUnauthorizedGrant, "recovered %s, owner %s", recovered, owner)
	}

	manager.mu.Lock()
	defer manager.mu.Unlock()

	stored := *perm
	stored.SpentAmount = big.NewInt(0)
	stored.Revoked = false
	stored.GrantSignature = grantSig
	stored.GrantedAt = time.Now().Unix()
	if err := manager.store.PutPermission(&stored); err != nil {
		return err
	}

	manager.logger.WithFields(logrus.Fields{
		"account":       stored.Account.String(),
		"signer":        stored.Signer.String(),
		"validUntil":    stored.ValidUntil,
		"spendingLimit": stored.SpendingLimit.String(),
	}).Info("session permission granted")
	return nil
}

func (manager *Manager) checkGrant(perm *Permission) error {
	if perm == nil {
		return errors.Wrap(ErrMalformedGrant, "permission is nil")
	}
	if perm.Account == (ethcommon.Address{}) {
		return errors.Wrap(ErrMalformedGrant, "account is zero")
	}
	if perm.Signer == (ethcommon.Address{}) {
		return errors.Wrap(ErrMalformedGrant, "session signer is zero")
	}
	if perm.ValidAfter >= perm.ValidUntil {
		return errors.Wrap(ErrMalformedGrant, "validAfter must less than validUntil")
	}
	if len(perm.Selector) != 4 {
		return errors.Wrap(ErrMalformedGrant, "selector must be 4 bytes")
	}
	if perm.SpendingLimit == nil || perm.SpendingLimit.Sign() <= 0 {
		return errors.Wrap(ErrMalformedGrant, "spending limit is not set")
	}
	if perm.ValueLimit == nil || perm.ValueLimit.Sign() < 0 {
		return errors.Wrap(ErrMalformedGrant, "value limit is not set")
	}

	if perm.IsWildcardTarget() || perm.IsWildcardSelector() {
		if !manager.allowWildcard {
			return errors.Wrap(ErrMalformedGrant, "wildcard permissions are disabled")
		}
		manager.logger.WithFields(logrus.Fields{
			"account": perm.Account.String(),
			"signer":  perm.Signer.String(),
		}).Warn("granting wildcard session permission")
	}
	return nil
}

// ValidateUse checks whether the session signer may execute the batch right
// now. The permission is re-read from the store on every call so a
// revocation between building and signing is always observed.
func (manager *Manager) ValidateUse(account ethcommon.Address, signer ethcommon.Address, calls []interfaces.Call) (*Permission, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	perm, exists, err := manager.store.GetPermission(account, signer)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPermissionNotFound
	}

	now := uint64(time.Now().Unix())
	switch perm.StatusAt(now) {
	case StatusRevoked:
		return nil, &PermissionDeniedError{Reason: DeniedRevoked}
	case StatusNotYetValid:
		return nil, &PermissionDeniedError{Reason: DeniedNotYetValid}
	case StatusExpired:
		return nil, &PermissionDeniedError{Reason: DeniedExpired}
	}

	total := big.NewInt(0)
	for _, call := range calls {
		if denied := perm.AllowsCall(call); denied != nil {
			return nil, denied
		}
		if call.Value != nil {
			total.Add(total, call.Value)
		}
	}

	spent := perm.SpentAmount
	if spent == nil {
		spent = big.NewInt(0)
	}
	if new(big.Int).Add(spent, total).Cmp(perm.SpendingLimit) > 0 {
		return nil, &PermissionDeniedError{
			Reason: DeniedSpendingLimit,
			Detail: "spent " + spent.String() + " of " + perm.SpendingLimit.String() + ", batch moves " + total.String(),
		}
	}

	return perm, nil
}

// RecordSettlement accumulates the settled spend of one operation into the
// permission, exactly once per operation hash. Settling against a revoked
// permission still records the spend but reports ErrRevokedDuringFlight.
func (manager *Manager) RecordSettlement(account ethcommon.Address, signer ethcommon.Address, userOpHash ethcommon.Hash, actualGasCost *big.Int, totalValue *big.Int) error {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	perm, exists, err := manager.store.GetPermission(account, signer)
	if err != nil {
		return err
	}
	if !exists {
		return ErrPermissionNotFound
	}

	settled, err := manager.store.HasSettlement(account, signer, userOpHash)
	if err != nil {
		return err
	}
	if settled {
		return nil
	}

	spent := big.NewInt(0)
	if perm.SpentAmount != nil {
		spent.Set(perm.SpentAmount)
	}
	if actualGasCost != nil {
		spent.Add(spent, actualGasCost)
	}
	if totalValue != nil {
		spent.Add(spent, totalValue)
	}
	perm.SpentAmount = spent

	if err := manager.store.RecordSettlement(perm, userOpHash); err != nil {
		return err
	}

	manager.logger.WithFields(logrus.Fields{
		"account":    account.String(),
		"signer":     signer.String(),
		"userOpHash": userOpHash.String(),
		"spent":      spent.String(),
	}).Debug("session spend recorded")

	if perm.Revoked {
		return ErrRevokedDuringFlight
	}
	return nil
}

// Revoke withdraws the permission. Revoking an already revoked or missing
// permission is not an error.
func (manager *Manager) Revoke(account ethcommon.Address, signer ethcommon.Address) error {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	perm, exists, err := manager.store.GetPermission(account, signer)
	if err != nil {
		return err
	}
	if !exists || perm.Revoked {
		return nil
	}

	perm.Revoked = true
	if err := manager.store.PutPermission(perm); err != nil {
		return err
	}

	manager.logger.WithFields(logrus.Fields{
		"account": account.String(),
		"signer":  signer.String(),
	}).Info("session permission revoked")
	return nil
}

// Status reports the permission's current lifecycle state.
func (manager *Manager) Status(account ethcommon.Address, signer ethcommon.Address) (Status, *Permission, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	perm, exists, err := manager.store.GetPermission(account, signer)
	if err != nil {
		return StatusUnknown, nil, err
	}
	if !exists {
		return StatusUnknown, nil, ErrPermissionNotFound
	}
	return perm.StatusAt(uint64(time.Now().Unix())), perm, nil
}

// List returns every permission granted by the account.
func (manager *Manager) List(account ethcommon.Address) ([]*Permission, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return manager.store.ListPermissions(account)
}
