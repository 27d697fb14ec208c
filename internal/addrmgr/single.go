package addrmgr

import (
	"context"
	"fmt"

	"github.com/klingon-exchange/walletcore/internal/keys"
	"github.com/klingon-exchange/walletcore/internal/walletdb"
)

// Single is the address manager for accounts that reuse one address
// for every receive and change output. Both the receiving and change
// slots of such an account share the same *Single instance.
type Single struct {
	db                *walletdb.DB
	accountAddress    string
	accountPrivateKey *keys.PrivateKey
	publicKey         *keys.PublicKey
}

// NewSingle builds a Single manager for accountPublicKey. chain_number
// is always 0, matching the original source's SingleKey.from_dict.
func NewSingle(db *walletdb.DB, accountAddress string, accountPrivateKey *keys.PrivateKey, accountPublicKey *keys.PublicKey) (*Single, error) {
	return &Single{
		db:                db,
		accountAddress:    accountAddress,
		accountPrivateKey: accountPrivateKey,
		publicKey:         accountPublicKey,
	}, nil
}

func (m *Single) ChainNumber() int { return 0 }

func (m *Single) ToDictInstance() map[string]any { return nil }

// GetPrivateKey ignores index and always returns the account's own
// private key.
func (m *Single) GetPrivateKey(index uint32) (*keys.PrivateKey, error) {
	if m.accountPrivateKey == nil {
		return nil, fmt.Errorf("cannot get private key on a watch-only account")
	}
	return m.accountPrivateKey, nil
}

func (m *Single) GetMaxGap(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *Single) GetAddressRecords(ctx context.Context, limit int, onlyUsable bool) ([]walletdb.AddressRow, error) {
	acct := m.accountAddress
	chain := 0
	return m.db.GetAddresses(ctx, walletdb.AddressFilter{Account: &acct, Chain: &chain})
}

func (m *Single) GetAddresses(ctx context.Context, limit int, onlyUsable bool) ([]string, error) {
	records, err := m.GetAddressRecords(ctx, limit, onlyUsable)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Address
	}
	return out, nil
}

// EnsureAddressGap inserts the account's single address exactly once;
// every subsequent call is a no-op, matching the original's
// "insert once, no-op thereafter" semantics.
func (m *Single) EnsureAddressGap(ctx context.Context) ([]string, error) {
	existing, err := m.GetAddressRecords(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing address: %w", err)
	}
	if len(existing) > 0 {
		return []string{}, nil
	}

	addr, err := m.publicKey.Address()
	if err != nil {
		return nil, fmt.Errorf("failed to derive address: %w", err)
	}
	pubKeyBytes, err := m.publicKey.PubKeyBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize public key: %w", err)
	}
	if err := m.db.AddKeys(ctx, m.accountAddress, 0, []walletdb.AddressKey{
		{Position: 0, Address: addr, PubKey: pubKeyBytes},
	}); err != nil {
		return nil, fmt.Errorf("failed to save address: %w", err)
	}
	return []string{addr}, nil
}

func (m *Single) GetOrCreateUsableAddress(ctx context.Context) (string, error) {
	addresses, err := m.GetAddresses(ctx, 1, true)
	if err != nil {
		return "", err
	}
	if len(addresses) > 0 {
		return addresses[0], nil
	}
	newAddresses, err := m.EnsureAddressGap(ctx)
	if err != nil {
		return "", err
	}
	if len(newAddresses) == 0 {
		return "", fmt.Errorf("single address manager has no address to return")
	}
	return newAddresses[0], nil
}
