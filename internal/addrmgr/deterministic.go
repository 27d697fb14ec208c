package addrmgr

import (
	"context"
	"fmt"

	"github.com/klingon-exchange/walletcore/internal/keys"
	"github.com/klingon-exchange/walletcore/internal/walletdb"
)

// Deterministic implements a simple version of Bitcoin HD key
// management: a steady gap of unused addresses is kept generated ahead
// of the highest-used address, per chain (0 = receiving, 1 = change).
type Deterministic struct {
	db                    *walletdb.DB
	accountAddress        string
	accountPrivateKey     *keys.PrivateKey // nil for a watch-only account
	chainPublicKey        *keys.PublicKey  // account public key, child(chain)
	chain                 int
	gap                   int
	maximumUsesPerAddress int
}

// NewDeterministic derives the chain-level public key
// (accountPublicKey.Child(chain)) and returns a manager for it.
func NewDeterministic(
	db *walletdb.DB,
	accountAddress string,
	accountPrivateKey *keys.PrivateKey,
	accountPublicKey *keys.PublicKey,
	chain int,
	gap int,
	maximumUsesPerAddress int,
) (*Deterministic, error) {
	chainPub, err := accountPublicKey.Child(uint32(chain))
	if err != nil {
		return nil, fmt.Errorf("failed to derive chain %d public key: %w", chain, err)
	}
	return &Deterministic{
		db:                    db,
		accountAddress:        accountAddress,
		accountPrivateKey:     accountPrivateKey,
		chainPublicKey:        chainPub,
		chain:                 chain,
		gap:                   gap,
		maximumUsesPerAddress: maximumUsesPerAddress,
	}, nil
}

// ChainNumber returns 0 for receiving or 1 for change.
func (m *Deterministic) ChainNumber() int { return m.chain }

// ToDictInstance serializes the gap/maximumUsesPerAddress tunables.
func (m *Deterministic) ToDictInstance() map[string]any {
	return map[string]any{
		"gap":                     m.gap,
		"maximum_uses_per_address": m.maximumUsesPerAddress,
	}
}

// GetPrivateKey derives account.private_key.child(chain).child(index),
// matching the original source exactly. It fails if this manager was
// built from a watch-only (public-key-only) account.
func (m *Deterministic) GetPrivateKey(index uint32) (*keys.PrivateKey, error) {
	if m.accountPrivateKey == nil {
		return nil, fmt.Errorf("cannot get private key on a watch-only account")
	}
	chainKey, err := m.accountPrivateKey.Child(uint32(m.chain))
	if err != nil {
		return nil, fmt.Errorf("failed to derive chain %d private key: %w", m.chain, err)
	}
	child, err := chainKey.Child(index)
	if err != nil {
		return nil, fmt.Errorf("failed to derive private key at index %d: %w", index, err)
	}
	return child, nil
}

// generateKeys derives and persists one public key per index in
// [start, end] inclusive, returning the new addresses in index order.
func (m *Deterministic) generateKeys(ctx context.Context, start, end int) ([]string, error) {
	if end < start {
		return nil, nil
	}
	newKeys := make([]walletdb.AddressKey, 0, end-start+1)
	addresses := make([]string, 0, end-start+1)
	for index := start; index <= end; index++ {
		child, err := m.chainPublicKey.Child(uint32(index))
		if err != nil {
			return nil, fmt.Errorf("failed to derive address key at index %d: %w", index, err)
		}
		addr, err := child.Address()
		if err != nil {
			return nil, fmt.Errorf("failed to derive address at index %d: %w", index, err)
		}
		pubKeyBytes, err := child.PubKeyBytes()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize public key at index %d: %w", index, err)
		}
		newKeys = append(newKeys, walletdb.AddressKey{Position: index, Address: addr, PubKey: pubKeyBytes})
		addresses = append(addresses, addr)
	}
	if err := m.db.AddKeys(ctx, m.accountAddress, m.chain, newKeys); err != nil {
		return nil, fmt.Errorf("failed to save generated keys: %w", err)
	}
	return addresses, nil
}

func (m *Deterministic) queryAddresses(ctx context.Context, limit *int, maxUsedTimes *int, orderBy string) ([]walletdb.AddressRow, error) {
	acct := m.accountAddress
	chain := m.chain
	return m.db.GetAddresses(ctx, walletdb.AddressFilter{
		Account:      &acct,
		Chain:        &chain,
		MaxUsedTimes: maxUsedTimes,
		OrderBy:      orderBy,
		Limit:        limit,
	})
}

// GetMaxGap returns the longest run of consecutive unused addresses
// that is NOT the trailing run at the end of the chain (an open-ended
// trailing run of unused addresses is expected and not a "gap" that
// needs closing - only a run that is followed by a used address
// counts).
func (m *Deterministic) GetMaxGap(ctx context.Context) (int, error) {
	addresses, err := m.queryAddresses(ctx, nil, nil, "position ASC")
	if err != nil {
		return 0, fmt.Errorf("failed to query addresses: %w", err)
	}
	maxGap, currentGap := 0, 0
	for _, addr := range addresses {
		if addr.UsedTimes == 0 {
			currentGap++
		} else {
			if currentGap > maxGap {
				maxGap = currentGap
			}
			currentGap = 0
		}
	}
	return maxGap, nil
}

// EnsureAddressGap tops up this chain so that at least gap unused
// addresses follow the highest-position used address, generating and
// persisting new keys only for the shortfall.
func (m *Deterministic) EnsureAddressGap(ctx context.Context) ([]string, error) {
	limit := m.gap
	addresses, err := m.queryAddresses(ctx, &limit, nil, "position DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}

	existingGap := 0
	for _, addr := range addresses {
		if addr.UsedTimes == 0 {
			existingGap++
		} else {
			break
		}
	}

	if existingGap == m.gap {
		return []string{}, nil
	}

	start := 0
	if len(addresses) > 0 {
		start = addresses[0].Position + 1
	}
	end := start + (m.gap - existingGap) - 1
	return m.generateKeys(ctx, start, end)
}

// GetAddressRecords returns address rows ordered by used_times ASC,
// position ASC (least-used first), optionally limited to addresses
// that have not exceeded maximumUsesPerAddress.
func (m *Deterministic) GetAddressRecords(ctx context.Context, limit int, onlyUsable bool) ([]walletdb.AddressRow, error) {
	var limitPtr *int
	if limit > 0 {
		limitPtr = &limit
	}
	var maxUsedTimes *int
	if onlyUsable {
		maxUsedTimes = &m.maximumUsesPerAddress
	}
	return m.queryAddresses(ctx, limitPtr, maxUsedTimes, "used_times ASC, position ASC")
}

// GetAddresses returns just the address strings from GetAddressRecords.
func (m *Deterministic) GetAddresses(ctx context.Context, limit int, onlyUsable bool) ([]string, error) {
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

// GetOrCreateUsableAddress returns the first usable address on file,
// or tops up the gap and returns the first newly generated address if
// none was usable.
func (m *Deterministic) GetOrCreateUsableAddress(ctx context.Context) (string, error) {
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
		return "", fmt.Errorf("address gap is already full but no usable address was found")
	}
	return newAddresses[0], nil
}
