// Package addrmgr implements the AddressManager polymorphism: two
// concrete address-generation policies (deterministic-chain,
// single-address) behind one interface, so an Account can treat its
// receiving and change chains uniformly regardless of which policy it
// was configured with.
package addrmgr

import (
	"context"
	"fmt"

	"github.com/klingon-exchange/walletcore/internal/keys"
	"github.com/klingon-exchange/walletcore/internal/walletdb"
)

// Manager is the address-generation policy for one account chain
// (receiving or change, for Deterministic; both chains share one
// instance for Single).
type Manager interface {
	GetPrivateKey(index uint32) (*keys.PrivateKey, error)
	GetAddressRecords(ctx context.Context, limit int, onlyUsable bool) ([]walletdb.AddressRow, error)
	GetAddresses(ctx context.Context, limit int, onlyUsable bool) ([]string, error)
	GetOrCreateUsableAddress(ctx context.Context) (string, error)
	EnsureAddressGap(ctx context.Context) ([]string, error)
	GetMaxGap(ctx context.Context) (int, error)
	ChainNumber() int
	ToDictInstance() map[string]any
}

// Names match the original source's AddressManager.name class
// attributes, used to dispatch from_dict/descriptor strings.
const (
	NameDeterministic = "deterministic-chain"
	NameSingle        = "single-address"
)

// ChainConfig carries the tunables for one chain of a Deterministic
// manager.
type ChainConfig struct {
	Gap                   int
	MaximumUsesPerAddress int
}

// DefaultReceivingConfig matches HierarchicalDeterministic.from_dict's
// default for the receiving chain.
func DefaultReceivingConfig() ChainConfig {
	return ChainConfig{Gap: 20, MaximumUsesPerAddress: 2}
}

// DefaultChangeConfig matches HierarchicalDeterministic.from_dict's
// default for the change chain.
func DefaultChangeConfig() ChainConfig {
	return ChainConfig{Gap: 6, MaximumUsesPerAddress: 2}
}

// Descriptor is the serialized shape of an account's address_generator
// field: which policy name, and (for deterministic-chain) the
// receiving/change chain configs.
type Descriptor struct {
	Name      string
	Receiving *ChainConfig
	Change    *ChainConfig
}

// FromDescriptor dispatches on d.Name (defaulting to
// deterministic-chain, matching the original's
// generator_name = address_generator.get('name', HierarchicalDeterministic.name))
// and constructs the receiving and change managers for one account.
// accountPrivateKey may be nil for a watch-only (public-key-only)
// account; GetPrivateKey then fails on first use, exactly as the
// original's "Cannot get private key on encrypted wallet account"
// class of precondition violation.
func FromDescriptor(
	db *walletdb.DB,
	accountAddress string,
	accountPrivateKey *keys.PrivateKey,
	accountPublicKey *keys.PublicKey,
	d Descriptor,
) (receiving Manager, change Manager, err error) {
	name := d.Name
	if name == "" {
		name = NameDeterministic
	}

	switch name {
	case NameDeterministic:
		recvCfg := DefaultReceivingConfig()
		if d.Receiving != nil {
			recvCfg = *d.Receiving
		}
		changeCfg := DefaultChangeConfig()
		if d.Change != nil {
			changeCfg = *d.Change
		}
		recv, err := NewDeterministic(db, accountAddress, accountPrivateKey, accountPublicKey, 0, recvCfg.Gap, recvCfg.MaximumUsesPerAddress)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build receiving chain manager: %w", err)
		}
		chg, err := NewDeterministic(db, accountAddress, accountPrivateKey, accountPublicKey, 1, changeCfg.Gap, changeCfg.MaximumUsesPerAddress)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build change chain manager: %w", err)
		}
		return recv, chg, nil

	case NameSingle:
		single, err := NewSingle(db, accountAddress, accountPrivateKey, accountPublicKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build single-address manager: %w", err)
		}
		return single, single, nil

	default:
		return nil, nil, fmt.Errorf("unknown address generator %q", name)
	}
}

// ToDict reproduces AddressManager.to_dict: the generator name plus
// each chain's ToDictInstance() if non-nil.
func ToDict(receiving, change Manager, name string) map[string]any {
	d := map[string]any{"name": name}
	if rd := receiving.ToDictInstance(); rd != nil {
		d["receiving"] = rd
	}
	if cd := change.ToDictInstance(); cd != nil {
		d["change"] = cd
	}
	return d
}
