// Package keys is the key-derivation facade (BIP32 child derivation,
// canonical address encoding, and extended-key serialization) that the
// rest of the wallet core depends on. It wraps btcd's hdkeychain/btcec
// packages behind the narrow surface the wallet account subsystem
// actually needs; elliptic-curve primitives and BIP32 child-key math
// themselves remain the external collaborator's concern.
package keys

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/klingon-exchange/walletcore/internal/chain"
)

// PrivateKey wraps a BIP32 extended private key for one network.
type PrivateKey struct {
	ext    *hdkeychain.ExtendedKey
	params *chain.Params
}

// PublicKey wraps a BIP32 extended public key for one network.
type PublicKey struct {
	ext    *hdkeychain.ExtendedKey
	params *chain.Params
}

// FromSeed derives the master extended private key from a BIP32 seed.
func FromSeed(seed []byte, params *chain.Params) (*PrivateKey, error) {
	master, err := hdkeychain.NewMaster(seed, toChainCfgParams(params))
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	return &PrivateKey{ext: master, params: params}, nil
}

// Child derives the child key at index i. Callers add
// hdkeychain.HardenedKeyStart to i themselves for hardened derivation;
// this layer does not impose hardened vs. non-hardened.
func (k *PrivateKey) Child(i uint32) (*PrivateKey, error) {
	child, err := k.ext.Derive(i)
	if err != nil {
		return nil, fmt.Errorf("failed to derive child %d: %w", i, err)
	}
	return &PrivateKey{ext: child, params: k.params}, nil
}

// Child derives the child public key at index i. Only non-hardened
// indices are derivable from a public key per BIP32.
func (k *PublicKey) Child(i uint32) (*PublicKey, error) {
	child, err := k.ext.Derive(i)
	if err != nil {
		return nil, fmt.Errorf("failed to derive child %d: %w", i, err)
	}
	return &PublicKey{ext: child, params: k.params}, nil
}

// Neuter returns the public counterpart of a private key.
func (k *PrivateKey) Neuter() (*PublicKey, error) {
	pub, err := k.ext.Neuter()
	if err != nil {
		return nil, fmt.Errorf("failed to neuter key: %w", err)
	}
	return &PublicKey{ext: pub, params: k.params}, nil
}

// ECPrivKey returns the raw secp256k1 private key.
func (k *PrivateKey) ECPrivKey() (*btcec.PrivateKey, error) {
	priv, err := k.ext.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}
	return priv, nil
}

// ECPubKey returns the raw secp256k1 public key.
func (k *PublicKey) ECPubKey() (*btcec.PublicKey, error) {
	pub, err := k.ext.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	return pub, nil
}

// PubKeyBytes returns the compressed SEC1 encoding of the public key.
func (k *PublicKey) PubKeyBytes() ([]byte, error) {
	pub, err := k.ECPubKey()
	if err != nil {
		return nil, err
	}
	return pub.SerializeCompressed(), nil
}

// Address returns the canonical P2PKH address for this public key,
// matching the Non-goals' P2PKH/P2SH-only script scope.
func (k *PublicKey) Address() (string, error) {
	pubKeyBytes, err := k.PubKeyBytes()
	if err != nil {
		return "", err
	}
	pubKeyHash := btcutil.Hash160(pubKeyBytes)
	addr, err := btcutil.NewAddressPubKeyHash(pubKeyHash, toChainCfgParams(k.params))
	if err != nil {
		return "", fmt.Errorf("failed to create P2PKH address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// Hash160 returns the hash160 of the public key (used to classify
// P2PKH outputs during transaction ingestion).
func (k *PublicKey) Hash160() ([]byte, error) {
	pubKeyBytes, err := k.PubKeyBytes()
	if err != nil {
		return nil, err
	}
	return btcutil.Hash160(pubKeyBytes), nil
}

// ExtendedKeyString returns the portable base58 serialization.
func (k *PrivateKey) ExtendedKeyString() (string, error) {
	if k.ext == nil {
		return "", fmt.Errorf("nil extended key")
	}
	return k.ext.String(), nil
}

// ExtendedKeyString returns the portable base58 serialization.
func (k *PublicKey) ExtendedKeyString() (string, error) {
	if k.ext == nil {
		return "", fmt.Errorf("nil extended key")
	}
	return k.ext.String(), nil
}

// ParseExtendedPrivateKey parses a portable extended-key string,
// failing if it does not encode a private key.
func ParseExtendedPrivateKey(s string, params *chain.Params) (*PrivateKey, error) {
	ext, err := hdkeychain.NewKeyFromString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extended key: %w", err)
	}
	if !ext.IsPrivate() {
		return nil, fmt.Errorf("extended key %q is not a private key", s)
	}
	return &PrivateKey{ext: ext, params: params}, nil
}

// ParseExtendedPublicKey parses a portable extended-key string. A
// private key string is accepted and neutered, matching the original
// source's tolerant from_extended_key_string behavior.
func ParseExtendedPublicKey(s string, params *chain.Params) (*PublicKey, error) {
	ext, err := hdkeychain.NewKeyFromString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extended key: %w", err)
	}
	if ext.IsPrivate() {
		ext, err = ext.Neuter()
		if err != nil {
			return nil, fmt.Errorf("failed to neuter extended key: %w", err)
		}
	}
	return &PublicKey{ext: ext, params: params}, nil
}

// AddressToHash160 decodes a P2PKH address string and returns its
// underlying hash160. Used wherever an address needs to become a
// scriptPubKey hash without going through a PublicKey, e.g. when
// paying a destination address supplied only as a string.
func AddressToHash160(address string, params *chain.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, toChainCfgParams(params))
	if err != nil {
		return nil, fmt.Errorf("failed to decode address: %w", err)
	}
	pkh, ok := addr.(*btcutil.AddressPubKeyHash)
	if !ok {
		return nil, fmt.Errorf("address %s is not a P2PKH address", address)
	}
	return pkh.Hash160()[:], nil
}

func toChainCfgParams(params *chain.Params) *chaincfg.Params {
	return &chaincfg.Params{
		Name:             params.Name,
		PubKeyHashAddrID: params.PubKeyHashAddrID,
		ScriptHashAddrID: params.ScriptHashAddrID,
		Bech32HRPSegwit:  params.Bech32HRP,
		HDPrivateKeyID:   params.HDPrivateKeyID,
		HDPublicKeyID:    params.HDPublicKeyID,
	}
}
