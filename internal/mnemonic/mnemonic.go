// Package mnemonic implements the Mnemonic collaborator: BIP39 phrase
// generation, validation, and seed derivation.
package mnemonic

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// entropyBits picks a 24-word phrase by default.
const entropyBits = 256

// Generate creates a new 24-word BIP39 mnemonic phrase.
func Generate() (string, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return phrase, nil
}

// Validate reports whether phrase is a well-formed BIP39 mnemonic
// (correct wordlist membership and checksum).
func Validate(phrase string) bool {
	return bip39.IsMnemonicValid(phrase)
}

// Seed derives the BIP32 seed for phrase under an optional passphrase,
// matching BIP39's PBKDF2-HMAC-SHA512 seed derivation.
func Seed(phrase, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(phrase) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	return bip39.NewSeedWithErrorChecking(phrase, passphrase)
}

// Provider adapts the package's free functions to account.Mnemonic,
// the shape account.Generate/account.FromRecord expect their seed
// collaborator in.
type Provider struct{}

// MakeSeed generates a fresh 24-word phrase.
func (Provider) MakeSeed() (string, error) {
	return Generate()
}

// MnemonicToSeed derives the BIP32 seed bytes for phrase. Returns nil
// if phrase fails BIP39 validation; account.FromRecord only ever
// passes phrases it just generated or previously accepted, so this
// path is not expected to be hit in practice.
func (Provider) MnemonicToSeed(phrase, password string) []byte {
	seed, err := Seed(phrase, password)
	if err != nil {
		return nil
	}
	return seed
}
