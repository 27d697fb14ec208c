package mnemonic

import (
	"strings"
	"testing"
)

const testPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestGenerate(t *testing.T) {
	phrase, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	words := strings.Fields(phrase)
	if len(words) != 24 {
		t.Errorf("expected 24 words, got %d", len(words))
	}
	if !Validate(phrase) {
		t.Error("generated phrase should be valid")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		phrase string
		valid  bool
	}{
		{testPhrase, true},
		{"invalid mnemonic words", false},
		{"", false},
		{"abandon", false},
	}
	for _, tc := range tests {
		if got := Validate(tc.phrase); got != tc.valid {
			t.Errorf("Validate(%q) = %v, want %v", tc.phrase, got, tc.valid)
		}
	}
}

func TestSeedDeterministic(t *testing.T) {
	s1, err := Seed(testPhrase, "")
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	s2, err := Seed(testPhrase, "")
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if string(s1) != string(s2) {
		t.Error("Seed() should be deterministic for the same phrase/passphrase")
	}
}

func TestSeedPassphraseChangesOutput(t *testing.T) {
	s1, _ := Seed(testPhrase, "")
	s2, _ := Seed(testPhrase, "extra")
	if string(s1) == string(s2) {
		t.Error("different passphrases should yield different seeds")
	}
}

func TestSeedRejectsInvalidPhrase(t *testing.T) {
	if _, err := Seed("not a valid mnemonic phrase at all", ""); err == nil {
		t.Error("expected error for invalid mnemonic")
	}
}

func TestProviderMakeSeedReturnsValidPhrase(t *testing.T) {
	var p Provider
	phrase, err := p.MakeSeed()
	if err != nil {
		t.Fatalf("MakeSeed() error = %v", err)
	}
	if !Validate(phrase) {
		t.Error("MakeSeed() should return a valid BIP39 phrase")
	}
}

func TestProviderMnemonicToSeedMatchesSeed(t *testing.T) {
	var p Provider
	want, err := Seed(testPhrase, "pw")
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	got := p.MnemonicToSeed(testPhrase, "pw")
	if string(got) != string(want) {
		t.Error("MnemonicToSeed() should match Seed()")
	}
}

func TestProviderMnemonicToSeedInvalidPhraseReturnsNil(t *testing.T) {
	var p Provider
	if got := p.MnemonicToSeed("not a valid phrase", ""); got != nil {
		t.Error("expected nil seed for an invalid phrase")
	}
}
