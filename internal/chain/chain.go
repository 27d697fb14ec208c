// Package chain defines network parameters for the Bitcoin-family UTXO
// ledgers this wallet core targets. Values are hardcoded here - no
// external configuration needed.
package chain

// Network represents mainnet or testnet.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// Params contains the address-encoding and HD-key parameters for one
// network. The fields mirror btcd's chaincfg.Params subset that the
// core actually touches.
type Params struct {
	Name string

	// Address encoding
	PubKeyHashAddrID byte   // P2PKH version byte
	ScriptHashAddrID byte   // P2SH version byte
	Bech32HRP        string // reserved for embedders that add SegWit later

	// BIP32 HD key magic bytes (xprv/xpub and network equivalents)
	HDPrivateKeyID [4]byte
	HDPublicKeyID  [4]byte

	// BIP44 coin type for this network. Key derivation in this module
	// does not read it.
	CoinType uint32
}

var registry = map[Network]*Params{
	Mainnet: {
		Name:             "mainnet",
		PubKeyHashAddrID: 0x00,
		ScriptHashAddrID: 0x05,
		Bech32HRP:        "bc",
		HDPrivateKeyID:   [4]byte{0x04, 0x88, 0xad, 0xe4}, // xprv
		HDPublicKeyID:    [4]byte{0x04, 0x88, 0xb2, 0x1e}, // xpub
		CoinType:         0,
	},
	Testnet: {
		Name:             "testnet",
		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		Bech32HRP:        "tb",
		HDPrivateKeyID:   [4]byte{0x04, 0x35, 0x83, 0x94}, // tprv
		HDPublicKeyID:    [4]byte{0x04, 0x35, 0x87, 0xcf}, // tpub
		CoinType:         1,
	},
}

// Get returns the params registered for a network.
func Get(network Network) (*Params, bool) {
	p, ok := registry[network]
	return p, ok
}

// MustGet panics if network is unregistered; used for constants known
// at compile time (Mainnet/Testnet are always registered above).
func MustGet(network Network) *Params {
	p, ok := registry[network]
	if !ok {
		panic("chain: unregistered network " + string(network))
	}
	return p
}
