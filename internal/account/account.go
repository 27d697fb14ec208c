// Package account implements the Account subsystem: construction from
// a seed/private key/public key, encryption at rest, address-gap
// maintenance, balance/UTXO queries, and funding another account.
// Semantics are ported from the original account/address-manager
// implementation; only the collaborator types (Ledger, Mnemonic,
// TransactionClass) are Go interfaces instead of duck-typed objects.
package account

import (
	"context"
	"fmt"

	"github.com/klingon-exchange/walletcore/internal/addrmgr"
	"github.com/klingon-exchange/walletcore/internal/chain"
	"github.com/klingon-exchange/walletcore/internal/keys"
	"github.com/klingon-exchange/walletcore/internal/walletdb"
)

// Account is one HD wallet account: a seed or key pair, two address
// chains (receiving and change), and the ledger/wallet it belongs to.
type Account struct {
	ledger Ledger
	wallet Wallet

	name string

	// seed and privateKeyStr hold plaintext when !encrypted and
	// ciphertext when encrypted - exactly like the original source,
	// which stores the encrypted string in the same field it stores
	// the plaintext phrase/extended-key string in.
	seed          string
	encrypted     bool
	privateKeyStr string
	privateKey    *keys.PrivateKey // nil whenever encrypted, or for a watch-only account
	publicKey     *keys.PublicKey

	addressGeneratorName string
	receiving            addrmgr.Manager
	change               addrmgr.Manager

	params *chain.Params
}

// Record is the portable, serializable shape of an Account - the Go
// analogue of the original source's to_dict()/from_dict() payload.
type Record struct {
	Ledger           string
	Name             string
	Seed             string
	Encrypted        bool
	PrivateKey       string
	PublicKey        string
	AddressGenerator map[string]any
}

// Generate creates a brand new account from a freshly minted seed
// phrase.
func Generate(ledger Ledger, wallet Wallet, mnemonic Mnemonic, params *chain.Params, name string, addressGenerator map[string]any) (*Account, error) {
	seed, err := mnemonic.MakeSeed()
	if err != nil {
		return nil, fmt.Errorf("failed to generate seed: %w", err)
	}
	return FromRecord(ledger, wallet, mnemonic, params, Record{
		Name:             name,
		Seed:             seed,
		AddressGenerator: addressGenerator,
	})
}

// GetPrivateKeyFromSeed derives the account's master private key from
// a seed phrase and optional password.
func GetPrivateKeyFromSeed(mnemonic Mnemonic, params *chain.Params, seedPhrase, password string) (*keys.PrivateKey, error) {
	seedBytes := mnemonic.MnemonicToSeed(seedPhrase, password)
	return keys.FromSeed(seedBytes, params)
}

// FromRecord reconstructs an Account from a Record, resolving the key
// material in the same order as the original source: seed takes
// priority, then an explicit private key, then fall back to a
// public-key-only (watch-only) account. An encrypted record skips key
// derivation entirely and keeps seed/private key as opaque ciphertext
// until Decrypt is called.
func FromRecord(ledger Ledger, wallet Wallet, mnemonic Mnemonic, params *chain.Params, rec Record) (*Account, error) {
	var privateKey *keys.PrivateKey
	var publicKey *keys.PublicKey
	var err error

	if !rec.Encrypted {
		switch {
		case rec.Seed != "":
			privateKey, err = GetPrivateKeyFromSeed(mnemonic, params, rec.Seed, "")
			if err != nil {
				return nil, fmt.Errorf("failed to derive private key from seed: %w", err)
			}
			publicKey, err = privateKey.Neuter()
			if err != nil {
				return nil, fmt.Errorf("failed to derive public key: %w", err)
			}
		case rec.PrivateKey != "":
			privateKey, err = keys.ParseExtendedPrivateKey(rec.PrivateKey, params)
			if err != nil {
				return nil, fmt.Errorf("failed to parse private key: %w", err)
			}
			publicKey, err = privateKey.Neuter()
			if err != nil {
				return nil, fmt.Errorf("failed to derive public key: %w", err)
			}
		}
	}

	if publicKey == nil {
		publicKey, err = keys.ParseExtendedPublicKey(rec.PublicKey, params)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
	}

	name := rec.Name
	if name == "" {
		addr, err := publicKey.Address()
		if err != nil {
			return nil, fmt.Errorf("failed to derive default account name: %w", err)
		}
		name = "Account #" + addr
	}

	accountAddress, err := publicKey.Address()
	if err != nil {
		return nil, fmt.Errorf("failed to derive account address: %w", err)
	}

	descriptor := descriptorFromMap(rec.AddressGenerator)
	receiving, change, err := addrmgr.FromDescriptor(ledger.DB(), accountAddress, privateKey, publicKey, descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to build address managers: %w", err)
	}

	privateKeyStr := rec.PrivateKey
	if !rec.Encrypted && privateKey != nil {
		privateKeyStr, err = privateKey.ExtendedKeyString()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize private key: %w", err)
		}
	}

	a := &Account{
		ledger:               ledger,
		wallet:               wallet,
		name:                 name,
		seed:                 rec.Seed,
		encrypted:            rec.Encrypted,
		privateKeyStr:        privateKeyStr,
		privateKey:           privateKey,
		publicKey:            publicKey,
		addressGeneratorName: descriptor.Name,
		receiving:            receiving,
		change:               change,
		params:               params,
	}

	wallet.AddAccount(a)
	return a, nil
}

func descriptorFromMap(m map[string]any) addrmgr.Descriptor {
	d := addrmgr.Descriptor{}
	if m == nil {
		return d
	}
	if name, ok := m["name"].(string); ok {
		d.Name = name
	}
	if recv, ok := m["receiving"].(map[string]any); ok {
		d.Receiving = chainConfigFromMap(recv)
	}
	if chg, ok := m["change"].(map[string]any); ok {
		d.Change = chainConfigFromMap(chg)
	}
	return d
}

func chainConfigFromMap(m map[string]any) *addrmgr.ChainConfig {
	cfg := addrmgr.ChainConfig{}
	if gap, ok := asInt(m["gap"]); ok {
		cfg.Gap = gap
	}
	if max, ok := asInt(m["maximum_uses_per_address"]); ok {
		cfg.MaximumUsesPerAddress = max
	}
	return &cfg
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// ToRecord serializes the account back into its portable Record shape.
func (a *Account) ToRecord() (Record, error) {
	pubStr, err := a.publicKey.ExtendedKeyString()
	if err != nil {
		return Record{}, fmt.Errorf("failed to serialize public key: %w", err)
	}
	return Record{
		Ledger:           a.ledger.GetID(),
		Name:             a.name,
		Seed:             a.seed,
		Encrypted:        a.encrypted,
		PrivateKey:       a.privateKeyStr,
		PublicKey:        pubStr,
		AddressGenerator: addrmgr.ToDict(a.receiving, a.change, a.addressGeneratorName),
	}, nil
}

// Name returns the account's display name.
func (a *Account) Name() string { return a.name }

// Encrypted reports whether the account's key material is currently
// encrypted at rest.
func (a *Account) Encrypted() bool { return a.encrypted }

// PublicKey returns the account's master public key.
func (a *Account) PublicKey() *keys.PublicKey { return a.publicKey }

// Address returns the account's master public key address - the
// value used as the "account" column throughout walletdb.
func (a *Account) Address() (string, error) {
	return a.publicKey.Address()
}

// uniqueManagers returns the account's distinct address managers: for
// a Single-keyed account, receiving and change are the same instance
// and must only be visited once.
func (a *Account) uniqueManagers() []addrmgr.Manager {
	if a.receiving == a.change {
		return []addrmgr.Manager{a.receiving}
	}
	return []addrmgr.Manager{a.receiving, a.change}
}

// EnsureAddressGap tops up every distinct address chain and returns
// every newly generated address.
func (a *Account) EnsureAddressGap(ctx context.Context) ([]string, error) {
	var addresses []string
	for _, mgr := range a.uniqueManagers() {
		newAddrs, err := mgr.EnsureAddressGap(ctx)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, newAddrs...)
	}
	return addresses, nil
}

// GetAddresses returns every address on file for this account, across
// both chains.
func (a *Account) GetAddresses(ctx context.Context, limit int, maxUsedTimes *int) ([]string, error) {
	records, err := a.GetAddressRecords(ctx, limit, maxUsedTimes)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Address
	}
	return out, nil
}

// GetAddressRecords returns the full address rows for this account,
// across both chains.
func (a *Account) GetAddressRecords(ctx context.Context, limit int, maxUsedTimes *int) ([]walletdb.AddressRow, error) {
	addr, err := a.Address()
	if err != nil {
		return nil, err
	}
	var limitPtr *int
	if limit > 0 {
		limitPtr = &limit
	}
	return a.ledger.DB().GetAddresses(ctx, walletdb.AddressFilter{
		Account:      &addr,
		MaxUsedTimes: maxUsedTimes,
		Limit:        limitPtr,
	})
}

// GetPrivateKey returns the private key for (chain, index): 0 =
// receiving, 1 = change. It fails while the account is encrypted,
// matching the original's "Cannot get private key on encrypted wallet
// account" precondition.
func (a *Account) GetPrivateKey(chainNumber int, index uint32) (*keys.PrivateKey, error) {
	if a.encrypted {
		return nil, ErrEncryptedPrivateKey
	}
	mgr := a.receiving
	if chainNumber == 1 {
		mgr = a.change
	}
	return mgr.GetPrivateKey(index)
}

// Encrypt replaces the account's plaintext seed/private key string
// with their AES-256-GCM ciphertext under DoubleSHA256(password), and
// clears the in-memory private key so GetPrivateKey starts failing
// with ErrEncryptedPrivateKey until Decrypt is called.
func (a *Account) Encrypt(password string) error {
	if a.encrypted {
		return ErrAlreadyEncrypted
	}
	secret := keys.DoubleSHA256([]byte(password))

	if a.seed != "" {
		ciphertext, err := keys.AESEncrypt(secret, a.seed)
		if err != nil {
			return fmt.Errorf("failed to encrypt seed: %w", err)
		}
		a.seed = ciphertext
	}
	if a.privateKeyStr != "" {
		ciphertext, err := keys.AESEncrypt(secret, a.privateKeyStr)
		if err != nil {
			return fmt.Errorf("failed to encrypt private key: %w", err)
		}
		a.privateKeyStr = ciphertext
	}

	a.privateKey = nil
	a.encrypted = true
	return nil
}

// Decrypt reverses Encrypt: it recovers the plaintext seed/private key
// string under DoubleSHA256(password) and re-derives the in-memory
// private key, returning ErrNotEncrypted if the account is already
// plaintext and a decryption error (typically a wrong password) if the
// ciphertext fails to open.
func (a *Account) Decrypt(mnemonic Mnemonic, password string) error {
	if !a.encrypted {
		return ErrNotEncrypted
	}
	secret := keys.DoubleSHA256([]byte(password))

	var seedPlain, privKeyPlain string
	if a.seed != "" {
		plain, err := keys.AESDecrypt(secret, a.seed)
		if err != nil {
			return fmt.Errorf("failed to decrypt seed: %w", err)
		}
		seedPlain = plain
	}
	if a.privateKeyStr != "" {
		plain, err := keys.AESDecrypt(secret, a.privateKeyStr)
		if err != nil {
			return fmt.Errorf("failed to decrypt private key: %w", err)
		}
		privKeyPlain = plain
	}

	var privateKey *keys.PrivateKey
	var err error
	switch {
	case seedPlain != "":
		privateKey, err = GetPrivateKeyFromSeed(mnemonic, a.params, seedPlain, "")
	case privKeyPlain != "":
		privateKey, err = keys.ParseExtendedPrivateKey(privKeyPlain, a.params)
	}
	if err != nil {
		return fmt.Errorf("failed to derive private key: %w", err)
	}

	a.seed = seedPlain
	a.privateKeyStr = privKeyPlain
	a.privateKey = privateKey
	a.encrypted = false
	return nil
}

// GetOrCreateChangeAddress returns a usable change address, generating
// one if none is currently unused.
func (a *Account) GetOrCreateChangeAddress(ctx context.Context) (string, error) {
	return a.change.GetOrCreateUsableAddress(ctx)
}

// GetPrivateKeyForAddress looks up which chain and position generated
// address and returns its private key. Used by a TransactionClass to
// sign an input without the caller needing to track derivation
// indices itself.
func (a *Account) GetPrivateKeyForAddress(ctx context.Context, address string) (*keys.PrivateKey, error) {
	row, found, err := a.ledger.DB().GetAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("account: address %s not found", address)
	}
	myAddr, err := a.Address()
	if err != nil {
		return nil, err
	}
	if row.Account != myAddr {
		return nil, fmt.Errorf("account: address %s does not belong to this account", address)
	}
	return a.GetPrivateKey(row.Chain, uint32(row.Position))
}

// GetBalance sums the spendable balance of this account. When
// confirmations > 0, only outputs confirmed at least that many blocks
// ago (and confirmed at all) are counted, matching the original's
// height__lte / height__gt filter derivation from the ledger's current
// header height.
func (a *Account) GetBalance(ctx context.Context, confirmations int, includeReserved bool, constraints map[string]any) (int64, error) {
	addr, err := a.Address()
	if err != nil {
		return 0, err
	}
	c := copyMap(constraints)
	if confirmations > 0 {
		height := a.ledger.HeaderHeight() - int64(confirmations-1)
		c["height__lte"] = height
		c["height__gt"] = 0
	}
	return a.ledger.DB().GetBalanceForAccount(ctx, addr, includeReserved, c)
}

// GetMaxGap returns the current max gap for both chains.
func (a *Account) GetMaxGap(ctx context.Context) (map[string]int, error) {
	changeGap, err := a.change.GetMaxGap(ctx)
	if err != nil {
		return nil, err
	}
	receivingGap, err := a.receiving.GetMaxGap(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int{
		"max_change_gap":    changeGap,
		"max_receiving_gap": receivingGap,
	}, nil
}

// GetUnspentOutputs returns this account's spendable UTXOs.
func (a *Account) GetUnspentOutputs(ctx context.Context, constraints map[string]any) ([]walletdb.TXO, error) {
	addr, err := a.Address()
	if err != nil {
		return nil, err
	}
	return a.ledger.DB().GetUTXOsForAccount(ctx, addr, copyMap(constraints))
}

// Fund moves value from this account to toAccount. In "everything"
// mode every spendable UTXO matching constraints is reserved up front
// and swept into a single transaction paying toAccount. Otherwise
// amount is split evenly across outputs outputs, all paying one usable
// address on toAccount's change chain, with change returned to
// this account; whatever inputs txClass.Create pulls to cover it are
// reserved as soon as the transaction comes back. Either way, reserved
// inputs are released again if the caller chooses not to broadcast, so
// a dry-run Fund never leaves UTXOs stuck reserved.
func (a *Account) Fund(ctx context.Context, toAccount *Account, amount int64, everything bool, outputs int, broadcast bool, constraints map[string]any) (Transaction, error) {
	if a.ledger.GetID() != toAccount.ledger.GetID() {
		return Transaction{}, ErrDifferentLedger
	}
	if !everything && amount <= 0 {
		return Transaction{}, ErrNonPositiveAmount
	}
	if outputs < 1 {
		outputs = 1
	}

	txClass := a.ledger.TransactionClass()

	var tx Transaction
	var err error
	switch {
	case everything:
		utxos, uerr := a.GetUnspentOutputs(ctx, constraints)
		if uerr != nil {
			return Transaction{}, uerr
		}
		if err = a.ledger.ReserveOutputs(ctx, utxos); err != nil {
			return Transaction{}, err
		}
		inputs := make([]TxInput, len(utxos))
		for i, u := range utxos {
			inputs[i] = txClass.SpendInput(u)
		}
		tx, err = txClass.Create(ctx, inputs, nil, []*Account{a}, toAccount)
	default:
		toAddr, aerr := toAccount.change.GetOrCreateUsableAddress(ctx)
		if aerr != nil {
			return Transaction{}, aerr
		}
		hash160, herr := toAccount.ledger.AddressToHash160(toAddr)
		if herr != nil {
			return Transaction{}, herr
		}
		perOutput := amount / int64(outputs)
		txOutputs := make([]TxOutput, outputs)
		for i := range txOutputs {
			txOutputs[i] = txClass.PayToPubKeyHash(perOutput, hash160)
		}
		tx, err = txClass.Create(ctx, nil, txOutputs, []*Account{a}, a)
		if err == nil {
			if rerr := a.ledger.ReserveOutputs(ctx, inputTXOs(tx.Inputs)); rerr != nil {
				return Transaction{}, rerr
			}
		}
	}
	if err != nil {
		return Transaction{}, err
	}

	if broadcast {
		if err := a.ledger.Broadcast(ctx, tx); err != nil {
			return Transaction{}, err
		}
		return tx, nil
	}

	if err := a.ledger.ReleaseOutputs(ctx, inputTXOs(tx.Inputs)); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// inputTXOs extracts the underlying walletdb.TXO from each input, for
// passing to Ledger.ReserveOutputs/ReleaseOutputs.
func inputTXOs(inputs []TxInput) []walletdb.TXO {
	txos := make([]walletdb.TXO, len(inputs))
	for i, in := range inputs {
		txos[i] = in.TXO
	}
	return txos
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
