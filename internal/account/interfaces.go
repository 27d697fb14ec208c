package account

import (
	"context"

	"github.com/klingon-exchange/walletcore/internal/walletdb"
)

// Ledger is the collaborator an Account transacts against: it owns the
// persisted store, knows the current chain height, can translate an
// address into its hash160, and can reserve/release/broadcast
// transactions.
type Ledger interface {
	HeaderHeight() int64
	DB() *walletdb.DB
	AddressToHash160(address string) ([]byte, error)
	ReserveOutputs(ctx context.Context, txos []walletdb.TXO) error
	ReleaseOutputs(ctx context.Context, txos []walletdb.TXO) error
	Broadcast(ctx context.Context, tx Transaction) error
	GetID() string
	TransactionClass() TransactionClass
}

// Wallet is the collaborator that owns a collection of accounts.
type Wallet interface {
	AddAccount(acct *Account)
}

// Mnemonic is the collaborator that turns a fresh seed phrase into a
// BIP32 seed.
type Mnemonic interface {
	MakeSeed() (string, error)
	MnemonicToSeed(phrase, password string) []byte
}

// TxInput is one input of an unsigned or signed transaction: a
// reference to the TXO it spends.
type TxInput struct {
	TXO walletdb.TXO
}

// TxOutput is one output of an unsigned transaction: an amount paid to
// a P2PKH hash160.
type TxOutput struct {
	Amount  int64
	Hash160 []byte
}

// Transaction is the built/signed transaction TransactionClass.Create
// returns, carrying enough of its own inputs/outputs for the account
// layer to release reservations or hand it to the ledger for broadcast.
type Transaction struct {
	TxID    string
	Raw     []byte
	Inputs  []TxInput
	Outputs []TxOutput
}

// TransactionClass builds and signs transactions. SpendInput and
// PayToPubKeyHash are pure constructors; Create does the actual UTXO
// selection, fee calculation, and signing against fundingAccounts,
// sending any change to changeAccount.
type TransactionClass interface {
	SpendInput(txo walletdb.TXO) TxInput
	PayToPubKeyHash(amount int64, hash160 []byte) TxOutput
	Create(ctx context.Context, inputs []TxInput, outputs []TxOutput, fundingAccounts []*Account, changeAccount *Account) (Transaction, error)
}
