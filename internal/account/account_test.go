package account

import (
	"context"
	"os"
	"testing"

	"github.com/klingon-exchange/walletcore/internal/chain"
	"github.com/klingon-exchange/walletcore/internal/mnemonic"
	"github.com/klingon-exchange/walletcore/internal/walletdb"
)

// fakeLedger is the minimal account.Ledger a test needs: a real
// walletdb.DB (address managers talk to it directly) plus fakeable
// height/broadcast/transaction-class behavior.
type fakeLedger struct {
	id        string
	db        *walletdb.DB
	height    int64
	txClass   TransactionClass
	broadcast func(ctx context.Context, tx Transaction) error

	reserved []walletdb.TXO
	released []walletdb.TXO
}

func (l *fakeLedger) HeaderHeight() int64 { return l.height }
func (l *fakeLedger) DB() *walletdb.DB    { return l.db }
func (l *fakeLedger) AddressToHash160(address string) ([]byte, error) {
	return []byte(address), nil
}
func (l *fakeLedger) ReserveOutputs(ctx context.Context, txos []walletdb.TXO) error {
	l.reserved = append(l.reserved, txos...)
	return nil
}
func (l *fakeLedger) ReleaseOutputs(ctx context.Context, txos []walletdb.TXO) error {
	l.released = append(l.released, txos...)
	return nil
}
func (l *fakeLedger) Broadcast(ctx context.Context, tx Transaction) error {
	if l.broadcast != nil {
		return l.broadcast(ctx, tx)
	}
	return nil
}
func (l *fakeLedger) GetID() string                     { return l.id }
func (l *fakeLedger) TransactionClass() TransactionClass { return l.txClass }

// fakeTxClass records what it was asked to build and returns a fixed
// Transaction, so Fund can be tested without real UTXO selection.
type fakeTxClass struct {
	created []createCall
	tx      Transaction
	err     error
}

type createCall struct {
	inputs          []TxInput
	outputs         []TxOutput
	fundingAccounts []*Account
	changeAccount   *Account
}

func (f *fakeTxClass) SpendInput(txo walletdb.TXO) TxInput { return TxInput{TXO: txo} }
func (f *fakeTxClass) PayToPubKeyHash(amount int64, hash160 []byte) TxOutput {
	return TxOutput{Amount: amount, Hash160: hash160}
}
func (f *fakeTxClass) Create(ctx context.Context, inputs []TxInput, outputs []TxOutput, fundingAccounts []*Account, changeAccount *Account) (Transaction, error) {
	f.created = append(f.created, createCall{inputs, outputs, fundingAccounts, changeAccount})
	if f.err != nil {
		return Transaction{}, f.err
	}
	return f.tx, nil
}

type fakeWallet struct {
	accounts []*Account
}

func (w *fakeWallet) AddAccount(a *Account) { w.accounts = append(w.accounts, a) }

func newTestLedger(t *testing.T) *fakeLedger {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "account-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	db, err := walletdb.Open(walletdb.Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("walletdb.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &fakeLedger{id: "test-ledger", db: db, txClass: &fakeTxClass{}}
}

func newTestAccount(t *testing.T, ledger *fakeLedger, wallet Wallet) *Account {
	t.Helper()
	params := chain.MustGet(chain.Mainnet)
	acct, err := Generate(ledger, wallet, mnemonic.Provider{}, params, "", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return acct
}

func TestGenerateProducesUsableAccount(t *testing.T) {
	ledger := newTestLedger(t)
	wallet := &fakeWallet{}
	acct := newTestAccount(t, ledger, wallet)

	if acct.Encrypted() {
		t.Error("freshly generated account should not be encrypted")
	}
	addr, err := acct.Address()
	if err != nil {
		t.Fatalf("Address() error = %v", err)
	}
	if addr == "" {
		t.Error("Address() returned empty string")
	}
	if len(wallet.accounts) != 1 || wallet.accounts[0] != acct {
		t.Error("Generate did not register the account with the wallet")
	}
}

func TestToRecordFromRecordRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	wallet := &fakeWallet{}
	acct := newTestAccount(t, ledger, wallet)

	rec, err := acct.ToRecord()
	if err != nil {
		t.Fatalf("ToRecord() error = %v", err)
	}

	rebuilt, err := FromRecord(ledger, wallet, mnemonic.Provider{}, chain.MustGet(chain.Mainnet), rec)
	if err != nil {
		t.Fatalf("FromRecord() error = %v", err)
	}

	origAddr, _ := acct.Address()
	newAddr, _ := rebuilt.Address()
	if origAddr != newAddr {
		t.Errorf("address mismatch after round trip: %s != %s", origAddr, newAddr)
	}
	if rebuilt.Name() != acct.Name() {
		t.Errorf("name mismatch after round trip: %s != %s", rebuilt.Name(), acct.Name())
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	wallet := &fakeWallet{}
	acct := newTestAccount(t, ledger, wallet)

	if err := acct.Encrypt("hunter2"); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !acct.Encrypted() {
		t.Fatal("account should report encrypted after Encrypt()")
	}
	if _, err := acct.GetPrivateKey(0, 0); err != ErrEncryptedPrivateKey {
		t.Errorf("GetPrivateKey() on encrypted account error = %v, want ErrEncryptedPrivateKey", err)
	}
	if err := acct.Encrypt("hunter2"); err != ErrAlreadyEncrypted {
		t.Errorf("Encrypt() on already-encrypted account error = %v, want ErrAlreadyEncrypted", err)
	}

	if err := acct.Decrypt(mnemonic.Provider{}, "wrong-password"); err == nil {
		t.Error("Decrypt() with wrong password should fail")
	}
	if err := acct.Decrypt(mnemonic.Provider{}, "hunter2"); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if acct.Encrypted() {
		t.Error("account should report unencrypted after Decrypt()")
	}
	if err := acct.Decrypt(mnemonic.Provider{}, "hunter2"); err != ErrNotEncrypted {
		t.Errorf("Decrypt() on already-plaintext account error = %v, want ErrNotEncrypted", err)
	}
	if _, err := acct.GetPrivateKey(0, 0); err != nil {
		t.Errorf("GetPrivateKey() after Decrypt() error = %v", err)
	}
}

func TestFundDifferentLedgerRejected(t *testing.T) {
	ledgerA := newTestLedger(t)
	ledgerA.id = "ledger-a"
	ledgerB := newTestLedger(t)
	ledgerB.id = "ledger-b"

	from := newTestAccount(t, ledgerA, &fakeWallet{})
	to := newTestAccount(t, ledgerB, &fakeWallet{})

	_, err := from.Fund(context.Background(), to, 1000, false, 1, false, nil)
	if err != ErrDifferentLedger {
		t.Errorf("Fund() across ledgers error = %v, want ErrDifferentLedger", err)
	}
}

func TestFundNonPositiveAmountRejected(t *testing.T) {
	ledger := newTestLedger(t)
	from := newTestAccount(t, ledger, &fakeWallet{})
	to := newTestAccount(t, ledger, &fakeWallet{})

	_, err := from.Fund(context.Background(), to, 0, false, 1, false, nil)
	if err != ErrNonPositiveAmount {
		t.Errorf("Fund() with zero amount error = %v, want ErrNonPositiveAmount", err)
	}
}

func TestFundAmountModeBuildsOutputsAndReleasesOnNoBroadcast(t *testing.T) {
	ledger := newTestLedger(t)
	wallet := &fakeWallet{}
	from := newTestAccount(t, ledger, wallet)
	to := newTestAccount(t, ledger, wallet)

	txc := &fakeTxClass{tx: Transaction{
		TxID: "abc123",
		Inputs: []TxInput{
			{TXO: walletdb.TXO{TxID: "prev", Position: 0, Amount: 5000}},
		},
	}}
	ledger.txClass = txc

	tx, err := from.Fund(context.Background(), to, 2000, false, 2, false, nil)
	if err != nil {
		t.Fatalf("Fund() error = %v", err)
	}
	if tx.TxID != "abc123" {
		t.Errorf("Fund() returned TxID = %s, want abc123", tx.TxID)
	}
	if len(txc.created) != 1 {
		t.Fatalf("expected 1 Create() call, got %d", len(txc.created))
	}
	call := txc.created[0]
	if len(call.outputs) != 2 {
		t.Errorf("expected 2 outputs for outputs=2, got %d", len(call.outputs))
	}
	for _, o := range call.outputs {
		if o.Amount != 1000 {
			t.Errorf("expected each output to carry 1000, got %d", o.Amount)
		}
	}
	if len(ledger.reserved) != 1 {
		t.Errorf("expected inputs reserved while building, got %d reserved", len(ledger.reserved))
	}
	if len(ledger.released) != 1 {
		t.Errorf("expected inputs released when broadcast=false, got %d released", len(ledger.released))
	}
}

func TestFundEverythingModeSweepsUTXOs(t *testing.T) {
	ledger := newTestLedger(t)
	wallet := &fakeWallet{}
	from := newTestAccount(t, ledger, wallet)
	to := newTestAccount(t, ledger, wallet)

	txc := &fakeTxClass{tx: Transaction{TxID: "sweep1"}}
	ledger.txClass = txc

	broadcastCalled := false
	ledger.broadcast = func(ctx context.Context, tx Transaction) error {
		broadcastCalled = true
		return nil
	}

	_, err := from.Fund(context.Background(), to, 0, true, 1, true, nil)
	if err != nil {
		t.Fatalf("Fund() everything mode error = %v", err)
	}
	if len(txc.created) != 1 {
		t.Fatalf("expected 1 Create() call, got %d", len(txc.created))
	}
	if len(txc.created[0].outputs) != 0 {
		t.Errorf("everything mode should pass nil outputs, got %d", len(txc.created[0].outputs))
	}
	if !broadcastCalled {
		t.Error("expected broadcast=true to invoke the ledger's Broadcast")
	}
	if len(ledger.released) != 0 {
		t.Error("inputs should not be released when broadcast succeeds")
	}
}

func TestEnsureAddressGapFillsBothChains(t *testing.T) {
	ledger := newTestLedger(t)
	acct := newTestAccount(t, ledger, &fakeWallet{})

	addrs, err := acct.EnsureAddressGap(context.Background())
	if err != nil {
		t.Fatalf("EnsureAddressGap() error = %v", err)
	}
	if len(addrs) == 0 {
		t.Error("expected EnsureAddressGap to generate addresses for a fresh account")
	}

	all, err := acct.GetAddresses(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("GetAddresses() error = %v", err)
	}
	if len(all) < len(addrs) {
		t.Errorf("GetAddresses() returned fewer addresses (%d) than EnsureAddressGap generated (%d)", len(all), len(addrs))
	}
}

func TestGetBalanceWithNoUTXOsIsZero(t *testing.T) {
	ledger := newTestLedger(t)
	acct := newTestAccount(t, ledger, &fakeWallet{})

	balance, err := acct.GetBalance(context.Background(), 0, false, nil)
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if balance != 0 {
		t.Errorf("GetBalance() = %d, want 0 for a fresh account", balance)
	}
}

func TestGetMaxGapReturnsBothChains(t *testing.T) {
	ledger := newTestLedger(t)
	acct := newTestAccount(t, ledger, &fakeWallet{})

	if _, err := acct.EnsureAddressGap(context.Background()); err != nil {
		t.Fatalf("EnsureAddressGap() error = %v", err)
	}

	gaps, err := acct.GetMaxGap(context.Background())
	if err != nil {
		t.Fatalf("GetMaxGap() error = %v", err)
	}
	if _, ok := gaps["max_change_gap"]; !ok {
		t.Error("GetMaxGap() missing max_change_gap")
	}
	if _, ok := gaps["max_receiving_gap"]; !ok {
		t.Error("GetMaxGap() missing max_receiving_gap")
	}
}
