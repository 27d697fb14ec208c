package addrmgr

import (
	"context"
	"os"
	"testing"

	"github.com/klingon-exchange/walletcore/internal/chain"
	"github.com/klingon-exchange/walletcore/internal/keys"
	"github.com/klingon-exchange/walletcore/internal/walletdb"
)

func newTestDB(t *testing.T) *walletdb.DB {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "addrmgr-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	d, err := walletdb.Open(walletdb.Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func testAccountKeys(t *testing.T) (*keys.PrivateKey, *keys.PublicKey, string) {
	t.Helper()
	seed := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd")
	priv, err := keys.FromSeed(seed, chain.MustGet(chain.Mainnet))
	if err != nil {
		t.Fatalf("FromSeed() error = %v", err)
	}
	pub, err := priv.Neuter()
	if err != nil {
		t.Fatalf("Neuter() error = %v", err)
	}
	addr, err := pub.Address()
	if err != nil {
		t.Fatalf("Address() error = %v", err)
	}
	return priv, pub, addr
}

func TestDeterministicEnsureAddressGapFillsGap(t *testing.T) {
	db := newTestDB(t)
	priv, pub, addr := testAccountKeys(t)
	ctx := context.Background()

	mgr, err := NewDeterministic(db, addr, priv, pub, 0, 5, 2)
	if err != nil {
		t.Fatalf("NewDeterministic() error = %v", err)
	}

	newAddrs, err := mgr.EnsureAddressGap(ctx)
	if err != nil {
		t.Fatalf("EnsureAddressGap() error = %v", err)
	}
	if len(newAddrs) != 5 {
		t.Fatalf("len(newAddrs) = %d, want 5", len(newAddrs))
	}

	// A second call with nothing used should be a no-op.
	again, err := mgr.EnsureAddressGap(ctx)
	if err != nil {
		t.Fatalf("EnsureAddressGap() second call error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("len(again) = %d, want 0 (gap already full)", len(again))
	}
}

func TestDeterministicEnsureAddressGapAfterUse(t *testing.T) {
	db := newTestDB(t)
	priv, pub, addr := testAccountKeys(t)
	ctx := context.Background()

	mgr, err := NewDeterministic(db, addr, priv, pub, 0, 3, 2)
	if err != nil {
		t.Fatalf("NewDeterministic() error = %v", err)
	}
	if _, err := mgr.EnsureAddressGap(ctx); err != nil {
		t.Fatalf("EnsureAddressGap() error = %v", err)
	}

	records, err := mgr.GetAddressRecords(ctx, 0, false)
	if err != nil {
		t.Fatalf("GetAddressRecords() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	if err := db.SetAddressHistory(ctx, records[0].Address, "tx1:1:"); err != nil {
		t.Fatalf("SetAddressHistory() error = %v", err)
	}

	topUp, err := mgr.EnsureAddressGap(ctx)
	if err != nil {
		t.Fatalf("EnsureAddressGap() after use error = %v", err)
	}
	if len(topUp) != 1 {
		t.Errorf("len(topUp) = %d, want 1 (exactly the shortfall caused by the used address)", len(topUp))
	}
}

func TestDeterministicGetMaxGapExcludesTrailingRun(t *testing.T) {
	db := newTestDB(t)
	priv, pub, addr := testAccountKeys(t)
	ctx := context.Background()

	mgr, err := NewDeterministic(db, addr, priv, pub, 0, 10, 2)
	if err != nil {
		t.Fatalf("NewDeterministic() error = %v", err)
	}
	if _, err := mgr.EnsureAddressGap(ctx); err != nil {
		t.Fatalf("EnsureAddressGap() error = %v", err)
	}

	records, err := mgr.GetAddressRecords(ctx, 0, false)
	if err != nil {
		t.Fatalf("GetAddressRecords() error = %v", err)
	}
	// Mark position 2 used, leaving a closed gap of 2 (positions 0-1)
	// before it and a trailing run of unused addresses after it that
	// must NOT count as "the" max gap.
	var posTwoAddr string
	for _, r := range records {
		if r.Position == 2 {
			posTwoAddr = r.Address
		}
	}
	if posTwoAddr == "" {
		t.Fatal("could not find address at position 2")
	}
	if err := db.SetAddressHistory(ctx, posTwoAddr, "tx1:1:"); err != nil {
		t.Fatalf("SetAddressHistory() error = %v", err)
	}

	maxGap, err := mgr.GetMaxGap(ctx)
	if err != nil {
		t.Fatalf("GetMaxGap() error = %v", err)
	}
	if maxGap != 2 {
		t.Errorf("GetMaxGap() = %d, want 2 (closed gap only, trailing run excluded)", maxGap)
	}
}

func TestDeterministicGetPrivateKeyWatchOnlyFails(t *testing.T) {
	db := newTestDB(t)
	_, pub, addr := testAccountKeys(t)

	mgr, err := NewDeterministic(db, addr, nil, pub, 0, 5, 2)
	if err != nil {
		t.Fatalf("NewDeterministic() error = %v", err)
	}
	if _, err := mgr.GetPrivateKey(0); err == nil {
		t.Error("expected error getting private key from a watch-only manager")
	}
}

func TestSingleInsertsOnceThenNoop(t *testing.T) {
	db := newTestDB(t)
	priv, pub, addr := testAccountKeys(t)
	ctx := context.Background()

	mgr, err := NewSingle(db, addr, priv, pub)
	if err != nil {
		t.Fatalf("NewSingle() error = %v", err)
	}

	first, err := mgr.EnsureAddressGap(ctx)
	if err != nil {
		t.Fatalf("EnsureAddressGap() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("len(first) = %d, want 1", len(first))
	}

	second, err := mgr.EnsureAddressGap(ctx)
	if err != nil {
		t.Fatalf("EnsureAddressGap() second call error = %v", err)
	}
	if len(second) != 0 {
		t.Errorf("len(second) = %d, want 0 (idempotent insert)", len(second))
	}

	addrs, err := mgr.GetAddresses(ctx, 0, false)
	if err != nil {
		t.Fatalf("GetAddresses() error = %v", err)
	}
	if len(addrs) != 1 || addrs[0] != first[0] {
		t.Errorf("GetAddresses() = %v, want [%s]", addrs, first[0])
	}
}

func TestSingleGetMaxGapAlwaysZero(t *testing.T) {
	db := newTestDB(t)
	priv, pub, addr := testAccountKeys(t)

	mgr, err := NewSingle(db, addr, priv, pub)
	if err != nil {
		t.Fatalf("NewSingle() error = %v", err)
	}
	gap, err := mgr.GetMaxGap(context.Background())
	if err != nil {
		t.Fatalf("GetMaxGap() error = %v", err)
	}
	if gap != 0 {
		t.Errorf("GetMaxGap() = %d, want 0", gap)
	}
}

func TestFromDescriptorDefaultsToDeterministic(t *testing.T) {
	db := newTestDB(t)
	priv, pub, addr := testAccountKeys(t)

	recv, change, err := FromDescriptor(db, addr, priv, pub, Descriptor{})
	if err != nil {
		t.Fatalf("FromDescriptor() error = %v", err)
	}
	if recv.ChainNumber() != 0 {
		t.Errorf("receiving ChainNumber() = %d, want 0", recv.ChainNumber())
	}
	if change.ChainNumber() != 1 {
		t.Errorf("change ChainNumber() = %d, want 1", change.ChainNumber())
	}
	recvDict := recv.ToDictInstance()
	if recvDict["gap"] != 20 {
		t.Errorf("receiving gap = %v, want 20", recvDict["gap"])
	}
	changeDict := change.ToDictInstance()
	if changeDict["gap"] != 6 {
		t.Errorf("change gap = %v, want 6", changeDict["gap"])
	}
}

func TestFromDescriptorSingleSharesInstance(t *testing.T) {
	db := newTestDB(t)
	priv, pub, addr := testAccountKeys(t)

	recv, change, err := FromDescriptor(db, addr, priv, pub, Descriptor{Name: NameSingle})
	if err != nil {
		t.Fatalf("FromDescriptor() error = %v", err)
	}
	if recv != change {
		t.Error("single-address receiving and change managers should be the same instance")
	}
	if recv.ToDictInstance() != nil {
		t.Error("single-address ToDictInstance() should be nil")
	}
}
