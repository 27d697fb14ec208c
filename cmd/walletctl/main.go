// Command walletctl is a minimal CLI demonstrating the wallet core:
// generating an account, topping up its address gap, and reporting
// its balance. It has no network layer of its own
// - Broadcast is wired to a stub that logs what it would have sent,
// since block-header sync and P2P relay are out of this core's scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klingon-exchange/walletcore/internal/account"
	"github.com/klingon-exchange/walletcore/internal/chain"
	"github.com/klingon-exchange/walletcore/internal/config"
	"github.com/klingon-exchange/walletcore/internal/ledger"
	"github.com/klingon-exchange/walletcore/internal/mnemonic"
	"github.com/klingon-exchange/walletcore/internal/walletdb"
	"github.com/klingon-exchange/walletcore/pkg/logging"
	"github.com/klingon-exchange/walletcore/pkg/walletfmt"
)

var (
	version = "0.1.0-dev"
)

// memoryWallet is the minimal account.Wallet this CLI needs: a place
// to keep the accounts it creates in memory for the duration of one
// invocation.
type memoryWallet struct {
	accounts []*account.Account
}

func (w *memoryWallet) AddAccount(a *account.Account) {
	w.accounts = append(w.accounts, a)
}

// stubBroadcaster logs what it was given instead of relaying to a
// real network. A real deployment swaps this for a peer-relay or RPC
// client; that transport is out of scope here.
type stubBroadcaster struct {
	log *logging.Logger
}

func (b *stubBroadcaster) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	b.log.Info("stub broadcast", "bytes", len(rawTx), "hex", walletfmt.BytesToHex(rawTx))
	return "stub-" + time.Now().UTC().Format("20060102150405"), nil
}

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.walletcore", "Data directory")
		testnet     = flag.Bool("testnet", false, "Use testnet key/address parameters")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <command>\n\nCommands:\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "  generate   create a new account and print its address")
		fmt.Fprintln(os.Stderr, "  gap        top up the account's address gap")
		fmt.Fprintln(os.Stderr, "  balance    print the account's balance")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logging.New(&logging.Config{Level: *logLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("walletctl %s", version)
		os.Exit(0)
	}

	cmd := flag.Arg(0)
	if cmd == "" {
		flag.Usage()
		os.Exit(2)
	}

	effectiveDataDir := *dataDir
	if *testnet {
		effectiveDataDir = filepath.Join(*dataDir, "testnet")
	}

	cfg, err := config.Load(effectiveDataDir)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}
	if *testnet {
		cfg.Network = config.NetworkTestnet
	}

	network := chain.Mainnet
	if cfg.Network == config.NetworkTestnet {
		network = chain.Testnet
	}
	params := chain.MustGet(network)

	db, err := walletdb.Open(walletdb.Config{DataDir: cfg.Storage.DataDir})
	if err != nil {
		log.Fatal("failed to open wallet database", "error", err)
	}
	defer db.Close()

	led := ledger.New(string(network), db, params, &stubBroadcaster{log: log.Component("broadcast")})
	wallet := &memoryWallet{}
	var mnem mnemonic.Provider

	ctx := context.Background()

	switch cmd {
	case "generate":
		runGenerate(ctx, log, led, wallet, mnem, params)
	case "gap":
		runGap(ctx, log, led, wallet, mnem, params)
	case "balance":
		runBalance(ctx, log, led, wallet, mnem, params, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
}

func runGenerate(ctx context.Context, log *logging.Logger, led *ledger.Ledger, wallet account.Wallet, mnem mnemonic.Provider, params *chain.Params) {
	acct, err := account.Generate(led, wallet, mnem, params, "", nil)
	if err != nil {
		log.Fatal("failed to generate account", "error", err)
	}
	addr, err := acct.Address()
	if err != nil {
		log.Fatal("failed to derive address", "error", err)
	}
	log.Info("account generated", "name", acct.Name(), "address", addr)

	if _, err := acct.EnsureAddressGap(ctx); err != nil {
		log.Fatal("failed to fill initial address gap", "error", err)
	}
	log.Info("initial address gap filled")
}

func runGap(ctx context.Context, log *logging.Logger, led *ledger.Ledger, wallet account.Wallet, mnem mnemonic.Provider, params *chain.Params) {
	acct, err := account.Generate(led, wallet, mnem, params, "", nil)
	if err != nil {
		log.Fatal("failed to generate account", "error", err)
	}
	newAddrs, err := acct.EnsureAddressGap(ctx)
	if err != nil {
		log.Fatal("failed to ensure address gap", "error", err)
	}
	log.Info("address gap ensured", "new_addresses", len(newAddrs))
	for _, a := range newAddrs {
		fmt.Println(a)
	}
}

func runBalance(ctx context.Context, log *logging.Logger, led *ledger.Ledger, wallet account.Wallet, mnem mnemonic.Provider, params *chain.Params, cfg *config.Config) {
	acct, err := account.Generate(led, wallet, mnem, params, "", nil)
	if err != nil {
		log.Fatal("failed to generate account", "error", err)
	}
	balance, err := acct.GetBalance(ctx, 0, false, nil)
	if err != nil {
		log.Fatal("failed to get balance", "error", err)
	}
	fmt.Printf("%s BTC\n", walletfmt.SatoshisToBTC(uint64(balance)))
}
