// Package ledger is the concrete account.Ledger: it wires a
// walletdb.DB, a header-height source, address-to-hash160 decoding,
// and a pluggable Broadcaster behind the one interface internal/account
// depends on.
package ledger

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/klingon-exchange/walletcore/internal/account"
	"github.com/klingon-exchange/walletcore/internal/chain"
	"github.com/klingon-exchange/walletcore/internal/keys"
	"github.com/klingon-exchange/walletcore/internal/txbuilder"
	"github.com/klingon-exchange/walletcore/internal/walletdb"
	"github.com/klingon-exchange/walletcore/pkg/logging"
)

// Broadcaster sends a raw signed transaction to the network. Swapped
// out in tests for a fake that records what it was given.
type Broadcaster interface {
	Broadcast(ctx context.Context, rawTx []byte) (txid string, err error)
}

// Ledger is the concrete account.Ledger for one Bitcoin-style UTXO
// chain. HeaderHeight is tracked as an in-process atomic counter; a
// real deployment updates it from a chain-tip follower, which is out
// of scope here (see the Non-goals on block-header sync).
type Ledger struct {
	id          string
	db          *walletdb.DB
	params      *chain.Params
	broadcaster Broadcaster
	txClass     account.TransactionClass
	log         *logging.Logger

	headerHeight atomic.Int64
}

// New builds a Ledger backed by db, identified by id (e.g. the network
// name), using broadcaster to relay signed transactions.
func New(id string, db *walletdb.DB, params *chain.Params, broadcaster Broadcaster) *Ledger {
	return &Ledger{
		id:          id,
		db:          db,
		params:      params,
		broadcaster: broadcaster,
		txClass:     txbuilder.New(params),
		log:         logging.Component("ledger"),
	}
}

// SetHeaderHeight updates the ledger's view of the chain tip. Called
// by whatever header-sync process this deployment wires in.
func (l *Ledger) SetHeaderHeight(height int64) {
	l.headerHeight.Store(height)
}

func (l *Ledger) HeaderHeight() int64 {
	return l.headerHeight.Load()
}

func (l *Ledger) DB() *walletdb.DB {
	return l.db
}

func (l *Ledger) AddressToHash160(address string) ([]byte, error) {
	return keys.AddressToHash160(address, l.params)
}

func (l *Ledger) ReserveOutputs(ctx context.Context, txos []walletdb.TXO) error {
	return l.db.ReserveOutputs(ctx, txoIDs(txos))
}

func (l *Ledger) ReleaseOutputs(ctx context.Context, txos []walletdb.TXO) error {
	return l.db.ReleaseOutputs(ctx, txoIDs(txos))
}

// Broadcast relays tx.Raw through the configured Broadcaster and logs
// the outcome with a correlation ID, since a broadcast failure after
// inputs were reserved is the one place a stuck reservation can
// silently linger.
func (l *Ledger) Broadcast(ctx context.Context, tx account.Transaction) error {
	correlationID := uuid.NewString()
	broadcastTxID, err := l.broadcaster.Broadcast(ctx, tx.Raw)
	if err != nil {
		l.log.Error("broadcast failed", "correlation_id", correlationID, "txid", tx.TxID, "error", err)
		return fmt.Errorf("failed to broadcast transaction %s: %w", tx.TxID, err)
	}
	l.log.Info("broadcast accepted", "correlation_id", correlationID, "txid", broadcastTxID)
	return nil
}

func (l *Ledger) GetID() string {
	return l.id
}

func (l *Ledger) TransactionClass() account.TransactionClass {
	return l.txClass
}

func txoIDs(txos []walletdb.TXO) []string {
	ids := make([]string, len(txos))
	for i, t := range txos {
		ids[i] = t.TxoID
	}
	return ids
}
