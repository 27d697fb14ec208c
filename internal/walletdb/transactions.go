package walletdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/klingon-exchange/walletcore/internal/walletdb/query"
)

// SaveTransactionIO atomically ingests a transaction as it relates to
// one account address: stores/updates the tx row, stores any new
// P2PKH outputs that pay txHash, links inputs that spend a TXO owned
// by address, and updates the address's history string. All four
// steps run inside a single *sql.Tx; an implementation that split them
// across transactions would break the idempotence guarantee callers
// depend on when the same transaction is seen more than once.
func (d *DB) SaveTransactionIO(ctx context.Context, mode SaveMode, tx IngestTx, height int64, isVerified bool, address string, txHash []byte, history string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sqlTx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	switch mode {
	case SaveInsert:
		if _, err := sqlTx.ExecContext(ctx,
			"INSERT INTO tx (txid, raw, height, is_verified) VALUES (?, ?, ?, ?)",
			tx.TxID, tx.Raw, height, isVerified,
		); err != nil {
			return fmt.Errorf("failed to insert tx: %w", err)
		}
	case SaveUpdate:
		if _, err := sqlTx.ExecContext(ctx,
			"UPDATE tx SET height = ?, is_verified = ? WHERE txid = ?",
			height, isVerified, tx.TxID,
		); err != nil {
			return fmt.Errorf("failed to update tx: %w", err)
		}
	}

	existing := map[int]bool{}
	rows, err := sqlTx.QueryContext(ctx, "SELECT position FROM txo WHERE txid = ?", tx.TxID)
	if err != nil {
		return fmt.Errorf("failed to query existing txos: %w", err)
	}
	for rows.Next() {
		var pos int
		if err := rows.Scan(&pos); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan existing txo position: %w", err)
		}
		existing[pos] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, out := range tx.Outputs {
		if existing[out.Position] {
			continue
		}
		switch {
		case out.IsPayPubKeyHash && bytesEqual(out.PubKeyHash, txHash):
			txoid := fmt.Sprintf("%s:%d", tx.TxID, out.Position)
			if _, err := sqlTx.ExecContext(ctx,
				"INSERT INTO txo (txid, txoid, address, position, amount, script) VALUES (?, ?, ?, ?, ?, ?)",
				tx.TxID, txoid, address, out.Position, out.Amount, out.Script,
			); err != nil {
				return fmt.Errorf("failed to insert txo: %w", err)
			}
		case out.IsPayScriptHash:
			d.log.Warn("save_transaction_io: pay script hash is not implemented, skipping output",
				"txid", tx.TxID, "position", out.Position)
		}
	}

	txoids := make([]string, len(tx.Inputs))
	for i, in := range tx.Inputs {
		txoids[i] = in.SpentTxoID
	}
	txoidToAddress := map[string]string{}
	if len(txoids) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(txoids)), ",")
		args := make([]any, len(txoids))
		for i, id := range txoids {
			args[i] = id
		}
		rows, err := sqlTx.QueryContext(ctx,
			"SELECT txoid, address FROM txo WHERE txoid IN ("+placeholders+")", args...)
		if err != nil {
			return fmt.Errorf("failed to look up input addresses: %w", err)
		}
		for rows.Next() {
			var txoid, addr string
			if err := rows.Scan(&txoid, &addr); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan input address: %w", err)
			}
			txoidToAddress[txoid] = addr
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}

	existingTxis := map[string]bool{}
	rows, err = sqlTx.QueryContext(ctx, "SELECT txoid FROM txi WHERE txid = ?", tx.TxID)
	if err != nil {
		return fmt.Errorf("failed to query existing txis: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan existing txi: %w", err)
		}
		existingTxis[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, in := range tx.Inputs {
		txoid := in.SpentTxoID
		newTxi := !existingTxis[txoid]
		addressMatches := txoidToAddress[txoid] == address
		if newTxi && addressMatches {
			if _, err := sqlTx.ExecContext(ctx,
				"INSERT INTO txi (txid, txoid, address) VALUES (?, ?, ?)",
				tx.TxID, txoid, address,
			); err != nil {
				return fmt.Errorf("failed to insert txi: %w", err)
			}
		}
	}

	usedTimes := strings.Count(history, ":") / 2
	if _, err := sqlTx.ExecContext(ctx,
		"UPDATE pubkey_address SET history = ?, used_times = ? WHERE address = ?",
		history, usedTimes, address,
	); err != nil {
		return fmt.Errorf("failed to update address history: %w", err)
	}

	return sqlTx.Commit()
}

func copyConstraints(constraints map[string]any) map[string]any {
	c := make(map[string]any, len(constraints)+1)
	for k, v := range constraints {
		c[k] = v
	}
	return c
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ReserveOutputs marks the given TXOs reserved (is_reserved = 1),
// preventing a concurrent Fund call from selecting them. The first
// caller to reserve a given set of outputs wins; a second call over
// overlapping TXOs still succeeds but simply re-marks them, so callers
// must check their own intended output set before trusting a reservation.
func (d *DB) ReserveOutputs(ctx context.Context, txoIDs []string) error {
	return d.setReserved(ctx, txoIDs, true)
}

// ReleaseOutputs marks the given TXOs unreserved, used when a funding
// attempt is abandoned instead of broadcast.
func (d *DB) ReleaseOutputs(ctx context.Context, txoIDs []string) error {
	return d.setReserved(ctx, txoIDs, false)
}

func (d *DB) setReserved(ctx context.Context, txoIDs []string, reserved bool) error {
	if len(txoIDs) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(txoIDs)), ",")
	args := make([]any, 0, len(txoIDs)+1)
	args = append(args, reserved)
	for _, id := range txoIDs {
		args = append(args, id)
	}
	_, err := d.conn.ExecContext(ctx,
		"UPDATE txo SET is_reserved = ? WHERE txoid IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("failed to set reservation: %w", err)
	}
	return nil
}

// RewindBlockchain is a best-effort stub, matching the original
// source's unimplemented rewind_blockchain: a correct reorg handler
// would delete transactions above_height and update the address
// histories that referenced them, but no caller in this subsystem's
// scope triggers a reorg yet.
func (d *DB) RewindBlockchain(ctx context.Context, aboveHeight int64) error {
	return nil
}

// GetTransaction returns (row, true, nil) if txid exists, or
// (TxRow{}, false, nil) if it does not - the Go shape of the original
// source's (None, None, False) tuple.
func (d *DB) GetTransaction(ctx context.Context, txid string) (TxRow, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.conn.QueryRowContext(ctx, "SELECT raw, height, is_verified FROM tx WHERE txid = ?", txid)
	var out TxRow
	out.TxID = txid
	err := row.Scan(&out.Raw, &out.Height, &out.IsVerified)
	if err == sql.ErrNoRows {
		return TxRow{}, false, nil
	}
	if err != nil {
		return TxRow{}, false, fmt.Errorf("failed to get transaction: %w", err)
	}
	return out, true, nil
}

// GetBalanceForAccount sums the amount of every unspent, unreserved
// TXO belonging to accountAddress (unless includeReserved is set),
// with additional caller-supplied constraints compiled by
// query.CompileConstraints.
func (d *DB) GetBalanceForAccount(ctx context.Context, accountAddress string, includeReserved bool, constraints map[string]any) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c := copyConstraints(constraints)
	if !includeReserved {
		c["is_reserved"] = 0
	}
	c["account"] = accountAddress
	extra, args := query.CompileConstraints(c)

	sqlStr := `
		SELECT SUM(amount)
		FROM txo
			JOIN tx ON tx.txid = txo.txid
			JOIN pubkey_address ON pubkey_address.address = txo.address
		WHERE
			pubkey_address.account = :account AND
			txoid NOT IN (SELECT txoid FROM txi)
	` + extra

	row := d.namedQueryRow(ctx, sqlStr, args)
	var total sql.NullInt64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return total.Int64, nil
}

// GetUTXOsForAccount returns every unspent, unreserved TXO belonging
// to accountAddress, with additional caller-supplied constraints.
func (d *DB) GetUTXOsForAccount(ctx context.Context, accountAddress string, constraints map[string]any) ([]TXO, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c := copyConstraints(constraints)
	c["account"] = accountAddress
	extra, args := query.CompileConstraints(c)

	sqlStr := `
		SELECT txid, txoid, amount, script, txo.position, txo.address
		FROM txo JOIN pubkey_address ON pubkey_address.address = txo.address
		WHERE account = :account AND txo.is_reserved = 0 AND txoid NOT IN (SELECT txoid FROM txi)
	` + extra

	rows, err := d.namedQuery(ctx, sqlStr, args)
	if err != nil {
		return nil, fmt.Errorf("failed to get utxos: %w", err)
	}
	defer rows.Close()

	var out []TXO
	for rows.Next() {
		var t TXO
		if err := rows.Scan(&t.TxID, &t.TxoID, &t.Amount, &t.Script, &t.Position, &t.Address); err != nil {
			return nil, fmt.Errorf("failed to scan utxo: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
