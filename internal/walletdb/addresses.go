package walletdb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// AddressKey is one (position, address, pubkey) tuple to insert for an
// account/chain, matching the original add_keys' (position, pubkey)
// pairs where pubkey carries both its address and raw bytes.
type AddressKey struct {
	Position int
	Address  string
	PubKey   []byte
}

// AddKeys bulk-inserts newly generated addresses for an account chain
// (0 = receiving, 1 = change).
func (d *DB) AddKeys(ctx context.Context, account string, chain int, keys []AddressKey) error {
	if len(keys) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	placeholders := make([]string, len(keys))
	args := make([]any, 0, len(keys)*5)
	for i, k := range keys {
		placeholders[i] = "(?, ?, ?, ?, ?)"
		args = append(args, k.Address, account, chain, k.Position, k.PubKey)
	}
	sqlStr := "insert into pubkey_address (address, account, chain, position, pubkey) values " +
		strings.Join(placeholders, ", ")

	if _, err := d.conn.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to add keys: %w", err)
	}
	return nil
}

// SetAddressHistory records an address's serialized history string and
// recomputes used_times as history.count(':')/2, exactly as the
// original _set_address_history.
func (d *DB) SetAddressHistory(ctx context.Context, address, history string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	usedTimes := strings.Count(history, ":") / 2
	_, err := d.conn.ExecContext(ctx,
		"UPDATE pubkey_address SET history = ?, used_times = ? WHERE address = ?",
		history, usedTimes, address,
	)
	if err != nil {
		return fmt.Errorf("failed to set address history: %w", err)
	}
	return nil
}

// AddressFilter selects which pubkey_address rows GetAddresses
// returns. A nil pointer field means "don't filter on this column",
// matching the original's None-means-omit semantics.
type AddressFilter struct {
	Account      *string
	Chain        *int
	MaxUsedTimes *int
	OrderBy      string
	Limit        *int
}

// GetAddresses returns matching address rows. Columns pinned by the
// filter (account, chain) are omitted from the original source's
// projection and are zero-valued here too; Columns on each row lists
// what was actually selected, for callers that need the original's
// column-subset dict shape via GetAddressValues instead.
func (d *DB) GetAddresses(ctx context.Context, filter AddressFilter) ([]AddressRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	columns := []string{"account", "chain", "position", "address", "used_times"}
	var where []string
	args := map[string]any{}

	if filter.Account != nil {
		args["account"] = *filter.Account
		where = append(where, "account = :account")
		columns = remove(columns, "account")
	}
	if filter.Chain != nil {
		args["chain"] = *filter.Chain
		where = append(where, "chain = :chain")
		columns = remove(columns, "chain")
	}
	if filter.MaxUsedTimes != nil {
		args["used_times"] = *filter.MaxUsedTimes
		where = append(where, "used_times <= :used_times")
	}

	sqlStr := "SELECT " + strings.Join(columns, ", ") + " FROM pubkey_address"
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.OrderBy != "" {
		sqlStr += " ORDER BY " + filter.OrderBy
	}
	if filter.Limit != nil {
		sqlStr += " LIMIT " + strconv.Itoa(*filter.Limit)
	}

	rows, err := d.namedQuery(ctx, sqlStr, args)
	if err != nil {
		return nil, fmt.Errorf("failed to get addresses: %w", err)
	}
	defer rows.Close()

	var result []AddressRow
	for rows.Next() {
		scanTargets := make([]any, len(columns))
		row := AddressRow{Columns: columns}
		for i, col := range columns {
			scanTargets[i] = columnTarget(&row, col)
			_ = i
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to scan address row: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func columnTarget(row *AddressRow, col string) any {
	switch col {
	case "account":
		return &row.Account
	case "chain":
		return &row.Chain
	case "position":
		return &row.Position
	case "address":
		return &row.Address
	case "used_times":
		return &row.UsedTimes
	default:
		panic("walletdb: unknown address column " + col)
	}
}

func remove(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// GetAddress returns the full row for one address, or ok=false if it
// does not exist.
func (d *DB) GetAddress(ctx context.Context, address string) (AddressRow, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.conn.QueryRowContext(ctx,
		"SELECT address, account, chain, position, pubkey, history, used_times FROM pubkey_address WHERE address = ?",
		address,
	)
	var out AddressRow
	var history sql.NullString
	out.Columns = []string{"address", "account", "chain", "position", "pubkey", "history", "used_times"}
	err := row.Scan(&out.Address, &out.Account, &out.Chain, &out.Position, &out.Pubkey, &history, &out.UsedTimes)
	if err == sql.ErrNoRows {
		return AddressRow{}, false, nil
	}
	if err != nil {
		return AddressRow{}, false, fmt.Errorf("failed to get address: %w", err)
	}
	out.History = history.String
	return out, true, nil
}

// GetAddressValues reproduces the original's column-subset dict
// projection exactly, for callers that need that shape rather than a
// concrete AddressRow.
func (d *DB) GetAddressValues(ctx context.Context, filter AddressFilter) ([]map[string]any, error) {
	rows, err := d.GetAddresses(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m := map[string]any{}
		for _, col := range r.Columns {
			switch col {
			case "account":
				m[col] = r.Account
			case "chain":
				m[col] = r.Chain
			case "position":
				m[col] = r.Position
			case "address":
				m[col] = r.Address
			case "used_times":
				m[col] = r.UsedTimes
			}
		}
		out = append(out, m)
	}
	return out, nil
}
