package walletdb

// AddressRow is one row of pubkey_address. Columns not selected by a
// particular query (see GetAddresses) are left at their zero value;
// Columns records which fields the caller actually asked for, mirroring
// the original source's column-subset projection without Go needing a
// dynamic dict type.
type AddressRow struct {
	Account   string
	Chain     int
	Position  int
	Address   string
	Pubkey    []byte
	History   string
	UsedTimes int

	Columns []string
}

// TxRow is one row of tx.
type TxRow struct {
	TxID       string
	Raw        []byte
	Height     int64
	IsVerified bool
}

// TXO is one row of txo: a transaction output that may or may not have
// been spent (absence from txi means unspent).
type TXO struct {
	TxID       string
	TxoID      string
	Address    string
	Position   int
	Amount     int64
	Script     []byte
	IsReserved bool
}

// TXI is one row of txi: a transaction input spending a prior TXO.
type TXI struct {
	TxID    string
	TxoID   string
	Address string
}

// SaveMode selects whether SaveTransactionIO inserts a new tx row or
// updates an existing one's height/verification status, matching the
// original source's save_tx parameter ('insert' | 'update').
type SaveMode int

const (
	SaveInsert SaveMode = iota
	SaveUpdate
)

// Output is the minimal view of a transaction output SaveTransactionIO
// needs: enough to classify its script and store it if it pays this
// account's address.
type Output struct {
	Position      int
	Amount        int64
	Script        []byte
	IsPayPubKeyHash bool
	IsPayScriptHash bool
	PubKeyHash    []byte // populated only when IsPayPubKeyHash
}

// Input is the minimal view of a transaction input SaveTransactionIO
// needs: the TXO reference it spends.
type Input struct {
	SpentTxoID string
}

// IngestTx is the transaction shape SaveTransactionIO consumes, a Go
// analogue of the original source's tx.id/tx.raw/tx.outputs/tx.inputs.
type IngestTx struct {
	TxID    string
	Raw     []byte
	Outputs []Output
	Inputs  []Input
}
