package walletdb

const createPubkeyAddressTable = `
create table if not exists pubkey_address (
	address text primary key,
	account text not null,
	chain integer not null,
	position integer not null,
	pubkey blob not null,
	history text,
	used_times integer not null default 0
);
`

const createTxTable = `
create table if not exists tx (
	txid text primary key,
	raw blob not null,
	height integer not null,
	is_verified boolean not null default 0
);
`

const createTxoTable = `
create table if not exists txo (
	txid text references tx,
	txoid text primary key,
	address text references pubkey_address,
	position integer not null,
	amount integer not null,
	script blob not null,
	is_reserved boolean not null default 0
);
`

const createTxiTable = `
create table if not exists txi (
	txid text references tx,
	txoid text references txo,
	address text references pubkey_address
);
`

const createTablesQuery = createTxTable + createPubkeyAddressTable + createTxoTable + createTxiTable
