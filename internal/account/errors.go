package account

import "errors"

// Sentinel errors for the account's precondition violations. Checked
// with errors.Is at call sites.
var (
	ErrAlreadyEncrypted    = errors.New("account: key is already encrypted")
	ErrNotEncrypted        = errors.New("account: key is not encrypted")
	ErrEncryptedPrivateKey = errors.New("account: cannot get private key on encrypted account")
	ErrDifferentLedger     = errors.New("account: can only transfer between accounts of the same ledger")
	ErrNonPositiveAmount   = errors.New("account: an amount is required")
)
