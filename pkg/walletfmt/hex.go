package walletfmt

import (
	"encoding/hex"
	"strings"
)

// HexToBytes converts a hex string (with or without 0x prefix) to
// bytes.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// BytesToHex converts bytes to a hex string with a 0x prefix, the
// shape walletctl's stub broadcaster logs raw transactions in.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
