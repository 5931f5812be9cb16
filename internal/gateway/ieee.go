package gateway

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// NormalizeIEEE accepts "DD:DD:DD:DD:DD:DD:DD:DD", "0xDDDDDDDDDDDDDDDD" or
// "DDDDDDDDDDDDDDDD" and returns the 16-digit upper-case form used as key.
func NormalizeIEEE(s string) (string, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.ReplaceAll(s, ":", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("parse ieee address: %w", err)
	}
	if len(b) != 8 {
		return "", fmt.Errorf("ieee address must be 8 bytes, got %d", len(b))
	}
	return fmt.Sprintf("%016X", b), nil
}
