package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TraderAddressPrefix is the standard prefix for trader addresses
const TraderAddressPrefix = "0x"

// GenerateTraderAddress generates a random trader address
// Format: 0x + 40 random hex characters
func GenerateTraderAddress() (string, error) {
	bytes := make([]byte, 20)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return TraderAddressPrefix + hex.EncodeToString(bytes), nil
}

// IsTraderAddress checks if an address has the expected 0x-hex shape
func IsTraderAddress(address string) bool {
	if len(address) != 42 || address[:2] != TraderAddressPrefix {
		return false
	}
	for _, c := range address[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
