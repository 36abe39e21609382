package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// pairingAlphabet skips characters that are easy to misread (0/O, 1/I)
const pairingAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GeneratePairingCode generates a cryptographically secure 8-character
// code, formatted the way WhatsApp shows it ("ABCD-EFGH").
func GeneratePairingCode() (string, error) {
	code, err := randomString(pairingAlphabet, 8)
	if err != nil {
		return "", err
	}
	return code[:4] + "-" + code[4:], nil
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// GenerateSecureOTP generates a cryptographically secure 6-digit code
func GenerateSecureOTP() (string, error) {
	return randomString("0123456789", 6)
}
