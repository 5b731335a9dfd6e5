package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// voucherCodePrefix is the prefix used for generated voucher codes.
const voucherCodePrefix = "CL"

// voucherCodeGroups is the number of four-character groups after the prefix.
const voucherCodeGroups = 4

// GenerateVoucherCode creates a new random voucher code such as CL-1A2B-3C4D-5E6F-7A8B.
func GenerateVoucherCode() (string, error) {
	secret, err := GenerateRandomString(voucherCodeGroups * 4)
	if err != nil {
		return "", fmt.Errorf("generate voucher code: %w", err)
	}
	secret = strings.ToUpper(secret)
	parts := make([]string, 0, voucherCodeGroups+1)
	parts = append(parts, voucherCodePrefix)
	for i := 0; i < voucherCodeGroups; i++ {
		parts = append(parts, secret[i*4:(i+1)*4])
	}
	return strings.Join(parts, "-"), nil
}

// GenerateRandomString returns a hex-encoded random string of the given length.
func GenerateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", fmt.Errorf("generate random string: %w", err)
	}
	return hex.EncodeToString(bytes)[:length], nil
}
