package swapd

import (
	"crypto/rand"
	"fmt"
)

// swapIDLength is the length of generated swap identifiers.
const swapIDLength = 6

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz0123456789"

// generateID returns a random alphanumeric identifier.
func generateID() (string, error) {
	raw := make([]byte, swapIDLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}

	for i, b := range raw {
		raw[i] = idAlphabet[int(b)%len(idAlphabet)]
	}

	return string(raw), nil
}
