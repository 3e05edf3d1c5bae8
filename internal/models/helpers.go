package models

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateID generates a prefixed unique ID
func GenerateID(prefix string) string {
	id := uuid.New().String()

	return fmt.Sprintf("%s-%s", prefix, id[:8])
}

// verificationCodeBytes gives 160 bits of entropy, enough that system-wide
// code collisions and guessing are both negligible.
const verificationCodeBytes = 20

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewVerificationCode returns an opaque single-use pickup code. Base32 keeps
// it typeable from a printed receipt when the QR scan fails.
func NewVerificationCode() string {
	buf := make([]byte, verificationCodeBytes)

	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails if the OS entropy source is broken
		panic(fmt.Sprintf("verification code generation failed: %v", err))
	}

	return codeEncoding.EncodeToString(buf)
}

// GetCurrentTime returns the current time in UTC
func GetCurrentTime() time.Time {
	return time.Now().UTC()
}
