package token

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// EncodedLength is the exact hex length a presented token must have. Checked
// before any decryption attempt so malformed input fails fast.
const EncodedLength = 96

// Validator checks presented credential tokens. A token is the hex AES-CBC
// ciphertext of "<secret>.<date>"; it is accepted when the secret equals the
// configured one and the date is today (UTC). Expiry is enforced for real
// here: the reference behavior of comparing the embedded date against itself
// is not reproduced.
type Validator struct {
	cipher *Cipher
	secret string
	logger *slog.Logger
}

// NewValidator decrypts the configured secret once and keeps the plaintext
// for comparisons.
func NewValidator(c *Cipher, encryptedSecret string, logger *slog.Logger) (*Validator, error) {
	secret, err := c.Decrypt(encryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("decrypting configured secret: %w", err)
	}
	return &Validator{
		cipher: c,
		secret: secret,
		logger: logger.With(slog.String("component", "token_validator")),
	}, nil
}

// Validate reports whether the presented token is acceptable. It fails
// closed: any malformed, undecryptable or mismatching token is rejected, and
// nothing escapes past this boundary.
func (v *Validator) Validate(token string) bool {
	if token == "" {
		v.logger.Warn("Rejected empty credential token")
		return false
	}
	if len(token) != EncodedLength {
		v.logger.Warn("Rejected credential token of unexpected length", slog.Int("length", len(token)))
		return false
	}

	plain, err := v.cipher.Decrypt(token)
	if err != nil {
		v.logger.Warn("Rejected undecryptable credential token", slog.Any("error", err))
		return false
	}

	parts := strings.Split(plain, ".")
	if len(parts) != 2 {
		v.logger.Warn("Rejected credential token with malformed payload", slog.Int("parts", len(parts)))
		return false
	}
	secret, date := parts[0], parts[1]

	if secret != v.secret {
		v.logger.Warn("Rejected credential token with wrong secret")
		return false
	}
	today := time.Now().UTC().Format("2006-01-02")
	if date != today {
		v.logger.Warn("Rejected expired credential token", slog.String("date", date))
		return false
	}

	v.logger.Debug("Accepted credential token")
	return true
}
