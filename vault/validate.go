package vault

import (
	"unicode"
	"unicode/utf8"

	"github.com/credkeep/credkeep/crypto"
)

// Validation constants.
const (
	MaxNameLength     = 256
	MaxQuestionLength = 1024
	MaxSecretLength   = crypto.MaxSecretLength
)

func validateName(name, label string) error {
	if name == "" {
		return validationErrorf("%s must not be empty", label)
	}
	if len(name) > MaxNameLength {
		return validationErrorf("%s exceeds maximum length of %d", label, MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return validationErrorf("%s contains invalid UTF-8", label)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return validationErrorf("%s contains control character", label)
		}
	}
	return nil
}

// validateLevelCode checks a security level code. Credentials store the code
// sealed, so it is bounded by the secret length rather than the name length.
func validateLevelCode(code string) error {
	if err := validateName(code, "security level code"); err != nil {
		return err
	}
	if len(code) > MaxSecretLength {
		return validationErrorf("security level code exceeds maximum length of %d", MaxSecretLength)
	}
	if code == NoSecurityLevel {
		return validationErrorf("security level code %q is reserved", NoSecurityLevel)
	}
	return nil
}

func validateSecret(value, label string) error {
	if len(value) > MaxSecretLength {
		return validationErrorf("%s exceeds maximum length of %d", label, MaxSecretLength)
	}
	return nil
}

func validateQuestion(q string) error {
	if q == "" {
		return validationErrorf("question must not be empty")
	}
	if len(q) > MaxQuestionLength {
		return validationErrorf("question exceeds maximum length of %d", MaxQuestionLength)
	}
	if !utf8.ValidString(q) {
		return validationErrorf("question contains invalid UTF-8")
	}
	return nil
}

func validateMonths(months int) error {
	if months < 0 {
		return validationErrorf("months must not be negative")
	}
	if months > 1200 {
		return validationErrorf("months exceeds maximum of 1200")
	}
	return nil
}
