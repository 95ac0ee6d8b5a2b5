package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrValidationFailed is the root of all field validation errors.
var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxUsernameLength    = 50
	MaxSymbolLength      = 10
	MaxChatMessageLength = 4096
	MaxSessionNameLength = 100
)

// Tickers: letters, digits, dots and dashes, e.g. AAPL, BRK.B, BTC-USD.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateSymbol checks that a normalized (uppercase) ticker is well-formed.
func ValidateSymbol(symbol string) error {
	if err := ValidateStringNotEmpty(symbol, "Symbol"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(symbol, MaxSymbolLength, "Symbol"); err != nil {
		return err
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: Symbol ('%s') is not a valid ticker", ErrValidationFailed, symbol)
	}
	return nil
}
