package service

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Input-validation errors are the only failures the services return to callers.
var (
	ErrInvalidCurrencyCode = errors.New("currency code must be three letters")
	ErrInvalidAmount       = errors.New("amount must be a positive number")
	ErrInvalidQuery        = errors.New("invalid search query")
	ErrEmptyMessage        = errors.New("message must not be empty")
	ErrInvalidTiers        = errors.New("tier thresholds must be positive and non-decreasing")
)

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// NormalizeCurrencyCode upper-cases and validates an ISO 4217 style code
func NormalizeCurrencyCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !currencyCodePattern.MatchString(code) {
		return "", ErrInvalidCurrencyCode
	}
	return code, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
