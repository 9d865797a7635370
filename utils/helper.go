package utils

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "PA"

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	if countryCode == "" {
		countryCode = CountryCode
	}
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}
	return nil
}

// FormatPhoneNumber returns the E164 form of a number that passed ValidatePhoneNumber.
func FormatPhoneNumber(phoneNumber, countryCode string) string {
	if countryCode == "" {
		countryCode = CountryCode
	}
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return phoneNumber
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewInt(v int) *int {
	return &v
}

func NewString(v string) *string {
	return &v
}

func NewDecimal(v decimal.Decimal) *decimal.Decimal {
	return &v
}

func NewFloat(v float64) *float64 {
	return &v
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

func IntPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	out := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SortedUniqueInts returns the distinct values of ids in ascending order.
func SortedUniqueInts(ids []int) []int {
	out := UniqueSlice(ids)
	sort.Ints(out)
	return out
}
