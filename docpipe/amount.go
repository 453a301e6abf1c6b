package docpipe

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var errBadAmount = errors.New("not an amount")

// amountRe finds the first number-like run in a string.
var amountRe = regexp.MustCompile(`\d[\d.,]*`)

// moneyRe accepts bare numbers written with '.' or ',' separators.
var moneyRe = regexp.MustCompile(`^\d[\d.,]*$`)

// parseAmount reads prices written either way round:
// "$ 1.234,56", "1,234.56", "1.200", "12,5", "1200.5".
//
// When both separators appear the last one is the decimal mark. A single
// comma is a decimal mark. Dots followed by groups of exactly three digits
// are thousands separators; any other dot is a decimal point.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer("$", "", " ", "", " ", "").Replace(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".,")
	if s == "" {
		return decimal.Zero, errBadAmount
	}

	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if dotsAreThousands(s) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errBadAmount
	}
	return d, nil
}

// parseQuantity reads a recipe quantity. A dot or a single comma is always a
// decimal mark ("1.250 kg" is one and a quarter kilograms); when both appear
// the last one is.
func parseQuantity(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".,")
	if s == "" {
		return decimal.Zero, errBadAmount
	}
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errBadAmount
	}
	return d, nil
}

func dotsAreThousands(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts[0]) == 0 || len(parts[0]) > 3 || parts[0] == "0" {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

// looksLikeMoney reports whether a cell holds a price rather than a label.
func looksLikeMoney(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "$") {
		return amountRe.MatchString(s)
	}
	return moneyRe.MatchString(strings.ReplaceAll(s, " ", ""))
}
