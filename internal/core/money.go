// Package core provides the domain types shared by every feature.
//
// This file contains amount normalization for ledger values, which arrive
// either as numbers or as display strings such as "¥1,200" or "1200円".
package core

import (
	"math"
	"strconv"
	"strings"
)

var amountDecorations = strings.NewReplacer(
	",", "",
	"，", "",
	"¥", "",
	"￥", "",
	"円", "",
	" ", "",
	"　", "",
)

// NormalizeAmount converts a stored ledger amount into whole yen.
//
// Integers pass through, floats truncate toward zero, and strings are
// stripped of separators and currency marks before parsing as a decimal.
// Anything else, including unparseable strings and NaN, yields 0.
//
// Examples:
//
//	NormalizeAmount(1200)       -> 1200
//	NormalizeAmount("¥1,200")   -> 1200
//	NormalizeAmount("1200.9円") -> 1200
//	NormalizeAmount("abc")      -> 0
//	NormalizeAmount(nil)        -> 0
func NormalizeAmount(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return truncate(n)
	case float32:
		return truncate(float64(n))
	case []byte:
		return parseAmountString(string(n))
	case string:
		return parseAmountString(n)
	default:
		return 0
	}
}

func parseAmountString(s string) int64 {
	s = amountDecorations.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return truncate(f)
}

func truncate(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0
	}
	return int64(f)
}
