package core

import (
	"math"
	"testing"
)

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		in  any
		out int64
	}{
		{1200, 1200},
		{int64(-300), -300},
		{1200.9, 1200},
		{-5.5, -5},
		{"1200", 1200},
		{"1,200", 1200},
		{"¥1,200", 1200},
		{"￥3,000", 3000},
		{"1200円", 1200},
		{" 1,234.56 円 ", 1234},
		{[]byte("980"), 980},
		{"", 0},
		{"abc", 0},
		{"1.2.3", 0},
		{nil, 0},
		{true, 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tc := range cases {
		got := NormalizeAmount(tc.in)
		if got != tc.out {
			t.Fatalf("%#v expected %d, got %d", tc.in, tc.out, got)
		}
	}
}
