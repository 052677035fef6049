package parser

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{name: "nil", in: nil, ok: false},
		{name: "empty", in: "", ok: false},
		{name: "whitespace", in: "   ", ok: false},
		{name: "float", in: 1234.5, want: 1234.5, ok: true},
		{name: "int", in: 42, want: 42, ok: true},
		{name: "int64", in: int64(-7), want: -7, ok: true},
		{name: "thousands separator", in: "1,234.50", want: 1234.5, ok: true},
		{name: "parentheses negative", in: "(1,234)", want: -1234, ok: true},
		{name: "percent", in: "12.5%", want: 0.125, ok: true},
		{name: "negative percent", in: "(12.5%)", want: -0.125, ok: true},
		{name: "inner spaces", in: " 1 234 567 ", want: 1234567, ok: true},
		{name: "scientific", in: "1.5E+3", want: 1500, ok: true},
		{name: "leading minus", in: "-3,000", want: -3000, ok: true},
		{name: "garbage", in: "abc", ok: false},
		{name: "dash", in: "-", ok: false},
		{name: "empty parens", in: "()", ok: false},
		{name: "nan text", in: "NaN", ok: false},
		{name: "nan float", in: math.NaN(), ok: false},
		{name: "inf float", in: math.Inf(1), ok: false},
		{name: "unsupported type", in: struct{}{}, ok: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseValue(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestParseNumberOrZero(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, ParseNumberOrZero("n/a"))
	assert.Equal(t, 0.0, ParseNumberOrZero(nil))
	assert.Equal(t, -50.0, ParseNumberOrZero("(50)"))
}
