package money_test

import (
	"testing"

	"github.com/Mindburn-Labs/pact/pkg/money"
)

func TestParseWhole(t *testing.T) {
	m, err := money.Parse("500")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.Micro != 500*money.MicroPerAlgo {
		t.Fatalf("expected 500 ALGO in micro, got %d", m.Micro)
	}
}

func TestParseFraction(t *testing.T) {
	m, err := money.Parse("0.5")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.Micro != 500_000 {
		t.Fatalf("expected 500000 micro, got %d", m.Micro)
	}
}

func TestParseWithUnit(t *testing.T) {
	m, err := money.Parse("500 ALGO")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m != money.FromAlgo(500) {
		t.Fatalf("expected 500 ALGO, got %s", m)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "-5", "1.2345678"} {
		if _, err := money.Parse(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestParseRejectsOverflow(t *testing.T) {
	// Whole parts past MaxInt64/MicroPerAlgo would wrap to a positive
	// garbage amount that passes IsPositive.
	for _, in := range []string{
		"20000000000000",
		"9223372036854.775808",
		"99999999999999999999",
	} {
		if _, err := money.Parse(in); err == nil {
			t.Errorf("expected overflow error for %q", in)
		}
	}

	// The largest representable amount still parses.
	m, err := money.Parse("9223372036854")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.Micro != 9_223_372_036_854*money.MicroPerAlgo {
		t.Fatalf("unexpected micro value %d", m.Micro)
	}
}

func TestArithmetic(t *testing.T) {
	a := money.FromAlgo(3)
	b := money.FromMicro(500_000)
	if got := a.Add(b).String(); got != "3.5" {
		t.Fatalf("Add: expected 3.5, got %s", got)
	}
	if got := a.Sub(b).String(); got != "2.5" {
		t.Fatalf("Sub: expected 2.5, got %s", got)
	}
	if got := b.Mul(4).String(); got != "2" {
		t.Fatalf("Mul: expected 2, got %s", got)
	}
}

func TestCmp(t *testing.T) {
	small := money.FromAlgo(1)
	big := money.FromAlgo(2)
	if small.Cmp(big) != -1 || big.Cmp(small) != 1 || small.Cmp(small) != 0 {
		t.Fatal("Cmp ordering broken")
	}
}

func TestString(t *testing.T) {
	cases := map[int64]string{
		0:             "0",
		1:             "0.000001",
		500_000:       "0.5",
		1_000_000:     "1",
		12_000_001:    "12.000001",
		-2_500_000:    "-2.5",
		500 * 1000000: "500",
	}
	for micro, want := range cases {
		if got := money.FromMicro(micro).String(); got != want {
			t.Errorf("String(%d): expected %s, got %s", micro, want, got)
		}
	}
}
