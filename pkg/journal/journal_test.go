package journal

import (
	"testing"
)

func TestJournalAppend(t *testing.T) {
	j := New()
	seq, err := j.Append(KindDeposit, "ESCROW1", "+919999999999", 500_000_000, "TX1")
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Fatalf("expected seq 1, got %d", seq)
	}
	if j.Length() != 1 {
		t.Fatalf("expected length 1, got %d", j.Length())
	}
}

func TestJournalChainIntegrity(t *testing.T) {
	j := New()
	j.Append(KindDeposit, "ESCROW1", "+911111111111", 100, "TX1")
	j.Append(KindDeposit, "ESCROW1", "+912222222222", 100, "TX2")
	j.Append(KindDisburse, "ESCROW1", "+913333333333", 200, "TX3")

	ok, reason := j.Verify()
	if !ok {
		t.Fatalf("expected valid chain, got: %s", reason)
	}
}

func TestJournalGet(t *testing.T) {
	j := New()
	j.Append(KindDisburse, "ESCROW2", "+911111111111", 42, "TXA")

	entry, err := j.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Kind != KindDisburse {
		t.Fatalf("expected DISBURSE, got %s", entry.Kind)
	}
	if entry.AmountMicro != 42 {
		t.Fatalf("expected 42, got %d", entry.AmountMicro)
	}
}

func TestJournalGetNotFound(t *testing.T) {
	j := New()
	if _, err := j.Get(99); err == nil {
		t.Fatal("expected error for missing entry")
	}
}

func TestJournalHashChaining(t *testing.T) {
	j := New()
	if j.Head() != "genesis" {
		t.Fatal("expected genesis head")
	}
	j.Append(KindDeposit, "E", "a", 1, "T1")
	j.Append(KindDeposit, "E", "b", 2, "T2")

	e1, _ := j.Get(1)
	e2, _ := j.Get(2)
	if e2.PrevHash != e1.ContentHash {
		t.Fatal("second entry prev_hash should match first content_hash")
	}
	if j.Head() != e2.ContentHash {
		t.Fatal("head should be last content_hash")
	}
}

func TestJournalDetectsTamper(t *testing.T) {
	j := New()
	j.Append(KindDeposit, "E", "a", 1, "T1")
	j.Append(KindDeposit, "E", "b", 2, "T2")

	j.entries[0].AmountMicro = 9999
	ok, _ := j.Verify()
	if ok {
		t.Fatal("expected tampered chain to fail verification")
	}
}
