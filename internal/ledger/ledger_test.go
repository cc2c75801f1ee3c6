package ledger

import (
	"testing"

	"github.com/paxosledger/bankchain/internal/block"
)

func TestNewBalancesStartsAtInitialFundsAndTotal500(t *testing.T) {
	b := NewBalances()
	for id := MinAccount; id <= MaxAccount; id++ {
		if got := b.Get(id); got != InitialFunds {
			t.Errorf("account %d = %d, want %d", id, got, InitialFunds)
		}
	}
	if total := b.Total(); total != 500 {
		t.Fatalf("total = %d, want 500", total)
	}
}

func TestApplyPreservesTotal(t *testing.T) {
	b := NewBalances()
	b.Apply(block.Transaction{From: 1, To: 2, Amount: 30})
	if got := b.Get(1); got != 70 {
		t.Errorf("account 1 = %d, want 70", got)
	}
	if got := b.Get(2); got != 130 {
		t.Errorf("account 2 = %d, want 130", got)
	}
	if total := b.Total(); total != 500 {
		t.Fatalf("total after apply = %d, want 500", total)
	}
}

func TestValidateTransferRejectsOutOfRangeAccount(t *testing.T) {
	b := NewBalances()
	if err := b.ValidateTransfer(0, 2, 10); err == nil {
		t.Error("expected error for out-of-range from account")
	}
	if err := b.ValidateTransfer(1, 6, 10); err == nil {
		t.Error("expected error for out-of-range to account")
	}
}

func TestValidateTransferRejectsNonPositiveAmount(t *testing.T) {
	b := NewBalances()
	if err := b.ValidateTransfer(1, 2, 0); err == nil {
		t.Error("expected error for zero amount")
	}
	if err := b.ValidateTransfer(1, 2, -5); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestValidateTransferRejectsInsufficientFunds(t *testing.T) {
	b := NewBalances()
	if err := b.ValidateTransfer(1, 2, 1000); err == nil {
		t.Error("expected error for insufficient funds")
	}
}

func TestReplaceAndSnapshotRoundTrip(t *testing.T) {
	b := NewBalances()
	snap := map[int]int64{1: 70, 2: 130, 3: 100, 4: 100, 5: 100}
	b.Replace(snap)
	got := b.Snapshot()
	for id, want := range snap {
		if got[id] != want {
			t.Errorf("account %d = %d, want %d", id, got[id], want)
		}
	}
}
