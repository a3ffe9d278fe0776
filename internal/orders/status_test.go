package orders

import (
	"testing"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/cart"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusReady, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusReady, StatusCompleted, true},
		{StatusReady, StatusCancelled, false},
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{"Shipped", StatusPending, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestMergeLines(t *testing.T) {
	got := mergeLines([]cart.Line{
		{MedicineID: 3, Quantity: 1},
		{MedicineID: 1, Quantity: 2},
		{MedicineID: 3, Quantity: 4},
	})
	want := []ItemQty{{MedicineID: 3, Quantity: 5}, {MedicineID: 1, Quantity: 2}}
	if len(got) != len(want) {
		t.Fatalf("mergeLines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mergeLines = %v, want %v", got, want)
		}
	}
}
