package domain

import (
	"errors"
	"testing"
	"time"
)

func TestScope_Unrestricted(t *testing.T) {
	s := AllProducts()
	if s.Restricted() || s.Empty() {
		t.Fatal("zero scope must be unrestricted and non-empty")
	}
	if !s.Contains("anything") {
		t.Fatal("unrestricted scope contains every product")
	}
	if s.IDs() != nil {
		t.Fatal("unrestricted scope has no id list")
	}
	if s.Signature() != scopeSignatureAll {
		t.Fatalf("unexpected signature %q", s.Signature())
	}
}

func TestScope_RestrictToDedupesAndKeepsOrder(t *testing.T) {
	s := RestrictTo("b", "a", "", "b", "c")
	got := s.IDs()
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if s.Contains("z") {
		t.Fatal("restricted scope must not contain foreign ids")
	}
}

func TestScope_EmptyRestricted(t *testing.T) {
	s := RestrictTo()
	if !s.Restricted() || !s.Empty() {
		t.Fatal("RestrictTo() must produce an empty restricted scope")
	}
	if s.Contains("a") {
		t.Fatal("empty scope contains nothing")
	}
}

func TestScope_SignatureIgnoresOrder(t *testing.T) {
	a := RestrictTo("p1", "p2", "p3")
	b := RestrictTo("p3", "p1", "p2")
	if a.Signature() != b.Signature() {
		t.Fatal("signature must not depend on id order")
	}
	if a.Signature() == RestrictTo("p1", "p2").Signature() {
		t.Fatal("different sets must have different signatures")
	}
}

func TestOrderLineValidate(t *testing.T) {
	valid := OrderLine{ID: "l1", ProductID: "p1", BuyerID: "u1", Quantity: 1, PurchasedAt: time.Now()}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	broken := []OrderLine{
		{BuyerID: "u1", Quantity: 1, PurchasedAt: time.Now()},
		{ProductID: "p1", Quantity: 1, PurchasedAt: time.Now()},
		{ProductID: "p1", BuyerID: "u1", Quantity: 0, PurchasedAt: time.Now()},
		{ProductID: "p1", BuyerID: "u1", Quantity: 1},
	}
	for i, line := range broken {
		if err := line.Validate(); !errors.Is(err, ErrInvalidOrderLine) {
			t.Fatalf("case %d: expected ErrInvalidOrderLine, got %v", i, err)
		}
	}
}
