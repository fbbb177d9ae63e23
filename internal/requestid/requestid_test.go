package requestid

import (
	"context"
	"testing"
)

func TestWithFrom(t *testing.T) {
	ctx := With(context.Background(), "abc")
	if got := From(ctx); got != "abc" {
		t.Errorf("From = %q, want %q", got, "abc")
	}
	if got := From(context.Background()); got != "" {
		t.Errorf("From(empty) = %q, want empty", got)
	}
}

func TestNewUnique(t *testing.T) {
	a, b := New(), New()
	if a == "" || a == b {
		t.Errorf("New returned %q and %q, want distinct non-empty ids", a, b)
	}
}
