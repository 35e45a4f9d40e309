package idgen

import (
	"strings"
	"testing"
)

func TestNewShape(t *testing.T) {
	id := New()
	if len(id) != 36 || strings.Count(id, "-") != 4 {
		t.Errorf("id %q not UUID-shaped", id)
	}
}

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("txn_")
	if !strings.HasPrefix(id, "txn_") || len(id) != 4+24 {
		t.Errorf("id %q wrong shape", id)
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := WithPrefix("pred_")
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestHexLength(t *testing.T) {
	if got := Hex(8); len(got) != 16 {
		t.Errorf("Hex(8) length = %d, want 16", len(got))
	}
}
