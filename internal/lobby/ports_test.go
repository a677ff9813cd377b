package lobby

import "testing"

func TestPortAllocatorScansForwardAndWraps(t *testing.T) {
	alloc := newPortAllocator("127.0.0.1", 20000, 20002)

	ln1, p1, err := alloc.openListener()
	if err != nil {
		t.Fatalf("openListener: %v", err)
	}
	defer ln1.Close()

	ln2, p2, err := alloc.openListener()
	if err != nil {
		t.Fatalf("openListener: %v", err)
	}
	defer ln2.Close()

	if p1 == p2 {
		t.Fatalf("expected two distinct ports, got %d twice", p1)
	}
	if p1 < 20000 || p1 > 20002 || p2 < 20000 || p2 > 20002 {
		t.Fatalf("ports out of range: %d, %d", p1, p2)
	}
}
