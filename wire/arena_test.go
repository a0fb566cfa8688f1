package wire

import (
	"errors"
	"testing"
)

func TestArenaAlloc(t *testing.T) {
	arena := NewArena()
	defer arena.Release()

	a, err := arena.Alloc(16)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	if len(a) != 16 {
		t.Fatalf("alloc returned %d bytes, want 16", len(a))
	}
	for i, b := range a {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, b)
		}
	}

	// Allocations must not alias.
	b, err := arena.Alloc(16)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	copy(a, []byte("aaaaaaaaaaaaaaaa"))
	copy(b, []byte("bbbbbbbbbbbbbbbb"))
	if a[0] != 'a' || b[0] != 'b' {
		t.Error("allocations share backing memory")
	}

	if arena.Used() != 32 {
		t.Errorf("Used() = %d, want 32", arena.Used())
	}
}

func TestArenaLargeAlloc(t *testing.T) {
	arena := NewArena()
	defer arena.Release()

	buf, err := arena.Alloc(arenaSlabSize * 3)
	if err != nil {
		t.Fatalf("large alloc failed: %v", err)
	}
	if len(buf) != arenaSlabSize*3 {
		t.Fatalf("large alloc returned %d bytes", len(buf))
	}
}

func TestArenaBudget(t *testing.T) {
	arena := NewArenaWithBudget(10)
	defer arena.Release()

	if _, err := arena.Alloc(8); err != nil {
		t.Fatalf("alloc within budget failed: %v", err)
	}
	if _, err := arena.Alloc(8); !errors.Is(err, ErrArenaExhausted) {
		t.Fatalf("alloc past budget: got %v, want ErrArenaExhausted", err)
	}
}

func TestArenaRelease(t *testing.T) {
	arena := NewArena()
	if _, err := arena.Alloc(100); err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	arena.Release()
	if arena.Used() != 0 {
		t.Errorf("Used() after release = %d", arena.Used())
	}

	// The arena is reusable after release.
	if _, err := arena.Alloc(100); err != nil {
		t.Fatalf("alloc after release failed: %v", err)
	}
}

func TestDecodeArenaBudgetAborts(t *testing.T) {
	// The payload wants 3 bytes but the arena allows 2.
	arena := NewArenaWithBudget(2)
	defer arena.Release()

	_, err := DecodeMessage(sampleBytes, sampleDescriptor(), nil, arena)
	if !errors.Is(err, ErrArenaExhausted) {
		t.Fatalf("got %v, want ErrArenaExhausted", err)
	}
}
