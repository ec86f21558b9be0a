package bufpool

import "testing"

func TestMallocFree(t *testing.T) {
	for i := 1; i < 1<<20; i += 1000 { // malloc 1B - 1MB, step 1000
		b := Malloc(i)
		if len(b) != i {
			t.Fatalf("Malloc(%d) returned len %d", i, len(b))
		}
		Free(b)
	}
}

func TestMallocZero(t *testing.T) {
	b := Malloc(0)
	if len(b) != 0 {
		t.Fatalf("Malloc(0) returned len %d", len(b))
	}
	Free(b) // must not panic on an empty, non-pooled slice
}

func TestFreeIgnoresForeignSlice(t *testing.T) {
	b := make([]byte, 4096)
	Free(b) // not pool-issued; must be a silent no-op, not a panic
}
