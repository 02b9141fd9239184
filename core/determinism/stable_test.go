package determinism

import "testing"

func TestFingerprintStable(t *testing.T) {
	a := FingerprintOf([]byte("CLUSTER;APPRO\n"))
	b := FingerprintOf([]byte("CLUSTER;APPRO\n"))
	if a != b {
		t.Fatalf("same bytes produced %s and %s", a, b)
	}
	if a == FingerprintOf([]byte("CLUSTER,APPRO\n")) {
		t.Fatal("different bytes should not collide here")
	}
	if len(a.String()) != 16 {
		t.Errorf("expected 16 hex digits, got %q", a.String())
	}
}

func TestHasherSeparatesFields(t *testing.T) {
	h1 := NewHasher().String("ab").String("c").Sum()
	h2 := NewHasher().String("a").String("bc").Sum()
	if h1 == h2 {
		t.Fatal("field boundaries must affect the hash")
	}
	if h1 == (ContentHash{}) {
		t.Fatal("hash should not be zero")
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"NUTRICIA": 1, "LACTALIS": 2, "NESTLE": 3}
	keys := SortedKeys(m, func(a, b string) bool { return a < b })
	want := []string{"LACTALIS", "NESTLE", "NUTRICIA"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}
