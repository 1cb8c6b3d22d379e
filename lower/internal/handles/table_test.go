package handles

import (
	"sync"
	"testing"
)

func TestTable_Basic(t *testing.T) {
	tbl := New[string]()

	h := tbl.Insert("boom")
	if h == 0 {
		t.Fatal("expected non-zero handle")
	}

	v, ok := tbl.Get(h)
	if !ok || v != "boom" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	v, ok = tbl.Take(h)
	if !ok || v != "boom" {
		t.Fatalf("Take = %q, %v", v, ok)
	}

	if _, ok := tbl.Get(h); ok {
		t.Fatal("expected Get to fail after Take")
	}
	if _, ok := tbl.Take(h); ok {
		t.Fatal("expected second Take to fail")
	}
}

func TestTable_InvalidHandles(t *testing.T) {
	tbl := New[int]()
	tbl.Insert(1)

	for _, h := range []Handle{0, 2, 99} {
		if _, ok := tbl.Get(h); ok {
			t.Errorf("Get(%d) succeeded", h)
		}
		if _, ok := tbl.Take(h); ok {
			t.Errorf("Take(%d) succeeded", h)
		}
	}
}

func TestTable_Reuse(t *testing.T) {
	tbl := New[int]()
	a := tbl.Insert(1)
	b := tbl.Insert(2)
	tbl.Take(a)

	c := tbl.Insert(3)
	if c != a {
		t.Fatalf("expected handle %d to be reused, got %d", a, c)
	}
	if v, _ := tbl.Get(c); v != 3 {
		t.Fatalf("reused handle holds %d", v)
	}
	if v, _ := tbl.Get(b); v != 2 {
		t.Fatalf("handle %d holds %d", b, v)
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d", tbl.Len())
	}
}

func TestTable_Concurrent(t *testing.T) {
	tbl := New[int]()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := tbl.Insert(i)
			if v, ok := tbl.Take(h); !ok || v != i {
				t.Errorf("Take = %d, %v; want %d", v, ok, i)
			}
		}()
	}
	wg.Wait()

	if tbl.Len() != 0 {
		t.Fatalf("Len = %d after all takes", tbl.Len())
	}
}
