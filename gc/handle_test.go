package gc

import "testing"

func TestHandleclone(t *testing.T) {
	h := NewHeap("test", 1024*1024, nil)
	td := h.Declare("blob", 0, 8)

	a, _ := h.New(td)
	a.Setbytes([]byte("keep"))
	b := a.Clone()
	if x := h.Stats()["roots"].(int64); x != 2 {
		t.Errorf("expected %v, got %v", 2, x)
	}

	a.Release()
	h.GC() // clone keeps the object alive
	if x := string(b.Bytes()[:4]); x != "keep" {
		t.Errorf("expected %q, got %q", "keep", x)
	}

	b.Release()
	h.GC()
	if x := h.Stats()["alloc"].(int64); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	h.Release()
}

func TestHandlereleased(t *testing.T) {
	h := NewHeap("test", 1024*1024, nil)
	td := h.Declare("node", 1, 8)
	hd, _ := h.New(td)
	hd.Release()

	for name, fn := range map[string]func(){
		"bytes":   func() { hd.Bytes() },
		"setref":  func() { hd.Setref(0, nil) },
		"load":    func() { hd.Load(0) },
		"clone":   func() { hd.Clone() },
		"release": func() { hd.Release() },
	} {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%v: expected panic", name)
				}
			}()
			fn()
		}()
	}
	h.Release()
}

func TestHandleloadstore(t *testing.T) {
	h := NewHeap("test", 1024*1024, nil)
	td := h.Declare("node", 1, 8)

	a, _ := h.New(td)
	b, _ := h.New(td)
	a.Setref(0, b)

	// loaded handle references the same object
	c := a.Load(0)
	if c == nil {
		t.Fatalf("expected handle, got nil")
	}
	c.Setbytes([]byte("shared"))
	if x := string(b.Bytes()[:6]); x != "shared" {
		t.Errorf("expected %q, got %q", "shared", x)
	}
	if x := h.Stats()["roots"].(int64); x != 3 {
		t.Errorf("expected %v, got %v", 3, x)
	}
	c.Release()

	// nil clears the slot
	a.Setref(0, nil)
	if x := a.Load(0); x != nil {
		t.Errorf("expected nil, got %v", x)
	}

	// slot index out of range
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		a.Setref(1, b)
	}()

	// handles never cross heaps
	other := NewHeap("other", 1024*1024, nil)
	otd := other.Declare("node", 1, 8)
	ohd, _ := other.New(otd)
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		a.Setref(0, ohd)
	}()
	ohd.Release()
	other.Release()

	a.Release()
	b.Release()
	h.Release()
}
