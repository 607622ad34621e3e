package gc

import "testing"

import s "github.com/bnclabs/gosettings"

func TestNewheap(t *testing.T) {
	h := NewHeap("test", 1024*1024, s.Settings{"compact": false})
	stats := h.Stats()
	if x := stats["capacity"].(int64); x != 1024*1024 {
		t.Errorf("expected %v, got %v", 1024*1024, x)
	} else if x := stats["alloc"].(int64); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	} else if x := stats["roots"].(int64); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	} else if x := stats["ngc"].(int64); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	h.Validate()
	h.Release()

	// operations on a released heap panic
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		h.GC()
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		h.Declare("late", 0, 8)
	}()
}

func TestHeapDeclare(t *testing.T) {
	h := NewHeap("test", 1024*1024, nil)
	td := h.Declare("node", 2, 24)
	if td.Name() != "node" {
		t.Errorf("unexpected %v", td.Name())
	} else if td.Numrefs() != 2 {
		t.Errorf("unexpected %v", td.Numrefs())
	} else if td.Datasize() != 24 {
		t.Errorf("unexpected %v", td.Datasize())
	}
	if x := h.Stats()["types"].(int64); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	}

	// panic cases
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		h.Declare("node", 1, 8) // duplicate name
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		h.Declare("huge", 0, 5000) // exceeds maxchunk
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		h.Declare("bad", -1, 8)
	}()
	h.Release()
}

func TestHeapNew(t *testing.T) {
	h := NewHeap("test", 1024*1024, nil)
	td := h.Declare("node", 2, 24)
	hd, err := h.New(td)
	if err != nil {
		t.Fatalf("unexpected allocation failure %v", err)
	}
	if hd.Descriptor() != td {
		t.Errorf("handle carries wrong descriptor")
	}
	// slots start nil, data zeroed
	if x := hd.Load(0); x != nil {
		t.Errorf("expected nil slot, got %v", x)
	}
	data := hd.Bytes()
	if len(data) != 24 {
		t.Fatalf("expected %v, got %v", 24, len(data))
	}
	for _, byt := range data {
		if byt != 0 {
			t.Fatalf("data area not zeroed")
		}
	}
	if x := h.Stats()["roots"].(int64); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	}
	h.Validate()

	// foreign descriptor panics
	other := NewHeap("other", 1024*1024, nil)
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		other.New(td)
	}()
	other.Release()

	hd.Release()
	h.Release()
}

func TestHeapSetbytes(t *testing.T) {
	h := NewHeap("test", 1024*1024, nil)
	td := h.Declare("blob", 0, 32)
	hd, _ := h.New(td)
	hd.Setbytes([]byte("hello world"))
	if x := string(hd.Bytes()[:11]); x != "hello world" {
		t.Errorf("expected %q, got %q", "hello world", x)
	}
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		hd.Setbytes(make([]byte, 33)) // exceeds data area
	}()
	hd.Release()
	h.Release()
}

func TestHeapBlocktail(t *testing.T) {
	h := NewHeap("test", 4096, nil)
	td := h.Declare("node", 1, 0) // 32 byte chunks, 128 tile a block exactly

	hds := make([]*Handle, 0)
	for i := 0; i < 128; i++ {
		hd, err := h.New(td)
		if err != nil {
			t.Fatalf("unexpected allocation failure %v", err)
		}
		hds = append(hds, hd)
	}
	// the last object's zero byte data area ends flush with the block
	last := hds[127]
	if x := len(last.Bytes()); x != 0 {
		t.Errorf("expected empty data area, got %v bytes", x)
	}
	last.Setbytes(nil)
	last.Setref(0, hds[0])
	h.GC()
	h.Validate()

	for _, hd := range hds {
		hd.Release()
	}
	h.Release()
}

func TestHeapEmptytype(t *testing.T) {
	h := NewHeap("test", 1024*1024, nil)
	td := h.Declare("empty", 0, 0)
	hd, err := h.New(td)
	if err != nil {
		t.Fatalf("unexpected allocation failure %v", err)
	}
	if x := len(hd.Bytes()); x != 0 {
		t.Errorf("expected empty data area, got %v bytes", x)
	}
	h.GC()
	h.Validate()
	hd.Release()
	h.Release()
}

func BenchmarkHeapnew(b *testing.B) {
	h := NewHeap("bench", 64*1024*1024, nil)
	td := h.Declare("node", 1, 32)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hd, err := h.New(td)
		if err != nil {
			b.Fatalf("%v", err)
		}
		hd.Release()
	}
	b.StopTimer()
	h.Release()
}

func BenchmarkMarksweep(b *testing.B) {
	h := NewHeap("bench", 64*1024*1024, nil)
	td := h.Declare("node", 1, 32)
	head, _ := h.New(td)
	prev := head.Clone()
	for i := 0; i < 1000; i++ {
		cur, err := h.New(td)
		if err != nil {
			b.Fatalf("%v", err)
		}
		prev.Setref(0, cur)
		prev.Release()
		prev = cur
	}
	prev.Release()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.GC()
	}
	b.StopTimer()
	h.Release()
}
