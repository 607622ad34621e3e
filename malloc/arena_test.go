package malloc

import "testing"

import s "github.com/bnclabs/gosettings"

import "github.com/bnclabs/goheap/api"

func TestNewarena(t *testing.T) {
	marena := NewArena(10*1024*1024, Defaultsettings())
	if x := len(marena.slabs); x != 19 {
		t.Errorf("expected %v, got %v", 19, x)
	}
	if x := len(marena.blocks); x != 0 {
		t.Errorf("expected no blocks before first alloc, got %v", x)
	}
	marena.Release()

	// panic cases
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		NewArena(1024, Defaultsettings()) // capacity below blocksize
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		NewArena(1024*1024, s.Settings{"maxchunk": int64(8192)})
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		marena.Alloc(100) // released arena
	}()
}

func TestArenaAlloc(t *testing.T) {
	marena := NewArena(1024*1024, Defaultsettings())
	addrs := make(map[int64]bool)
	for i := 0; i < 100; i++ {
		addr, err := marena.Alloc(100) // slab 128
		if err != nil {
			t.Fatalf("unexpected allocation failure %v", err)
		} else if addr < Baseaddress+Chunkoverhead {
			t.Fatalf("address %x below arena base", addr)
		} else if (addr % Alignment) != 0 {
			t.Fatalf("address %x unaligned", addr)
		} else if addrs[addr] {
			t.Fatalf("address %x handed out twice", addr)
		}
		addrs[addr] = true
		if x := marena.Chunksize(addr); x != 120 {
			t.Fatalf("expected %v, got %v", 120, x)
		}
		for _, byt := range marena.Bytes(addr, 120) {
			if byt != 0 {
				t.Fatalf("chunk %x not zeroed", addr)
			}
		}
	}
	if x := marena.Allocated(); x != 100*128 {
		t.Errorf("expected %v, got %v", 100*128, x)
	}
	if live, _ := marena.Validate(); live != 100*128 {
		t.Errorf("expected %v, got %v", 100*128, live)
	}
	capacity, heap, alloc, overhead := marena.Info()
	if capacity != 1024*1024 {
		t.Errorf("unexpected capacity %v", capacity)
	} else if heap != 4*4096 {
		t.Errorf("unexpected heap %v", heap)
	} else if alloc != 100*128 {
		t.Errorf("unexpected alloc %v", alloc)
	} else if overhead <= 0 {
		t.Errorf("unexpected overhead %v", overhead)
	}
	if slabs, uzs := marena.Utilization(); len(slabs) != 1 {
		t.Errorf("unexpected %v", len(slabs))
	} else if slabs[0] != 128 {
		t.Errorf("unexpected %v", slabs[0])
	} else if uzs[0] <= 0 {
		t.Errorf("unexpected %v", uzs[0])
	}
	marena.Release()
}

func TestArenaFree(t *testing.T) {
	marena := NewArena(1024*1024, Defaultsettings())
	a, _ := marena.Alloc(100)
	b, _ := marena.Alloc(100)
	if a == b {
		t.Errorf("%x repeated", a)
	}
	marena.Free(a)
	if x := marena.Allocated(); x != 128 {
		t.Errorf("expected %v, got %v", 128, x)
	}
	// freed chunk is reused, LIFO
	c, _ := marena.Alloc(100)
	if c != a {
		t.Errorf("expected %x, got %x", a, c)
	}
	marena.Validate()

	// panic cases
	marena.Free(b)
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		marena.Free(b) // double free
	}()
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic")
			}
		}()
		marena.Free(0) // nil address
	}()
	marena.Release()
}

func TestArenaCoalesce(t *testing.T) {
	marena := NewArena(1024*1024, Defaultsettings())
	addrs := make([]int64, 0)
	for i := 0; i < 8; i++ { // 8 x 512 fill one block exactly
		addr, _ := marena.Alloc(504)
		addrs = append(addrs, addr)
	}
	if _, heap, _, _ := marena.Info(); heap != 4096 {
		t.Fatalf("expected %v, got %v", 4096, heap)
	}
	for i := 0; i < 4; i++ { // adjacent quartet
		marena.Free(addrs[i])
	}
	marena.Coalesce()
	marena.Validate()
	// merged run serves a chunk bigger than any freed slab
	big, err := marena.Alloc(1000)
	if err != nil {
		t.Fatalf("unexpected allocation failure %v", err)
	} else if big != addrs[0] {
		t.Errorf("expected %x, got %x", addrs[0], big)
	}
	marena.Validate()

	// trailing free space retracts into the bump region, the split
	// remainder from the big chunk stays as the only hole
	marena.Free(addrs[7])
	marena.Coalesce()
	if _, freebytes := marena.Validate(); freebytes != 1024 {
		t.Errorf("expected %v, got %v", 1024, freebytes)
	}
	marena.Release()
}

func TestArenaOOM(t *testing.T) {
	marena := NewArena(4096, Defaultsettings())
	for i := 0; i < 8; i++ {
		if _, err := marena.Alloc(504); err != nil {
			t.Fatalf("unexpected allocation failure %v", err)
		}
	}
	if _, err := marena.Alloc(504); err != api.ErrorOutofMemory {
		t.Errorf("expected %v, got %v", api.ErrorOutofMemory, err)
	}
	if err := marena.Grow(4096); err != api.ErrorOutofMemory {
		t.Errorf("expected %v, got %v", api.ErrorOutofMemory, err)
	}
	// zero length ranges are legal even one past the last block
	if x := len(marena.Bytes(Baseaddress+4096, 0)); x != 0 {
		t.Errorf("expected empty slice, got %v bytes", x)
	}
	marena.Release()
}

func TestArenaGrow(t *testing.T) {
	setts := s.Settings{"growable": true}
	marena := NewArena(4096, setts)
	addrs := make([]int64, 0)
	for i := 0; i < 8; i++ {
		addr, _ := marena.Alloc(504)
		addrs = append(addrs, addr)
	}
	marena.Bytes(addrs[0], 504)[0] = 0xab
	if _, err := marena.Alloc(504); err != api.ErrorOutofMemory {
		t.Fatalf("expected %v, got %v", api.ErrorOutofMemory, err)
	}
	if err := marena.Grow(1); err != nil {
		t.Fatalf("unexpected growth failure %v", err)
	}
	addr, err := marena.Alloc(504)
	if err != nil {
		t.Fatalf("unexpected allocation failure %v", err)
	} else if addr < Baseaddress+4096 {
		t.Errorf("expected growth block, got %x", addr)
	}
	// growth never moves existing blocks
	if x := marena.Bytes(addrs[0], 504)[0]; x != 0xab {
		t.Errorf("expected %v, got %v", 0xab, x)
	}
	marena.Validate()
	marena.Release()
}

func TestArenaWalk(t *testing.T) {
	marena := NewArena(1024*1024, Defaultsettings())
	a, _ := marena.Alloc(24)
	b, _ := marena.Alloc(100)
	c, _ := marena.Alloc(504)
	marena.Free(b)

	addrs, frees := make([]int64, 0), make([]bool, 0)
	marena.Walk(func(addr, size int64, free bool) bool {
		addrs, frees = append(addrs, addr), append(frees, free)
		return true
	})
	if x := len(addrs); x != 3 {
		t.Fatalf("expected %v chunks, got %v", 3, x)
	}
	if addrs[0] != a || addrs[1] != b || addrs[2] != c {
		t.Errorf("walk out of address order: %v", addrs)
	}
	if frees[0] || frees[1] == false || frees[2] {
		t.Errorf("unexpected free flags %v", frees)
	}

	if marena.Known(a) == false {
		t.Errorf("expected %x known", a)
	}
	if marena.Known(b) {
		t.Errorf("freed %x cannot be known", b)
	}
	if marena.Known(a + 8) {
		t.Errorf("mid chunk address cannot be known")
	}
	if marena.Known(12345) {
		t.Errorf("unaligned address cannot be known")
	}
	marena.Release()
}

func BenchmarkArenaAlloc(b *testing.B) {
	marena := NewArena(1024*1024, Defaultsettings())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addr, _ := marena.Alloc(96)
		marena.Free(addr)
	}
	b.StopTimer()
	marena.Release()
}
