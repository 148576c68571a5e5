package gvm

import "testing"

// TestMemoryPartitionInvariant covers Testable Property 3: the region map
// stays disjoint and covers [0, total_size) through an allocate/split.
func TestMemoryPartitionInvariant(t *testing.T) {
	mm, err := NewMemoryManager(0x10000)
	assert(t, err == nil, "NewMemoryManager failed: %v", err)

	_, err = mm.Allocate(0, 0x4000, MemoryTypeData, 0, 0)
	assert(t, err == nil, "Allocate failed: %v", err)

	var total uint64
	for _, base := range mm.sortedBases() {
		total += mm.regions[base].MaximumSize
	}
	assert(t, total == mm.TotalSize(), "region map covers %#x bytes, want %#x", total, mm.TotalSize())
}

// TestFreeClearsCommitBitmap covers Testable Property 4.
func TestFreeClearsCommitBitmap(t *testing.T) {
	mm, err := NewMemoryManager(0x10000)
	assert(t, err == nil, "NewMemoryManager failed: %v", err)

	addr, err := mm.Allocate(0, 0x2000, MemoryTypeData, 0, 0)
	assert(t, err == nil, "Allocate failed: %v", err)
	assert(t, mm.IsCommitted(addr), "freshly allocated page should be committed")

	_, err = mm.Free(addr, 0)
	assert(t, err == nil, "Free failed: %v", err)
	assert(t, !mm.IsCommitted(addr), "freed page should be decommitted")
}

// TestAllocateFreeMergeRoundTrip implements S5.
func TestAllocateFreeMergeRoundTrip(t *testing.T) {
	mm, err := NewMemoryManager(0xA0000)
	assert(t, err == nil, "NewMemoryManager failed: %v", err)

	addrs := make([]uint64, 5)
	for i := range addrs {
		addr, err := mm.Allocate(0, 0x20000, MemoryTypeData, 0, 0)
		assert(t, err == nil, "allocate block %d failed: %v", i, err)
		addrs[i] = addr
	}
	for i, addr := range addrs {
		_, err := mm.Free(addr, 0)
		assert(t, err == nil, "free block %d failed: %v", i, err)
	}
	final, err := mm.Allocate(0, 0xA0000, MemoryTypeData, 0, 0)
	assert(t, err == nil, "final merged allocation failed: %v", err)
	assert(t, final == 0, "final allocation base got %#x, want 0", final)
}

func TestReadWriteRoundTrip(t *testing.T) {
	mm, err := NewMemoryManager(0x1000)
	assert(t, err == nil, "NewMemoryManager failed: %v", err)
	addr, err := mm.Allocate(0, 0x1000, MemoryTypeData, 0, 0)
	assert(t, err == nil, "Allocate failed: %v", err)

	_, err = mm.Write(addr, []byte{1, 2, 3, 4})
	assert(t, err == nil, "Write failed: %v", err)
	buf := make([]byte, 4)
	_, err = mm.Read(buf, addr)
	assert(t, err == nil, "Read failed: %v", err)
	assert(t, buf[0] == 1 && buf[3] == 4, "read back %v", buf)
}

func TestOutOfRangeAccessFails(t *testing.T) {
	mm, err := NewMemoryManager(0x1000)
	assert(t, err == nil, "NewMemoryManager failed: %v", err)
	_, err = mm.Write(0xFFFF, []byte{1})
	assert(t, err != nil, "write past the reserved range should fail")
}
