package gvm

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MemoryInfo describes one region of the reserved guest address space.
type MemoryInfo struct {
	Base        uint64
	Size        uint64
	MaximumSize uint64
	Tag         uint64
	Type        MemoryType
}

// MemoryManager owns a reserved guest address range, its region map, and
// its page-commit bitmap. Per §5 it provides no internal locking; callers
// owning multiple contexts over one manager must serialise their calls.
//
// Go has no portable SEH/mprotect-style page-fault trap, so this
// implementation takes the Design Notes' sanctioned fallback: pages are
// committed eagerly at Allocate time rather than lazily on first write.
// The allocation bitmap, region map, and Free-decommit behaviour are
// otherwise identical to the lazy-commit model described in §4.D.
type MemoryManager struct {
	totalSize uint64
	backing   []byte
	regions   map[uint64]MemoryInfo
	bitmap    *Bitmap
}

func roundUpPage(n uint64) uint64 { return (n + PageSize - 1) / PageSize * PageSize }

// NewMemoryManager reserves totalSize bytes (must be page-aligned and
// nonzero) as one Freed region.
func NewMemoryManager(totalSize uint64) (*MemoryManager, error) {
	if totalSize == 0 {
		return nil, ErrZeroSize
	}
	if totalSize%PageSize != 0 {
		return nil, ErrMisaligned
	}
	mm := &MemoryManager{
		totalSize: totalSize,
		backing:   make([]byte, totalSize),
		regions: map[uint64]MemoryInfo{
			0: {Base: 0, Size: totalSize, MaximumSize: totalSize, Type: MemoryTypeFreed},
		},
		bitmap: NewBitmap(totalSize / PageSize),
	}
	return mm, nil
}

// TotalSize returns the reserved range's byte size.
func (mm *MemoryManager) TotalSize() uint64 { return mm.totalSize }

func (mm *MemoryManager) sortedBases() []uint64 {
	bases := maps.Keys(mm.regions)
	slices.Sort(bases)
	return bases
}

// Query locates the region containing addr.
func (mm *MemoryManager) Query(addr uint64) (MemoryInfo, bool) {
	bases := mm.sortedBases()
	idx, found := slices.BinarySearch(bases, addr)
	var candidate uint64
	switch {
	case found:
		candidate = bases[idx]
	case idx > 0:
		candidate = bases[idx-1]
	default:
		return MemoryInfo{}, false
	}
	info := mm.regions[candidate]
	if addr >= info.Base && addr < info.Base+info.MaximumSize {
		return info, true
	}
	return MemoryInfo{}, false
}

// Allocate reclaims a Freed span as typ. See §4.D.
func (mm *MemoryManager) Allocate(preferredAddr, size uint64, typ MemoryType, tag uint64, options AllocOptions) (uint64, error) {
	if size == 0 {
		return 0, ErrZeroSize
	}
	return mm.Reclaim(MemoryTypeFreed, preferredAddr, size, typ, tag, options|UsePreferredMemoryType)
}

// Free reclaims base's region back to Freed, decommits its pages, and
// merges with same-type neighbours. size == 0 frees the whole region.
func (mm *MemoryManager) Free(base, size uint64) (uint64, error) {
	if base%PageSize != 0 {
		return 0, ErrMisaligned
	}
	info, ok := mm.Query(base)
	if !ok || info.Base != base {
		return 0, ErrOutOfRange
	}
	if info.Type == MemoryTypeFreed {
		return 0, ErrAlreadyFreed
	}
	freeSize := size
	if freeSize == 0 {
		freeSize = info.Size
	}
	freedAddr, err := mm.Reclaim(info.Type, base, freeSize, MemoryTypeFreed, 0, UsePreferredAddress|UsePreferredMemoryType)
	if err != nil {
		return 0, err
	}
	mm.decommitRange(freedAddr, roundUpPage(freeSize))
	mm.mergeAt(freedAddr)
	return freeSize, nil
}

// Reclaim is the heart of the memory manager: it changes a span of
// sourceType memory into newType, splitting the containing region into
// at most three successor regions.
func (mm *MemoryManager) Reclaim(sourceType MemoryType, addr, size uint64, newType MemoryType, tag uint64, options AllocOptions) (uint64, error) {
	if size == 0 {
		return 0, ErrZeroSize
	}
	actualSize := roundUpPage(size)

	var info MemoryInfo
	var found bool

	if options&UsePreferredAddress != 0 {
		if addr%PageSize != 0 {
			return 0, ErrMisaligned
		}
		cand, ok := mm.Query(addr)
		if !ok || addr+actualSize > cand.Base+cand.MaximumSize {
			return 0, ErrOutOfRange
		}
		if options&UsePreferredMemoryType != 0 && cand.Type != sourceType {
			return 0, ErrTypeMismatch
		}
		info, found = cand, true
	} else {
		for _, b := range mm.sortedBases() {
			c := mm.regions[b]
			if options&UsePreferredMemoryType != 0 && c.Type != sourceType {
				continue
			}
			if c.MaximumSize >= actualSize {
				info, found, addr = c, true, c.Base
				break
			}
		}
	}

	if !found {
		return 0, ErrOutOfRange
	}
	if info.Type == newType {
		return 0, ErrTypeMismatch
	}

	pieces := splitRegion(info, addr, actualSize, newType, tag)
	delete(mm.regions, info.Base)
	for _, p := range pieces {
		mm.regions[p.Base] = p
	}

	if newType != MemoryTypeFreed {
		mm.commitRange(addr, actualSize)
	}
	return addr, nil
}

// splitRegion produces 1, 2, or 3 successor regions for a target span
// fully inside source, per §4.D's reclaim/split algorithm.
func splitRegion(source MemoryInfo, targetBase, targetSize uint64, newType MemoryType, tag uint64) []MemoryInfo {
	start, end := source.Base, source.Base+source.MaximumSize
	tStart, tEnd := targetBase, targetBase+targetSize
	target := MemoryInfo{Base: tStart, Size: targetSize, MaximumSize: targetSize, Type: newType, Tag: tag}

	switch {
	case tStart == start && tEnd == end:
		return []MemoryInfo{target}
	case tStart == start:
		suffix := MemoryInfo{Base: tEnd, Size: end - tEnd, MaximumSize: end - tEnd, Type: source.Type, Tag: source.Tag}
		return []MemoryInfo{target, suffix}
	case tEnd == end:
		prefix := MemoryInfo{Base: start, Size: tStart - start, MaximumSize: tStart - start, Type: source.Type, Tag: source.Tag}
		return []MemoryInfo{prefix, target}
	default:
		prefix := MemoryInfo{Base: start, Size: tStart - start, MaximumSize: tStart - start, Type: source.Type, Tag: source.Tag}
		suffix := MemoryInfo{Base: tEnd, Size: end - tEnd, MaximumSize: end - tEnd, Type: source.Type, Tag: source.Tag}
		return []MemoryInfo{prefix, target, suffix}
	}
}

// mergeAt repeatedly coalesces the region at addr with a physically
// contiguous same-type neighbour.
func (mm *MemoryManager) mergeAt(addr uint64) {
	for {
		cur, ok := mm.Query(addr)
		if !ok {
			return
		}
		bases := mm.sortedBases()
		idx := slices.Index(bases, cur.Base)
		if idx < 0 {
			return
		}

		if idx > 0 {
			prev := mm.regions[bases[idx-1]]
			if prev.Type == cur.Type && prev.Base+prev.MaximumSize == cur.Base {
				merged := MemoryInfo{Base: prev.Base, Size: prev.Size + cur.Size, MaximumSize: prev.MaximumSize + cur.MaximumSize, Type: cur.Type, Tag: prev.Tag}
				delete(mm.regions, cur.Base)
				mm.regions[merged.Base] = merged
				addr = merged.Base
				continue
			}
		}
		if idx+1 < len(bases) {
			next := mm.regions[bases[idx+1]]
			if next.Type == cur.Type && cur.Base+cur.MaximumSize == next.Base {
				merged := MemoryInfo{Base: cur.Base, Size: cur.Size + next.Size, MaximumSize: cur.MaximumSize + next.MaximumSize, Type: cur.Type, Tag: cur.Tag}
				delete(mm.regions, next.Base)
				mm.regions[merged.Base] = merged
				addr = merged.Base
				continue
			}
		}
		return
	}
}

func (mm *MemoryManager) pageRange(addr, size uint64) (start, count uint64) {
	start = addr / PageSize
	count = roundUpPage(size) / PageSize
	return
}

func (mm *MemoryManager) commitRange(addr, size uint64) {
	start, count := mm.pageRange(addr, size)
	if count > 0 {
		mm.bitmap.SetRange(start, count)
	}
}

func (mm *MemoryManager) decommitRange(addr, size uint64) {
	start, count := mm.pageRange(addr, size)
	if count > 0 {
		mm.bitmap.ClearRange(start, count)
	}
}

// IsCommitted reports whether the page containing addr is committed.
func (mm *MemoryManager) IsCommitted(addr uint64) bool {
	state, ok := mm.bitmap.Get(addr / PageSize)
	return ok && state
}

// HostAddress bounds-checks [addr, addr+size) against the reserved range
// and returns the backing slice view. size == 0 checks a single byte.
func (mm *MemoryManager) HostAddress(addr, size uint64) ([]byte, bool) {
	checkEnd := addr + size
	if size == 0 {
		checkEnd = addr + 1
	}
	if checkEnd < addr || checkEnd > mm.totalSize {
		return nil, false
	}
	return mm.backing[addr : addr+size], true
}

// Read copies len(dst) bytes from guest memory into dst.
func (mm *MemoryManager) Read(dst []byte, guestAddr uint64) (int, error) {
	src, ok := mm.HostAddress(guestAddr, uint64(len(dst)))
	if !ok {
		return 0, ErrOutOfRange
	}
	return copy(dst, src), nil
}

// Write copies data into guest memory at guestAddr.
func (mm *MemoryManager) Write(guestAddr uint64, data []byte) (int, error) {
	dst, ok := mm.HostAddress(guestAddr, uint64(len(data)))
	if !ok {
		return 0, ErrOutOfRange
	}
	return copy(dst, data), nil
}

// Fill writes size copies of value starting at guestAddr.
func (mm *MemoryManager) Fill(guestAddr uint64, size uint64, value byte) (int, error) {
	dst, ok := mm.HostAddress(guestAddr, size)
	if !ok {
		return 0, ErrOutOfRange
	}
	for i := range dst {
		dst[i] = value
	}
	return len(dst), nil
}
