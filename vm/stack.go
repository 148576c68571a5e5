package gvm

import "encoding/binary"

// VMStack is the aligned, downward-growing data-area used for the value
// stack, the shadow (call) stack, and the argument/local-variable tables.
// offset == size is empty; offset == 0 is full. See §4.E.
type VMStack struct {
	Buf       []byte
	Alignment uint32
	Offset    uint32
}

func isPowerOfTwo(v uint32) bool { return v != 0 && v&(v-1) == 0 }

// NewVMStack allocates a stack of the given byte size and alignment.
// alignment must be a power of two in {1,2,4,8} and size a multiple of it.
func NewVMStack(size, alignment uint32) (*VMStack, error) {
	if alignment == 0 || alignment > 8 || !isPowerOfTwo(alignment) {
		return nil, ErrMisaligned
	}
	if size%alignment != 0 {
		return nil, ErrMisaligned
	}
	return &VMStack{Buf: make([]byte, size), Alignment: alignment, Offset: size}, nil
}

// Size returns the total byte capacity of the stack.
func (s *VMStack) Size() uint32 { return uint32(len(s.Buf)) }

// TopOffset returns the current cursor.
func (s *VMStack) TopOffset() uint32 { return s.Offset }

func roundUp(n, align uint32) uint32 { return (n + align - 1) / align * align }

func (s *VMStack) isValidOffset(off uint32, atTop bool) bool {
	if off < s.Size() {
		return true
	}
	return atTop && off == s.Size()
}

// SetTopOffset moves the cursor directly, used to restore a saved frame
// pointer. Rejects any offset outside [0, size].
func (s *VMStack) SetTopOffset(off uint32) bool {
	if !s.isValidOffset(off, true) {
		return false
	}
	s.Offset = off
	return true
}

// SanityCheck validates the stack-alignment invariant (Testable Property 1).
func (s *VMStack) SanityCheck() bool {
	if !isPowerOfTwo(s.Alignment) {
		return false
	}
	if s.Size()%s.Alignment != 0 {
		return false
	}
	if s.Offset%s.Alignment != 0 {
		return false
	}
	return s.Offset <= s.Size()
}

func (s *VMStack) reserve(n uint32) (uint32, bool) {
	aligned := roundUp(n, s.Alignment)
	if aligned > s.Offset {
		return 0, false
	}
	return s.Offset - aligned, true
}

// Reserve moves the cursor down by round_up(n, alignment) bytes without
// writing anything, returning the new top offset. Used by Arg/Var.
func (s *VMStack) Reserve(n uint32) (offset uint32, ok bool) {
	newOffset, ok := s.reserve(n)
	if !ok {
		return 0, false
	}
	s.Offset = newOffset
	return newOffset, true
}

// PushBytes reserves round_up(len(data), alignment) bytes and copies data
// into the low end of the reservation.
func (s *VMStack) PushBytes(data []byte) bool {
	newOffset, ok := s.reserve(uint32(len(data)))
	if !ok {
		return false
	}
	copy(s.Buf[newOffset:], data)
	s.Offset = newOffset
	return true
}

// PopBytes pops round_up(n, alignment) bytes and returns the first n of
// them.
func (s *VMStack) PopBytes(n uint32) ([]byte, bool) {
	aligned := roundUp(n, s.Alignment)
	end := s.Offset + aligned
	if end < s.Offset || end > s.Size() {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, s.Buf[s.Offset:s.Offset+n])
	s.Offset = end
	return out, true
}

// PeekBytes reads n bytes from the top without moving the cursor.
func (s *VMStack) PeekBytes(n uint32) ([]byte, bool) {
	if n > s.Size()-s.Offset {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, s.Buf[s.Offset:s.Offset+n])
	return out, true
}

// ReadAt reads n bytes at an absolute offset, independent of the cursor.
func (s *VMStack) ReadAt(offset, n uint32) ([]byte, bool) {
	if n == 0 {
		return nil, offset <= s.Size()
	}
	end := offset + n
	if end < offset || end > s.Size() {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, s.Buf[offset:end])
	return out, true
}

// WriteAt writes data at an absolute offset, independent of the cursor.
func (s *VMStack) WriteAt(offset uint32, data []byte) bool {
	n := uint32(len(data))
	end := offset + n
	if end < offset || end > s.Size() {
		return false
	}
	copy(s.Buf[offset:end], data)
	return true
}

func writeExtended(buf []byte, v uint64, width uint32) {
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf, v)
	}
}

// PushInt pushes a typed integer, sign- or zero-extending to the stack's
// alignment when T is narrower than it (§4.E).
func PushInt[T Integer](s *VMStack, v T) bool {
	sz := uint32(SizeOf[T]())
	if s.Alignment <= sz {
		buf := make([]byte, sz)
		ToBytesLE(v, buf)
		return s.PushBytes(buf)
	}
	w := bitWidth[T]()
	masked := toU64(v) & widthMask(w)
	var extended uint64
	if isSigned[T]() {
		extended = uint64(SignExtend64(masked, w))
	} else {
		extended = ZeroExtend64(masked, w)
	}
	buf := make([]byte, s.Alignment)
	writeExtended(buf, extended, s.Alignment)
	return s.PushBytes(buf)
}

// PopInt pops a typed integer previously pushed with PushInt (or with a
// raw reservation the caller has written the low bytes of).
func PopInt[T Integer](s *VMStack) (T, bool) {
	sz := uint32(SizeOf[T]())
	width := sz
	if s.Alignment > sz {
		width = s.Alignment
	}
	data, ok := s.PopBytes(width)
	if !ok {
		var zero T
		return zero, false
	}
	return FromBytesLE[T](data[:sz]), true
}

// PeekInt peeks a typed integer without moving the cursor.
func PeekInt[T Integer](s *VMStack) (T, bool) {
	sz := uint32(SizeOf[T]())
	width := sz
	if s.Alignment > sz {
		width = s.Alignment
	}
	data, ok := s.PeekBytes(width)
	if !ok {
		var zero T
		return zero, false
	}
	return FromBytesLE[T](data[:sz]), true
}
