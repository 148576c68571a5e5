package gvm

import "testing"

// TestStackAlignmentInvariant covers Testable Property 1: top_offset stays
// a multiple of alignment and within [0, size] after every operation.
func TestStackAlignmentInvariant(t *testing.T) {
	s, err := NewVMStack(64, 8)
	assert(t, err == nil, "NewVMStack failed: %v", err)

	for _, n := range []uint32{1, 3, 8, 4} {
		ok := s.PushBytes(make([]byte, n))
		assert(t, ok, "push %d bytes failed", n)
		assert(t, s.SanityCheck(), "stack invariant violated after pushing %d bytes", n)
	}
	for range []int{1, 2, 3, 4} {
		_, ok := s.PopBytes(1)
		assert(t, ok, "pop failed")
		assert(t, s.SanityCheck(), "stack invariant violated after pop")
	}
	assert(t, s.TopOffset() == s.Size(), "stack should be empty, top_offset=%d size=%d", s.TopOffset(), s.Size())
}

// TestPushPopRoundTrip covers Testable Property 2, including the
// sign/zero-extension case for a type narrower than the stack's alignment.
func TestPushPopRoundTrip(t *testing.T) {
	s, err := NewVMStack(64, 8)
	assert(t, err == nil, "NewVMStack failed: %v", err)

	assert(t, PushInt(s, int64(-42)), "push int64 failed")
	v, ok := PopInt[int64](s)
	assert(t, ok && v == -42, "int64 round trip got %d", v)

	assert(t, PushInt(s, int8(-127)), "push int8 failed")
	raw, ok := s.PeekBytes(8)
	assert(t, ok, "peek failed")
	assert(t, FromBytesLE[uint64](raw) == 0xFFFFFFFFFFFFFF81, "sign-extended int8 on stack got %#x", FromBytesLE[uint64](raw))
	narrow, ok := PopInt[int8](s)
	assert(t, ok && narrow == -127, "int8 round trip got %d", narrow)

	assert(t, PushInt(s, uint16(0xBEEF)), "push uint16 failed")
	wide, ok := PopInt[uint64](s)
	assert(t, ok && wide == 0xBEEF, "zero-extended uint16 round trip got %#x", wide)
}

func TestStackOverflowLeavesCursorUnchanged(t *testing.T) {
	s, err := NewVMStack(0, 8)
	assert(t, err == nil, "NewVMStack(0) failed: %v", err)
	before := s.TopOffset()
	ok := PushInt(s, int32(1))
	assert(t, !ok, "push into a zero-size stack should fail")
	assert(t, s.TopOffset() == before, "failed push must not move the cursor")
}

func TestReadWriteAtIsCursorIndependent(t *testing.T) {
	s, err := NewVMStack(32, 8)
	assert(t, err == nil, "NewVMStack failed: %v", err)
	before := s.TopOffset()
	assert(t, s.WriteAt(16, []byte{1, 2, 3, 4}), "WriteAt failed")
	assert(t, s.TopOffset() == before, "WriteAt must not move the cursor")
	data, ok := s.ReadAt(16, 4)
	assert(t, ok && data[2] == 3, "ReadAt got %v", data)
}
