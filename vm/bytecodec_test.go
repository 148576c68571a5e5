package gvm

import "testing"

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

var roundTripWidths = []struct {
	name string
	run  func(t *testing.T)
}{
	{"i8", func(t *testing.T) {
		buf := make([]byte, 1)
		ToBytesLE(int8(-5), buf)
		assert(t, FromBytesLE[int8](buf) == -5, "int8 round trip got %d", FromBytesLE[int8](buf))
	}},
	{"u16", func(t *testing.T) {
		buf := make([]byte, 2)
		ToBytesLE(uint16(0xBEEF), buf)
		assert(t, FromBytesLE[uint16](buf) == 0xBEEF, "uint16 round trip got %#x", FromBytesLE[uint16](buf))
	}},
	{"i32", func(t *testing.T) {
		buf := make([]byte, 4)
		ToBytesLE(int32(-123456), buf)
		assert(t, FromBytesLE[int32](buf) == -123456, "int32 round trip got %d", FromBytesLE[int32](buf))
	}},
	{"u64", func(t *testing.T) {
		buf := make([]byte, 8)
		ToBytesLE(uint64(0x0102030405060708), buf)
		assert(t, FromBytesLE[uint64](buf) == 0x0102030405060708, "uint64 round trip got %#x", FromBytesLE[uint64](buf))
	}},
}

func TestByteCodecRoundTrip(t *testing.T) {
	for _, c := range roundTripWidths {
		t.Run(c.name, c.run)
	}
}

func TestSignExtendZeroExtend(t *testing.T) {
	assert(t, SignExtend64(0x81, 8) == -127, "sign-extend 0x81@8 got %d", SignExtend64(0x81, 8))
	assert(t, uint64(SignExtend64(0x81, 8))&0xFFFFFFFF == 0xFFFFFF81, "32-bit truncated sign-extend got %#x", uint64(SignExtend64(0x81, 8))&0xFFFFFFFF)
	assert(t, uint64(SignExtend64(0x81, 8)) == 0xFFFFFFFFFFFFFF81, "64-bit sign-extend got %#x", uint64(SignExtend64(0x81, 8)))
	assert(t, ZeroExtend64(0xFF, 8) == 0xFF, "zero-extend got %#x", ZeroExtend64(0xFF, 8))
}

func TestBitCastRoundTrip(t *testing.T) {
	f := float32(3.5)
	assert(t, BitCastU32ToF32(BitCastF32ToU32(f)) == f, "float32 bitcast round trip failed")
	d := 2.718281828
	assert(t, BitCastU64ToF64(BitCastF64ToU64(d)) == d, "float64 bitcast round trip failed")
}
