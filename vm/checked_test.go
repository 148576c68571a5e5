package gvm

import "testing"

func TestCheckedAddOverflow(t *testing.T) {
	r := Add(CheckedOf(int32(0x7FFFFFFF)), CheckedOf(int32(1)))
	assert(t, r.Flags&FlagOverflow != 0, "INT32_MAX+1 should overflow")
}

func TestCheckedDivByZero(t *testing.T) {
	r := Div(CheckedOf(int32(10)), CheckedOf(int32(0)))
	exc, raised := r.Exception(true)
	assert(t, raised && exc == ExceptionIntegerDivideByZero, "div by zero should raise IntegerDivideByZero, got %v", exc)
}

func TestCheckedShlOverflow(t *testing.T) {
	r := Shl(CheckedOf(uint32(1)), CheckedOf(uint32(32)))
	assert(t, r.Flags&FlagOverflow != 0, "shift count >= width should overflow")
	assert(t, r.Value == 0, "shift count >= width should yield 0")
}

func TestCheckedNegMinOverflow(t *testing.T) {
	r := Neg(CheckedOf(int32(-2147483648)))
	assert(t, r.Flags&FlagOverflow != 0, "negating INT32_MIN should overflow")
	assert(t, r.Value == -2147483648, "negating INT32_MIN should wrap to itself")
}

// TestCheckedInvalidPropagation covers Testable Property 5: an Invalid
// operand propagates to an Invalid, zero-valued result with no other flag.
func TestCheckedInvalidPropagation(t *testing.T) {
	r := Add(CheckedInvalid[int32](), CheckedOf(int32(5)))
	assert(t, r.Flags == FlagInvalid, "propagated result should carry exactly FlagInvalid, got %v", r.Flags)
	assert(t, r.Value == 0, "propagated result should be zero-valued, got %d", r.Value)
}

func TestCheckedMulHigh(t *testing.T) {
	lo := Mul(CheckedOf(uint32(0xFFFFFFFF)), CheckedOf(uint32(2)))
	hi := MulHigh(CheckedOf(uint32(0xFFFFFFFF)), CheckedOf(uint32(2)))
	assert(t, lo.Value == 0xFFFFFFFE, "low half got %#x", lo.Value)
	assert(t, hi.Value == 1, "high half got %#x", hi.Value)
}

func TestCheckedSignedDivMinByNegOne(t *testing.T) {
	r := Div(CheckedOf(int32(-2147483648)), CheckedOf(int32(-1)))
	assert(t, r.Flags&FlagOverflow != 0, "INT32_MIN / -1 should overflow")
}
