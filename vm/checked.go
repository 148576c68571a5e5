package gvm

import "math/bits"

// StateFlags records why a Checked value is not a plain result.
type StateFlags uint32

const (
	FlagNone StateFlags = 0
	FlagInvalid StateFlags = 1 << iota
	FlagOverflow
	FlagDivideByZero
)

// Checked is a width-parameterised integer that carries its own
// invalid/overflow/divide-by-zero state instead of panicking or using a
// language-level exception. See §4.C / Design Notes "Checked integer as a
// sum-of-flags value".
type Checked[T Integer] struct {
	Value T
	Flags StateFlags
}

// CheckedOf wraps a plain value with no flags set.
func CheckedOf[T Integer](v T) Checked[T] { return Checked[T]{Value: v} }

// CheckedInvalid returns the canonical NaN-equivalent checked value.
func CheckedInvalid[T Integer]() Checked[T] { return Checked[T]{Flags: FlagInvalid} }

// Exception translates the result's flags to an ExceptionState per §4.H.1.
// checkOverflow reflects whether PrefixCheckOverflow was set on the
// fetched instruction.
func (c Checked[T]) Exception(checkOverflow bool) (ExceptionState, bool) {
	switch {
	case c.Flags&FlagInvalid != 0 && c.Flags&FlagDivideByZero != 0:
		return ExceptionIntegerDivideByZero, true
	case c.Flags&FlagInvalid != 0:
		return ExceptionInvalidInstruction, true
	case c.Flags&FlagOverflow != 0 && checkOverflow:
		return ExceptionIntegerOverflow, true
	default:
		return ExceptionNone, false
	}
}

func bitWidth[T Integer]() uint { return uint(SizeOf[T]()) * 8 }

func isSigned[T Integer]() bool {
	var zero T
	switch any(zero).(type) {
	case int8, int16, int32, int64:
		return true
	default:
		return false
	}
}

func widthMask(w uint) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << w) - 1
}

// toU64 reinterprets v's bit pattern as an unsigned value truncated to its
// own width, losing no bits regardless of signedness.
func toU64[T Integer](v T) uint64 {
	switch x := any(v).(type) {
	case int8:
		return uint64(uint8(x))
	case uint8:
		return uint64(x)
	case int16:
		return uint64(uint16(x))
	case uint16:
		return uint64(x)
	case int32:
		return uint64(uint32(x))
	case uint32:
		return uint64(x)
	case int64:
		return uint64(x)
	case uint64:
		return x
	}
	return 0
}

func fromU64[T Integer](v uint64) T {
	var zero T
	switch any(zero).(type) {
	case int8:
		return T(int8(uint8(v)))
	case uint8:
		return T(uint8(v))
	case int16:
		return T(int16(uint16(v)))
	case uint16:
		return T(uint16(v))
	case int32:
		return T(int32(uint32(v)))
	case uint32:
		return T(uint32(v))
	case int64:
		return T(int64(v))
	case uint64:
		return T(v)
	}
	return zero
}

func propagateInvalid[T Integer](a, b Checked[T]) (Checked[T], bool) {
	if a.Flags&FlagInvalid != 0 || b.Flags&FlagInvalid != 0 {
		return CheckedInvalid[T](), true
	}
	return Checked[T]{}, false
}

// Add performs checked addition; overflow uses the same-sign-operands,
// differing-sign-result rule for signed widths.
func Add[T Integer](a, b Checked[T]) Checked[T] {
	if inv, ok := propagateInvalid(a, b); ok {
		return inv
	}
	w := bitWidth[T]()
	mask := widthMask(w)
	signBit := uint64(1) << (w - 1)
	u1, u2 := toU64(a.Value)&mask, toU64(b.Value)&mask
	r := (u1 + u2) & mask

	var overflow bool
	if isSigned[T]() {
		overflow = (^(u1^u2))&signBit != 0 && (r^u1)&signBit != 0
	} else {
		overflow = r < u1
	}
	return Checked[T]{Value: fromU64[T](r), Flags: overflowFlag(overflow)}
}

// Sub performs checked subtraction.
func Sub[T Integer](a, b Checked[T]) Checked[T] {
	if inv, ok := propagateInvalid(a, b); ok {
		return inv
	}
	w := bitWidth[T]()
	mask := widthMask(w)
	signBit := uint64(1) << (w - 1)
	u1, u2 := toU64(a.Value)&mask, toU64(b.Value)&mask
	r := (u1 - u2) & mask

	var overflow bool
	if isSigned[T]() {
		overflow = (u1^u2)&signBit != 0 && (r^u2)&signBit == 0
	} else {
		overflow = u1 < u2
	}
	return Checked[T]{Value: fromU64[T](r), Flags: overflowFlag(overflow)}
}

// mulWideUnsigned computes the full 2*width-bit unsigned product of two
// width-bit operands, returning (low, high) width-bit halves. For widths
// below 64 the product fits natively in uint64; for width 64 the job is
// delegated to math/bits.Mul64, which implements the same half-width
// cross-product algorithm the original source hand-rolled.
func mulWideUnsigned(v1, v2 uint64, w uint) (lo, hi uint64) {
	if w < 64 {
		full := v1 * v2
		mask := widthMask(w)
		return full & mask, (full >> w) & mask
	}
	hi, lo = bits.Mul64(v1, v2)
	return lo, hi
}

func negateWord(v uint64, mask uint64) uint64 { return (^v + 1) & mask }

func negateWide(lo, hi, mask uint64) (uint64, uint64) {
	carry := uint64(0)
	if lo == 0 {
		carry = 1
	}
	newLo := negateWord(lo, mask)
	newHi := (^hi + carry) & mask
	return newLo, newHi
}

// Mul performs checked multiplication, truncated to T's width.
func Mul[T Integer](a, b Checked[T]) Checked[T] {
	lo, _, flags := mulCore(a, b)
	if flags&FlagInvalid != 0 {
		return CheckedInvalid[T]()
	}
	return Checked[T]{Value: fromU64[T](lo), Flags: flags}
}

// MulHigh returns the high half of the full-width product (§4.C's 128-bit
// -wide multiply-high path, generalised to every width).
func MulHigh[T Integer](a, b Checked[T]) Checked[T] {
	_, hi, flags := mulCore(a, b)
	if flags&FlagInvalid != 0 {
		return CheckedInvalid[T]()
	}
	return Checked[T]{Value: fromU64[T](hi), Flags: flags & FlagInvalid}
}

func mulCore[T Integer](a, b Checked[T]) (lo, hi uint64, flags StateFlags) {
	if inv, ok := propagateInvalid(a, b); ok {
		return 0, 0, inv.Flags
	}
	w := bitWidth[T]()
	mask := widthMask(w)
	signBit := uint64(1) << (w - 1)
	u1, u2 := toU64(a.Value)&mask, toU64(b.Value)&mask

	if !isSigned[T]() {
		lo, hi = mulWideUnsigned(u1, u2, w)
		return lo, hi, FlagNone
	}

	neg1, neg2 := u1&signBit != 0, u2&signBit != 0
	abs1, abs2 := u1, u2
	if neg1 {
		abs1 = negateWord(u1, mask)
	}
	if neg2 {
		abs2 = negateWord(u2, mask)
	}
	lo, hi = mulWideUnsigned(abs1, abs2, w)
	// Overflow is judged on the product of the magnitudes, before the
	// sign is applied.
	overflow := hi != 0 || lo&signBit != 0
	if neg1 != neg2 {
		lo, hi = negateWide(lo, hi, mask)
	}
	return lo, hi, overflowFlag(overflow)
}

// Div performs checked truncating division.
func Div[T Integer](a, b Checked[T]) Checked[T] {
	q, _, flags := divModCore(a, b)
	if flags&(FlagInvalid|FlagDivideByZero) != 0 {
		return Checked[T]{Flags: flags}
	}
	return Checked[T]{Value: fromU64[T](q), Flags: flags}
}

// Mod performs checked truncating remainder (sign follows the dividend).
func Mod[T Integer](a, b Checked[T]) Checked[T] {
	_, r, flags := divModCore(a, b)
	if flags&(FlagInvalid|FlagDivideByZero) != 0 {
		return Checked[T]{Flags: flags}
	}
	return Checked[T]{Value: fromU64[T](r), Flags: flags}
}

func divModCore[T Integer](a, b Checked[T]) (q, r uint64, flags StateFlags) {
	if inv, ok := propagateInvalid(a, b); ok {
		return 0, 0, inv.Flags
	}
	w := bitWidth[T]()
	mask := widthMask(w)
	signBit := uint64(1) << (w - 1)
	u1, u2 := toU64(a.Value)&mask, toU64(b.Value)&mask

	if u2 == 0 {
		return 0, 0, FlagInvalid | FlagDivideByZero
	}

	if !isSigned[T]() {
		return u1 / u2, u1 % u2, FlagNone
	}

	neg1, neg2 := u1&signBit != 0, u2&signBit != 0
	abs1, abs2 := u1, u2
	if neg1 {
		abs1 = negateWord(u1, mask)
	}
	if neg2 {
		abs2 = negateWord(u2, mask)
	}
	qU, rU := abs1/abs2, abs1%abs2
	qS, rS := qU, rU
	if neg1 != neg2 {
		qS = negateWord(qU, mask)
	}
	if neg1 {
		rS = negateWord(rU, mask)
	}
	// INT_MIN / -1: division overflows (result can't be represented);
	// the general arithmetic above already yields value==MIN for the
	// quotient and 0 for the remainder via two's-complement wraparound,
	// matching §4.C's stated rule, so only the flag needs adding here.
	overflow := u1 == signBit && u2 == mask
	return qS, rS, overflowFlag(overflow)
}

// Shl performs a checked left shift; negative shift counts are Invalid,
// counts >= the type's width yield 0 with Overflow set.
func Shl[T Integer](a, shiftBy Checked[T]) Checked[T] {
	if inv, ok := propagateInvalid(a, shiftBy); ok {
		return inv
	}
	w := bitWidth[T]()
	mask := widthMask(w)
	signBit := uint64(1) << (w - 1)
	su := toU64(shiftBy.Value) & mask
	if isSigned[T]() && su&signBit != 0 {
		return CheckedInvalid[T]()
	}
	if su >= uint64(w) {
		return Checked[T]{Flags: FlagOverflow}
	}
	u1 := toU64(a.Value) & mask
	r := (u1 << su) & mask
	back := r >> su
	overflow := back != u1
	return Checked[T]{Value: fromU64[T](r), Flags: overflowFlag(overflow)}
}

// Shr performs a checked right shift: arithmetic (sign-filling) for
// signed widths, logical for unsigned. Never sets Overflow.
func Shr[T Integer](a, shiftBy Checked[T]) Checked[T] {
	if inv, ok := propagateInvalid(a, shiftBy); ok {
		return inv
	}
	w := bitWidth[T]()
	mask := widthMask(w)
	signBit := uint64(1) << (w - 1)
	signed := isSigned[T]()
	su := toU64(shiftBy.Value) & mask
	if signed && su&signBit != 0 {
		return CheckedInvalid[T]()
	}
	u1 := toU64(a.Value) & mask
	if su >= uint64(w) {
		if signed && u1&signBit != 0 {
			return Checked[T]{Value: fromU64[T](mask)}
		}
		return Checked[T]{Value: fromU64[T](0)}
	}
	if !signed {
		return Checked[T]{Value: fromU64[T]((u1 >> su) & mask)}
	}
	r := u1 >> su
	if u1&signBit != 0 {
		r |= ^(mask >> su) & mask
	}
	return Checked[T]{Value: fromU64[T](r)}
}

// Neg negates a value; for signed T, negating the minimum value sets
// Overflow (the value is returned unchanged, per two's-complement wrap).
func Neg[T Integer](a Checked[T]) Checked[T] {
	if a.Flags&FlagInvalid != 0 {
		return CheckedInvalid[T]()
	}
	w := bitWidth[T]()
	mask := widthMask(w)
	signBit := uint64(1) << (w - 1)
	u1 := toU64(a.Value) & mask
	r := negateWord(u1, mask)
	overflow := isSigned[T]() && u1 == signBit
	return Checked[T]{Value: fromU64[T](r), Flags: overflowFlag(overflow)}
}

// Abs returns the absolute value; unsigned widths are always a no-op.
// Abs(INT_MIN) carries the same Overflow rule as Neg.
func Abs[T Integer](a Checked[T]) Checked[T] {
	if a.Flags&FlagInvalid != 0 {
		return CheckedInvalid[T]()
	}
	if !isSigned[T]() {
		return a
	}
	w := bitWidth[T]()
	signBit := uint64(1) << (w - 1)
	if toU64(a.Value)&signBit != 0 {
		return Neg(a)
	}
	return a
}

// Not returns the bitwise complement. Never sets a flag.
func Not[T Integer](a Checked[T]) Checked[T] {
	if a.Flags&FlagInvalid != 0 {
		return CheckedInvalid[T]()
	}
	mask := widthMask(bitWidth[T]())
	return Checked[T]{Value: fromU64[T]((^toU64(a.Value)) & mask)}
}

// And, Or, Xor are plain bitwise ops; none of them can overflow.
func And[T Integer](a, b Checked[T]) Checked[T] { return bitwise(a, b, func(x, y uint64) uint64 { return x & y }) }
func Or[T Integer](a, b Checked[T]) Checked[T]  { return bitwise(a, b, func(x, y uint64) uint64 { return x | y }) }
func Xor[T Integer](a, b Checked[T]) Checked[T] { return bitwise(a, b, func(x, y uint64) uint64 { return x ^ y }) }

func bitwise[T Integer](a, b Checked[T], op func(x, y uint64) uint64) Checked[T] {
	if inv, ok := propagateInvalid(a, b); ok {
		return inv
	}
	mask := widthMask(bitWidth[T]())
	return Checked[T]{Value: fromU64[T](op(toU64(a.Value), toU64(b.Value)) & mask)}
}

func overflowFlag(overflow bool) StateFlags {
	if overflow {
		return FlagOverflow
	}
	return FlagNone
}
