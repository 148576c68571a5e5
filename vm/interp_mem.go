package gvm

func isMemOpcode(op Opcode) bool { return op >= Ldpv_X1 && op <= Stvmsr }

// peekStackSlot reads the depth-th slot from the top of s (0 == top)
// without moving the cursor. Every value stack operand occupies one
// Alignment-wide slot regardless of its logical width (§4.E), so slots
// are uniformly spaced.
func peekStackSlot(s *VMStack, depth uint32) ([]byte, bool) {
	return s.ReadAt(s.TopOffset()+depth*s.Alignment, s.Alignment)
}

func peekIntAt[T Integer](s *VMStack, depth uint32) (T, bool) {
	b, ok := peekStackSlot(s, depth)
	if !ok {
		var zero T
		return zero, false
	}
	return FromBytesLE[T](b[:SizeOf[T]()]), true
}

// popSlots discards n top slots once a guarded operation is known to
// have succeeded.
func popSlots(s *VMStack, n uint32) {
	for i := uint32(0); i < n; i++ {
		s.PopBytes(s.Alignment)
	}
}

// ldpv peeks its address operand, performs the guarded read, and only
// pops once the read has succeeded — a faulting address leaves the
// stack untouched (§4.H's exception-atomicity requirement, the same
// peek-then-commit pattern interp_arith.go's peekBinary uses).
func ldpv[T Integer](vm *VM) {
	ctx := vm.Context
	addr, ok := peekIntAt[uint64](ctx.Stack, 0)
	if !ok {
		ctx.Raise(ExceptionStackOverflow)
		return
	}
	buf := make([]byte, SizeOf[T]())
	if _, err := vm.Memory.Read(buf, addr); err != nil {
		ctx.Raise(ExceptionInvalidAccess)
		return
	}
	popSlots(ctx.Stack, 1)
	if !PushInt(ctx.Stack, FromBytesLE[T](buf)) {
		ctx.Raise(ExceptionStackOverflow)
	}
}

func stpv[T Integer](vm *VM) {
	ctx := vm.Context
	v, ok1 := peekIntAt[T](ctx.Stack, 0)
	addr, ok2 := peekIntAt[uint64](ctx.Stack, 1)
	if !ok1 || !ok2 {
		ctx.Raise(ExceptionStackOverflow)
		return
	}
	buf := make([]byte, SizeOf[T]())
	ToBytesLE(v, buf)
	if _, err := vm.Memory.Write(addr, buf); err != nil {
		ctx.Raise(ExceptionInvalidAccess)
		return
	}
	popSlots(ctx.Stack, 2)
}

// pvfil implements Pvfil_X{n}: pops dest, value, count (in that order,
// dest on top) and writes count*n bytes by repeating value's
// little-endian encoding. The underlying MemoryManager.Fill only
// repeats a single byte, so for n>1 the pattern is tiled by hand.
func pvfil[T Integer](vm *VM) {
	ctx := vm.Context
	dst, ok1 := peekIntAt[uint64](ctx.Stack, 0)
	value, ok2 := peekIntAt[T](ctx.Stack, 1)
	count, ok3 := peekIntAt[uint64](ctx.Stack, 2)
	if !ok1 || !ok2 || !ok3 {
		ctx.Raise(ExceptionStackOverflow)
		return
	}
	n := uint64(SizeOf[T]())
	pattern := make([]byte, n)
	ToBytesLE(value, pattern)
	buf := make([]byte, count*n)
	for i := uint64(0); i < count; i++ {
		copy(buf[i*n:], pattern)
	}
	if _, err := vm.Memory.Write(dst, buf); err != nil {
		ctx.Raise(ExceptionInvalidAccess)
		return
	}
	popSlots(ctx.Stack, 3)
}

func (vm *VM) execMem(inst VMInstruction) {
	ctx := vm.Context

	switch inst.Opcode {
	case Ldpv_X1:
		ldpv[uint8](vm)
	case Ldpv_X2:
		ldpv[uint16](vm)
	case Ldpv_X4:
		ldpv[uint32](vm)
	case Ldpv_X8:
		ldpv[uint64](vm)
	case Stpv_X1:
		stpv[uint8](vm)
	case Stpv_X2:
		stpv[uint16](vm)
	case Stpv_X4:
		stpv[uint32](vm)
	case Stpv_X8:
		stpv[uint64](vm)

	case Ppcpy:
		dst, ok1 := peekIntAt[uint64](ctx.Stack, 0)
		src, ok2 := peekIntAt[uint64](ctx.Stack, 1)
		size, ok3 := peekIntAt[uint64](ctx.Stack, 2)
		if !ok1 || !ok2 || !ok3 {
			ctx.Raise(ExceptionStackOverflow)
			return
		}
		buf := make([]byte, size)
		if _, err := vm.Memory.Read(buf, src); err != nil {
			ctx.Raise(ExceptionInvalidAccess)
			return
		}
		if _, err := vm.Memory.Write(dst, buf); err != nil {
			ctx.Raise(ExceptionInvalidAccess)
			return
		}
		popSlots(ctx.Stack, 3)

	case Pvfil_X1:
		pvfil[uint8](vm)
	case Pvfil_X2:
		pvfil[uint16](vm)
	case Pvfil_X4:
		pvfil[uint32](vm)
	case Pvfil_X8:
		pvfil[uint64](vm)

	case Ldvmsr:
		if inst.Immediate >= uint64(len(ctx.VMSR)) {
			ctx.Raise(ExceptionInvalidInstruction)
			return
		}
		if !PushInt[uint32](ctx.Stack, ctx.VMSR[inst.Immediate]) {
			ctx.Raise(ExceptionStackOverflow)
		}

	case Stvmsr:
		// Always refused: the original source's Stvmsr path is one of
		// the flagged possibly-buggy behaviours, carried forward as a
		// hard InvalidInstruction rather than replicated.
		ctx.Raise(ExceptionInvalidInstruction)

	default:
		ctx.Raise(ExceptionInvalidInstruction)
	}
}
