package gvm

func isBitwiseOpcode(op Opcode) bool { return op >= And_X4 && op <= Shr_U8 }

func intUnary[T Integer](vm *VM, op func(a Checked[T]) Checked[T]) {
	ctx := vm.Context
	a, ok := PeekInt[T](ctx.Stack)
	if !ok {
		ctx.Raise(ExceptionStackOverflow)
		return
	}
	r := op(CheckedOf(a))
	if exc, raised := r.Exception(ctx.FetchedPrefix&PrefixCheckOverflow != 0); raised {
		ctx.Raise(exc)
		return
	}
	ctx.Stack.PopBytes(operandWidth[T](ctx.Stack))
	if !PushInt(ctx.Stack, r.Value) {
		ctx.Raise(ExceptionStackOverflow)
	}
}

func (vm *VM) execBitwise(inst VMInstruction) {
	switch inst.Opcode {
	case And_X4:
		intBinary[uint32](vm, And[uint32])
	case And_X8:
		intBinary[uint64](vm, And[uint64])
	case Or_X4:
		intBinary[uint32](vm, Or[uint32])
	case Or_X8:
		intBinary[uint64](vm, Or[uint64])
	case Xor_X4:
		intBinary[uint32](vm, Xor[uint32])
	case Xor_X8:
		intBinary[uint64](vm, Xor[uint64])
	case Not_X4:
		intUnary[uint32](vm, Not[uint32])
	case Not_X8:
		intUnary[uint64](vm, Not[uint64])
	case Neg_I4:
		intUnary[int32](vm, Neg[int32])
	case Neg_I8:
		intUnary[int64](vm, Neg[int64])
	case Abs_I4:
		intUnary[int32](vm, Abs[int32])
	case Abs_I8:
		intUnary[int64](vm, Abs[int64])
	case Shl_I4:
		intBinary[int32](vm, Shl[int32])
	case Shl_I8:
		intBinary[int64](vm, Shl[int64])
	case Shl_U4:
		intBinary[uint32](vm, Shl[uint32])
	case Shl_U8:
		intBinary[uint64](vm, Shl[uint64])
	case Shr_I4:
		intBinary[int32](vm, Shr[int32])
	case Shr_I8:
		intBinary[int64](vm, Shr[int64])
	case Shr_U4:
		intBinary[uint32](vm, Shr[uint32])
	case Shr_U8:
		intBinary[uint64](vm, Shr[uint64])
	default:
		vm.Context.Raise(ExceptionInvalidInstruction)
	}
}
