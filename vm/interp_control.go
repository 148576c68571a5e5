package gvm

func isControlOpcode(op Opcode) bool { return op >= Br_I1 && op <= Ret }

// popCondition pops a stack-operation-width condition per §4.H.5: 8 bytes
// when Mode.StackOper64Bit is set, 4 bytes otherwise (mirrors the width
// stackOperWidth already governs for Dup/Dup2/Xch/Dcv).
func popCondition(ctx *VMExecutionContext) (int64, bool) {
	if stackOperWidth(ctx) == 8 {
		v, ok := PopInt[int64](ctx.Stack)
		return v, ok
	}
	v, ok := PopInt[int32](ctx.Stack)
	return int64(v), ok
}

func branchOffset(inst VMInstruction) int64 {
	switch inst.ImmediateSize {
	case 1:
		return SignExtend64(inst.Immediate, 8)
	case 2:
		return SignExtend64(inst.Immediate, 16)
	default:
		return SignExtend64(inst.Immediate, 32)
	}
}

// pushShadowFrame implements §4.H.5's Call: the return IP is pushed onto
// the value stack (Ret will pop and cross-check it), and a shadow frame
// recording it alongside the fresh callee state is pushed onto the
// shadow stack. return_sp is captured after the return-IP push; Ret does
// not restore the value-stack cursor from it. ATP/LVTP are each a
// live snapshot of the argument/local-variable table stacks' cursors at
// call time — "the frame's snapshot of ATP from before any Arg" (§4.H.6)
// — so Initarg can later restore the callee's table stacks to exactly
// this baseline instead of whatever position the callee leaves them at.
func (vm *VM) pushShadowFrame(returnIP uint64) bool {
	ctx := vm.Context
	if !PushInt(ctx.Stack, returnIP) {
		return false
	}
	s := ctx.ShadowStack
	return PushInt(s, XTableStateBits(0)) &&
		PushInt(s, ctx.ArgumentStack.TopOffset()) &&
		PushInt(s, ctx.LocalVariableStack.TopOffset()) &&
		PushInt(s, ctx.Stack.TopOffset()) &&
		PushInt(s, returnIP)
}

func (vm *VM) popShadowFrame() (ShadowFrame, bool) {
	s := vm.Context.ShadowStack
	returnIP, ok1 := PopInt[uint64](s)
	returnSP, ok2 := PopInt[uint32](s)
	lvtp, ok3 := PopInt[uint32](s)
	atp, ok4 := PopInt[uint32](s)
	xstate, ok5 := PopInt[XTableStateBits](s)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return ShadowFrame{}, false
	}
	return ShadowFrame{XTableState: xstate, ATP: atp, LVTP: lvtp, ReturnSP: returnSP, ReturnIP: returnIP}, true
}

// peekShadowFrame reads the top shadow frame without popping it, mirroring
// the original's ShadowStack.PeekFrom. Initarg uses this to recover the
// active call's ATP/LVTP baseline.
func peekShadowFrame(s *VMStack) (ShadowFrame, bool) {
	w := s.Alignment
	base := s.TopOffset()
	returnIPB, ok1 := s.ReadAt(base, w)
	returnSPB, ok2 := s.ReadAt(base+w, w)
	lvtpB, ok3 := s.ReadAt(base+2*w, w)
	atpB, ok4 := s.ReadAt(base+3*w, w)
	xstateB, ok5 := s.ReadAt(base+4*w, w)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return ShadowFrame{}, false
	}
	return ShadowFrame{
		ReturnIP:    FromBytesLE[uint64](returnIPB[:8]),
		ReturnSP:    FromBytesLE[uint32](returnSPB[:4]),
		LVTP:        FromBytesLE[uint32](lvtpB[:4]),
		ATP:         FromBytesLE[uint32](atpB[:4]),
		XTableState: XTableStateBits(FromBytesLE[uint32](xstateB[:4])),
	}, true
}

func (vm *VM) execControl(inst VMInstruction) {
	ctx := vm.Context

	switch inst.Opcode {
	case Br_I1, Br_I2, Br_I4:
		ctx.NextIP = uint64(int64(ctx.NextIP) + branchOffset(inst))

	case Br_z_I1, Br_z_I2, Br_z_I4:
		v, ok := popCondition(ctx)
		if !ok {
			ctx.Raise(ExceptionStackOverflow)
			return
		}
		if v == 0 {
			ctx.NextIP = uint64(int64(ctx.NextIP) + branchOffset(inst))
		}

	case Br_nz_I1, Br_nz_I2, Br_nz_I4:
		v, ok := popCondition(ctx)
		if !ok {
			ctx.Raise(ExceptionStackOverflow)
			return
		}
		if v != 0 {
			ctx.NextIP = uint64(int64(ctx.NextIP) + branchOffset(inst))
		}

	case Call_I1, Call_I2, Call_I4:
		target := uint64(int64(ctx.NextIP) + branchOffset(inst))
		if !vm.pushShadowFrame(ctx.NextIP) {
			ctx.Raise(ExceptionStackOverflow)
			return
		}
		ctx.XTableState = 0
		ctx.NextIP = target

	case Ret:
		returnIP, ok := PopInt[uint64](ctx.Stack)
		if !ok {
			ctx.Raise(ExceptionStackOverflow)
			return
		}
		frame, ok := vm.popShadowFrame()
		if !ok {
			ctx.Raise(ExceptionStackOverflow)
			return
		}
		if frame.ReturnIP != returnIP {
			ctx.Raise(ExceptionInvalidAccess)
			return
		}
		// Reclaim whatever the returning callee consumed off the
		// argument/local-variable table stacks: restore both to the
		// positions captured when this frame was pushed, so a function
		// called repeatedly (e.g. in a loop) doesn't leak table space
		// on every iteration.
		if !ctx.ArgumentStack.SetTopOffset(frame.ATP) || !ctx.LocalVariableStack.SetTopOffset(frame.LVTP) {
			ctx.Raise(ExceptionInvalidAccess)
			return
		}
		ctx.NextIP = frame.ReturnIP

	default:
		ctx.Raise(ExceptionInvalidInstruction)
	}
}
