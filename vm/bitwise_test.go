package gvm

import "testing"

func runOpcodes(t *testing.T, steps []struct {
	op  Opcode
	imm uint64
}) *VM {
	t.Helper()
	code := assembleOrFail(t, steps)
	vm := newTestVM(t, code)
	for range steps {
		vm.Step()
	}
	return vm
}

func TestBitwiseAndOrXor(t *testing.T) {
	vm := runOpcodes(t, []struct {
		op  Opcode
		imm uint64
	}{
		{Ldimm_I4, 0xF0F0}, {Ldimm_I4, 0x0FF0}, {And_X4, 0},
	})
	assert(t, vm.Context.ExceptionState == ExceptionNone, "And_X4 faulted: %v", vm.Context.ExceptionState)
	top, ok := PeekInt[uint32](vm.Context.Stack)
	assert(t, ok && top == 0x00F0, "And_X4 got %#x", top)

	vm = runOpcodes(t, []struct {
		op  Opcode
		imm uint64
	}{
		{Ldimm_I4, 0xF0F0}, {Ldimm_I4, 0x0FF0}, {Or_X4, 0},
	})
	top, ok = PeekInt[uint32](vm.Context.Stack)
	assert(t, ok && top == 0xFFF0, "Or_X4 got %#x", top)

	vm = runOpcodes(t, []struct {
		op  Opcode
		imm uint64
	}{
		{Ldimm_I4, 0xF0F0}, {Ldimm_I4, 0x0FF0}, {Xor_X4, 0},
	})
	top, ok = PeekInt[uint32](vm.Context.Stack)
	assert(t, ok && top == 0xFF00, "Xor_X4 got %#x", top)
}

func TestBitwiseNot(t *testing.T) {
	vm := runOpcodes(t, []struct {
		op  Opcode
		imm uint64
	}{
		{Ldimm_I4, 0}, {Not_X4, 0},
	})
	top, ok := PeekInt[uint32](vm.Context.Stack)
	assert(t, ok && top == 0xFFFFFFFF, "Not_X4 of 0 got %#x", top)
}

func TestBitwiseNegAbs(t *testing.T) {
	vm := runOpcodes(t, []struct {
		op  Opcode
		imm uint64
	}{
		{Ldimm_I4, 5}, {Neg_I4, 0},
	})
	top, ok := PeekInt[int32](vm.Context.Stack)
	assert(t, ok && top == -5, "Neg_I4 got %d", top)

	vm = runOpcodes(t, []struct {
		op  Opcode
		imm uint64
	}{
		{Ldimm_I4, 0xFFFFFFF9}, {Abs_I4, 0}, // int32(-7) as raw 32-bit immediate
	})
	top, ok = PeekInt[int32](vm.Context.Stack)
	assert(t, ok && top == 7, "Abs_I4 got %d", top)
}

func TestBitwiseShifts(t *testing.T) {
	vm := runOpcodes(t, []struct {
		op  Opcode
		imm uint64
	}{
		{Ldimm_I4, 1}, {Ldimm_I4, 4}, {Shl_I4, 0},
	})
	top, ok := PeekInt[int32](vm.Context.Stack)
	assert(t, ok && top == 16, "Shl_I4 got %d", top)

	vm = runOpcodes(t, []struct {
		op  Opcode
		imm uint64
	}{
		{Ldimm_I4, 256}, {Ldimm_I4, 4}, {Shr_I4, 0},
	})
	top, ok = PeekInt[int32](vm.Context.Stack)
	assert(t, ok && top == 16, "Shr_I4 got %d", top)
}
