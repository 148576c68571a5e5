package gvm

// VM couples a guest memory manager and one execution context. The
// bytecode image lives in a MemoryTypeBytecode region of guest address
// space like any other allocation (§2, §4.H step 2: "translate IP to a
// host pointer via the memory manager") rather than a bare host slice.
type VM struct {
	CodeBase uint64
	CodeSize uint64
	Memory   *MemoryManager
	Context  *VMExecutionContext
}

// NewVM commits code into a fresh memory manager's address space as a
// MemoryTypeBytecode region and wires it to an execution context sized
// per the caller's stack requirements. An empty code image allocates no
// bytecode region; LoadCode installs one later.
func NewVM(code []byte, memSize uint64, valueSize, shadowSize, argSize, lvtSize uint32) (*VM, error) {
	mm, err := NewMemoryManager(memSize)
	if err != nil {
		return nil, err
	}
	ctx, err := NewVMExecutionContext(valueSize, shadowSize, argSize, lvtSize)
	if err != nil {
		return nil, err
	}
	vm := &VM{Memory: mm, Context: ctx}
	if len(code) > 0 {
		if err := vm.LoadCode(code); err != nil {
			return nil, err
		}
	}
	return vm, nil
}

// LoadCode commits code as a fresh MemoryTypeBytecode region and points
// IP fetches at it. Used by NewVM, and by callers that reserve other
// guest memory before the code image is known.
func (vm *VM) LoadCode(code []byte) error {
	codeBase, err := vm.Memory.Allocate(0, uint64(len(code)), MemoryTypeBytecode, 0, 0)
	if err != nil {
		return err
	}
	if _, err := vm.Memory.Write(codeBase, code); err != nil {
		return err
	}
	vm.CodeBase = codeBase
	vm.CodeSize = uint64(len(code))
	return nil
}

// Step runs exactly one fetch-decode-execute cycle. It reports false once
// the context is faulted or the program counter has run off the end of
// the code image, at which point the caller should stop calling Step.
func (vm *VM) Step() bool {
	ctx := vm.Context
	if ctx.Faulted() {
		return false
	}
	if ctx.IP >= vm.CodeSize {
		ctx.Raise(ExceptionInvalidAccess)
		return false
	}

	host, ok := vm.Memory.HostAddress(vm.CodeBase+ctx.IP, vm.CodeSize-ctx.IP)
	if !ok {
		ctx.Raise(ExceptionInvalidAccess)
		return false
	}

	inst, consumed := Decode(host)
	if consumed == 0 {
		ctx.Raise(ExceptionInvalidInstruction)
		return false
	}
	ctx.NextIP = ctx.IP + uint64(consumed)
	ctx.FetchedPrefix = PrefixCheckOverflow

	vm.dispatch(inst)

	if ctx.Faulted() {
		return false
	}
	ctx.IP = ctx.NextIP
	return true
}

// Run steps the context until it halts, faults, or maxSteps is reached
// (0 means unbounded). It returns the final exception state.
func (vm *VM) Run(maxSteps uint64) ExceptionState {
	for n := uint64(0); maxSteps == 0 || n < maxSteps; n++ {
		if !vm.Step() {
			break
		}
	}
	return vm.Context.ExceptionState
}

func (vm *VM) dispatch(inst VMInstruction) {
	switch {
	case isArithOpcode(inst.Opcode):
		vm.execArith(inst)
	case isBitwiseOpcode(inst.Opcode):
		vm.execBitwise(inst)
	case isCompareOpcode(inst.Opcode):
		vm.execCompare(inst)
	case isConvertOpcode(inst.Opcode):
		vm.execConvert(inst)
	case isStackOpcode(inst.Opcode):
		vm.execStack(inst)
	case isControlOpcode(inst.Opcode):
		vm.execControl(inst)
	case isFrameOpcode(inst.Opcode):
		vm.execFrame(inst)
	case isMemOpcode(inst.Opcode):
		vm.execMem(inst)
	default:
		switch inst.Opcode {
		case Nop:
		case Bp:
			vm.Context.Raise(ExceptionBreakpoint)
		case Vmxthrow:
			vm.Context.Raise(ExceptionInvalidInstruction)
		case Vmcall:
			vm.Context.Raise(ExceptionInvalidInstruction)
		default:
			vm.Context.Raise(ExceptionInvalidInstruction)
		}
	}
}
