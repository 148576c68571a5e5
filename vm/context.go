package gvm

// TableEntry describes one argument or local-variable slot: its declared
// size and its offset into the value stack's buffer, where Arg/Var
// reserved its storage (§4.H.6).
type TableEntry struct {
	Size    uint32
	Address uint32
}

// ShadowFrame is the call-stack record pushed by Call and popped by Ret.
// It is opaque to guest code: only the interpreter reads or writes it.
type ShadowFrame struct {
	XTableState XTableStateBits
	ATP         uint32 // argument-table pointer: base offset into ArgumentStack
	LVTP        uint32 // local-variable-table pointer: base offset into LocalVariableStack
	ReturnSP    uint32 // value-stack top offset just after Call pushed the return IP; Ret does not restore it
	ReturnIP    uint64
}

// VMExecutionContext is one guest thread of execution: its program
// counter, its four data-area stacks, and its fault/mode state (§6.2).
//
// The original source additionally carries a spinlock and reserved
// padding bytes in this struct for multi-context host synchronisation;
// §5 already states the manager (and, by extension, a context) performs
// no internal locking of its own, so those fields have no work to do
// here and are omitted rather than carried as dead weight.
type VMExecutionContext struct {
	IP     uint64
	NextIP uint64

	Stack              *VMStack
	ShadowStack        *VMStack
	ArgumentStack      *VMStack
	LocalVariableStack *VMStack

	ArgTable []TableEntry
	VarTable []TableEntry

	XTableState XTableStateBits

	FetchedPrefix InstructionPrefixBits
	Mode          ModeBits
	VMSR          [32]uint32

	ExceptionState ExceptionState
}

// NewVMExecutionContext allocates the four data-area stacks at the given
// byte sizes. Each stack's alignment is fixed at 8 bytes, the widest
// primitive the interpreter pushes.
func NewVMExecutionContext(valueSize, shadowSize, argSize, lvtSize uint32) (*VMExecutionContext, error) {
	stack, err := NewVMStack(valueSize, 8)
	if err != nil {
		return nil, err
	}
	shadow, err := NewVMStack(shadowSize, 8)
	if err != nil {
		return nil, err
	}
	args, err := NewVMStack(argSize, 8)
	if err != nil {
		return nil, err
	}
	lvt, err := NewVMStack(lvtSize, 8)
	if err != nil {
		return nil, err
	}
	return &VMExecutionContext{
		Stack:              stack,
		ShadowStack:        shadow,
		ArgumentStack:      args,
		LocalVariableStack: lvt,
		Mode:               ModeStackOper64Bit | ModePointer64Bit,
	}, nil
}

// Raise records a fault; if one is already pending, the first is kept.
// Once set, ExceptionState is sticky until explicitly cleared by the
// host: the fetch-decode-execute loop checks it before every cycle.
func (c *VMExecutionContext) Raise(e ExceptionState) {
	if c.ExceptionState == ExceptionNone {
		c.ExceptionState = e
	}
}

// Faulted reports whether the context has a pending exception.
func (c *VMExecutionContext) Faulted() bool { return c.ExceptionState != ExceptionNone }
