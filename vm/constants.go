package gvm

// PageSize is the guest page granularity. Must be a power of two.
const PageSize = 0x1000

// Argument/local-variable table limits (mirrors the original source's
// MaximumSizeSingleArgument / MaximumFunctionArgumentCount family).
const (
	MaxSingleArg      = 0x400000
	MaxArgCount       = 0x40
	MaxSingleLocalVar = 0x400000
	MaxLocalVarCount  = 0x40
)

// MaxInstructionLength bounds a single fetch: prefix + 2-byte opcode +
// 8-byte immediate + reserved.
const MaxInstructionLength = 16

// MemoryType tags a region of guest address space.
type MemoryType uint32

const (
	MemoryTypeUnspecified MemoryType = iota
	MemoryTypeFreed
	MemoryTypeData
	MemoryTypeStack
	MemoryTypeBytecode
	MemoryTypeUser
)

func (t MemoryType) String() string {
	switch t {
	case MemoryTypeFreed:
		return "Freed"
	case MemoryTypeData:
		return "Data"
	case MemoryTypeStack:
		return "Stack"
	case MemoryTypeBytecode:
		return "Bytecode"
	case MemoryTypeUser:
		return "User"
	default:
		return "Unspecified"
	}
}

// AllocOptions bits control Allocate's address/type preference handling.
type AllocOptions uint32

const (
	UsePreferredAddress AllocOptions = 1 << iota
	UsePreferredMemoryType
)

// XTableStateBits records which of the argument/local-variable tables is
// ready for the current frame.
type XTableStateBits uint32

const (
	ArgumentTableReady XTableStateBits = 1 << iota
	LocalVariableTableReady
)

// InstructionPrefixBits are fetched alongside an instruction and affect
// how the next handler treats its result.
type InstructionPrefixBits uint32

const (
	PrefixNone          InstructionPrefixBits = 0
	PrefixCheckOverflow InstructionPrefixBits = 1 << 0
)

// ModeBits select 32- vs 64-bit pointer and stack-operation width.
type ModeBits uint32

const (
	ModeStackOper64Bit ModeBits = 1 << 0
	ModePointer64Bit   ModeBits = 1 << 1
)

// ExceptionState is the synchronous fault/stop condition of a context.
type ExceptionState uint32

const (
	ExceptionNone ExceptionState = iota
	ExceptionStackOverflow
	ExceptionInvalidInstruction
	ExceptionInvalidAccess
	ExceptionIntegerDivideByZero
	ExceptionBreakpoint
	ExceptionSingleStep
	ExceptionFloatingPointInvalid
	ExceptionIntegerOverflow
)

func (e ExceptionState) String() string {
	switch e {
	case ExceptionNone:
		return "None"
	case ExceptionStackOverflow:
		return "StackOverflow"
	case ExceptionInvalidInstruction:
		return "InvalidInstruction"
	case ExceptionInvalidAccess:
		return "InvalidAccess"
	case ExceptionIntegerDivideByZero:
		return "IntegerDivideByZero"
	case ExceptionBreakpoint:
		return "Breakpoint"
	case ExceptionSingleStep:
		return "SingleStep"
	case ExceptionFloatingPointInvalid:
		return "FloatingPointInvalid"
	case ExceptionIntegerOverflow:
		return "IntegerOverflow"
	default:
		return "Unknown"
	}
}
