package gvm

import (
	"encoding/binary"
	"fmt"
)

// opcodeByteLimit is the boundary between one-byte and two-byte opcode
// encodings (§4.F): values below it fit in the low 7 bits of byte 0.
const opcodeByteLimit = 0x80

// VMInstruction is a decoded instruction: an opcode plus its optional
// immediate, and the byte counts consumed by each half of the encoding.
type VMInstruction struct {
	Opcode        Opcode
	Immediate     uint64
	OpcodeSize    uint8
	ImmediateSize uint8
	Valid         bool
}

// Length returns the instruction's total encoded size in bytes.
func (i VMInstruction) Length() uint8 { return i.OpcodeSize + i.ImmediateSize }

// EncodedSize reports how many bytes Encode would need for op, without
// requiring a destination buffer. Used to size instructions up front and
// to report the required size on a too-small buffer (§4.F).
func EncodedSize(op Opcode) (size uint8, ok bool) {
	operand, known := op.operand()
	if !known {
		return 0, false
	}
	opSize := uint8(1)
	if uint16(op) >= opcodeByteLimit {
		opSize = 2
	}
	return opSize + operand.Size(), true
}

// Encode writes op and its immediate into buf, little-endian. It returns
// the number of bytes written and the number of bytes required; on
// failure (unknown opcode, buffer too small, or immediate overflowing
// its slot) written is 0 but required is still reported where known, per
// §4.F's "report required size even on failure" contract.
func Encode(buf []byte, op Opcode, immediate uint64) (written, required int, ok bool) {
	size, known := EncodedSize(op)
	if !known {
		return 0, 0, false
	}
	required = int(size)
	if len(buf) < required {
		return 0, required, false
	}
	if required > MaxInstructionLength {
		return 0, required, false
	}

	operand, _ := op.operand()
	if operand != OperandNone && !fitsOperand(immediate, operand) {
		return 0, required, false
	}

	n := 0
	if uint16(op) >= opcodeByteLimit {
		v := uint16(op)
		buf[0] = byte(v&0x7F) | 0x80
		buf[1] = byte(v >> 7)
		n = 2
	} else {
		buf[0] = byte(op)
		n = 1
	}
	switch operand.Size() {
	case 1:
		buf[n] = byte(immediate)
	case 2:
		binary.LittleEndian.PutUint16(buf[n:], uint16(immediate))
	case 4:
		binary.LittleEndian.PutUint32(buf[n:], uint32(immediate))
	case 8:
		binary.LittleEndian.PutUint64(buf[n:], immediate)
	}
	return required, required, true
}

// fitsOperand reports whether v's bit pattern is representable in the
// operand's width, as either a zero-extended unsigned value or a
// sign-extended two's-complement one (branch/call offsets are signed).
func fitsOperand(v uint64, o OperandType) bool {
	w := uint(o.Size()) * 8
	if w == 0 || w >= 64 {
		return true
	}
	mask := uint64(1)<<w - 1
	masked := v & mask
	return v == ZeroExtend64(masked, w) || v == uint64(SignExtend64(masked, w))
}

// Decode reads one instruction from buf. It returns the instruction and
// the number of bytes consumed, or a zero-value VMInstruction and 0 on
// any malformed encoding: an empty buffer, a two-byte opcode whose
// second byte has its high bit set (ill-formed per §4.F), an unknown
// opcode, or a truncated immediate.
func Decode(buf []byte) (VMInstruction, int) {
	if len(buf) == 0 {
		return VMInstruction{}, 0
	}

	var op Opcode
	var opSize uint8
	if buf[0]&0x80 != 0 {
		if len(buf) < 2 {
			return VMInstruction{}, 0
		}
		if buf[1]&0x80 != 0 {
			return VMInstruction{}, 0
		}
		op = Opcode(uint16(buf[0]&0x7F) | uint16(buf[1])<<7)
		opSize = 2
	} else {
		op = Opcode(buf[0])
		opSize = 1
	}

	operand, known := op.operand()
	if !known {
		return VMInstruction{}, 0
	}
	immSize := operand.Size()
	total := int(opSize) + int(immSize)
	if total > MaxInstructionLength || len(buf) < total {
		return VMInstruction{}, 0
	}

	rest := buf[opSize:]
	var imm uint64
	switch immSize {
	case 1:
		imm = uint64(rest[0])
	case 2:
		imm = uint64(binary.LittleEndian.Uint16(rest))
	case 4:
		imm = uint64(binary.LittleEndian.Uint32(rest))
	case 8:
		imm = binary.LittleEndian.Uint64(rest)
	}

	return VMInstruction{
		Opcode:        op,
		Immediate:     imm,
		OpcodeSize:    opSize,
		ImmediateSize: immSize,
		Valid:         true,
	}, total
}

// ToMnemonic renders a decoded instruction in "op imm" textual form,
// used by the disassembler.
func (i VMInstruction) ToMnemonic() string {
	if !i.Valid {
		return "<invalid>"
	}
	if i.ImmediateSize == 0 {
		return i.Opcode.String()
	}
	return i.Opcode.String() + " " + formatImmediate(i)
}

// formatImmediate renders the immediate as "0x<imm>" with width-appropriate
// hex padding (§4.F): two hex digits per encoded byte, raw bit pattern, no
// sign extension. Diagnostic-only, not executed semantics.
func formatImmediate(i VMInstruction) string {
	switch i.ImmediateSize {
	case 1:
		return fmt.Sprintf("0x%02x", i.Immediate)
	case 2:
		return fmt.Sprintf("0x%04x", i.Immediate)
	case 4:
		return fmt.Sprintf("0x%08x", i.Immediate)
	default:
		return fmt.Sprintf("0x%016x", i.Immediate)
	}
}
