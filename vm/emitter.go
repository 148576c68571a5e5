package gvm

import (
	"github.com/dchest/siphash"
)

// VMBytecodeEmitter builds an instruction stream incrementally using the
// BeginEmit/Emit/EndEmit cycle (§4.G): each call appends one instruction,
// or reports the buffer space it would have needed without writing
// anything when the caller is only sizing the stream.
type VMBytecodeEmitter struct {
	buf      []byte
	sizeOnly bool
	open     bool
}

// BeginEmit starts a new emission pass. sizeOnly requests a dry run: Emit
// reports each instruction's size but writes and buffers nothing, so
// EndEmit on such an emitter reports 0.
func BeginEmit(sizeOnly bool) *VMBytecodeEmitter {
	e := &VMBytecodeEmitter{sizeOnly: sizeOnly, open: true}
	if !sizeOnly {
		e.buf = make([]byte, 0, 64)
	}
	return e
}

// Emit appends one instruction. It returns the number of bytes the
// instruction required; ok is false for an unknown opcode or an
// immediate that doesn't fit the opcode's operand width. On an emitter
// opened with sizeOnly, required is still reported and no bytes are
// written.
func (e *VMBytecodeEmitter) Emit(op Opcode, immediate uint64) (required int, ok bool) {
	if !e.open {
		return 0, false
	}
	size, known := EncodedSize(op)
	if !known {
		return 0, false
	}
	if e.sizeOnly {
		if !fitsOperandForOpcode(op, immediate) {
			return 0, false
		}
		return int(size), true
	}

	scratch := make([]byte, size)
	written, required, ok := Encode(scratch, op, immediate)
	if !ok {
		return required, false
	}
	e.buf = append(e.buf, scratch[:written]...)
	return written, true
}

func fitsOperandForOpcode(op Opcode, immediate uint64) bool {
	operand, known := op.operand()
	if !known {
		return false
	}
	return operand == OperandNone || fitsOperand(immediate, operand)
}

// Bytes returns the instructions emitted so far. Empty on a sizeOnly
// emitter.
func (e *VMBytecodeEmitter) Bytes() []byte { return e.buf }

// EndEmit implements §4.G's end_emit(buf, size) -> required_size: it
// writes the accumulated instruction stream into buf when size is large
// enough to hold it, and always reports the exact required length. No
// bytes are written when the buffer is too small, so a caller can probe
// with a nil/zero-size buf first and allocate exactly once.
func (e *VMBytecodeEmitter) EndEmit(buf []byte, size int) (requiredSize int) {
	e.open = false
	requiredSize = len(e.buf)
	if size >= requiredSize {
		copy(buf, e.buf)
	}
	return requiredSize
}

// ChecksumOf computes the SipHash-2-4 checksum of code under key k0/k1.
func ChecksumOf(code []byte, k0, k1 uint64) uint64 { return siphash.Hash(k0, k1, code) }

// VerifyChecksum recomputes the SipHash-2-4 checksum over code and
// compares it against want.
func VerifyChecksum(code []byte, k0, k1, want uint64) bool {
	return ChecksumOf(code, k0, k1) == want
}
