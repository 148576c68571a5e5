package gvm

import "testing"

// codecSamples is the "table" referenced by S6: a representative
// opcode/immediate pair per operand width, spanning both the one-byte
// and two-byte opcode encodings.
var codecSamples = []struct {
	op  Opcode
	imm uint64
}{
	{Nop, 0},
	{Bp, 0},
	{Ldimm_I1, 0x81},
	{Ldimm_I2, 0xBEEF},
	{Ldimm_I4, 0x44332211},
	{Ldimm_I8, 0x0102030405060708},
	{Add_I4, 0},
	{Mod_F8, 0},
	{Ldarg, 3},
	{Ldvmsr, 31},
	{Stvmsr, 0},
}

func TestBytecodeRoundTrip(t *testing.T) {
	for _, c := range codecSamples {
		buf := make([]byte, MaxInstructionLength)
		written, required, ok := Encode(buf, c.op, c.imm)
		assert(t, ok, "encode %s failed", c.op)
		assert(t, written == required, "encode %s: written %d != required %d", c.op, written, required)

		decoded, consumed := Decode(buf[:written])
		assert(t, consumed == written, "decode %s: consumed %d != emitted %d", c.op, consumed, written)
		assert(t, decoded.Opcode == c.op, "decode %s: got opcode %s", c.op, decoded.Opcode)
		assert(t, decoded.Immediate == c.imm, "decode %s: got immediate %#x want %#x", c.op, decoded.Immediate, c.imm)
	}
}

// TestTwoByteOpcodeWireFormat pins down the 7+7-bit packing of §4.F for an
// opcode at or above the one-byte boundary: byte1 carries the low 7 bits
// with the marker bit set, byte2 carries the remaining bits plain.
func TestTwoByteOpcodeWireFormat(t *testing.T) {
	buf := make([]byte, MaxInstructionLength)
	written, _, ok := Encode(buf, Ldarg, 0)
	assert(t, ok, "encode Ldarg failed")
	assert(t, written >= 2, "Ldarg should need a two-byte opcode, got %d bytes", written)

	v := uint16(Ldarg)
	assert(t, buf[0] == byte(v&0x7F)|0x80, "byte1 got %#x want %#x", buf[0], byte(v&0x7F)|0x80)
	assert(t, buf[1] == byte(v>>7), "byte2 got %#x want %#x", buf[1], byte(v>>7))
	assert(t, buf[1]&0x80 == 0, "byte2 must not set its own high bit for a valid opcode")
}

func TestDecodeRejectsIllFormedSecondByte(t *testing.T) {
	buf := []byte{0x80, 0x80, 0, 0, 0, 0}
	_, consumed := Decode(buf)
	assert(t, consumed == 0, "decode should reject a second byte with its high bit set")
}

func TestEncodeReportsRequiredSizeOnTooSmallBuffer(t *testing.T) {
	buf := make([]byte, 1)
	written, required, ok := Encode(buf, Ldimm_I4, 5)
	assert(t, !ok, "encode into undersized buffer should fail")
	assert(t, written == 0, "undersized encode must write nothing, got %d bytes", written)
	assert(t, required == 5, "undersized encode should still report required size, got %d", required)
}

func TestEncodeRejectsImmediateThatDoesNotFit(t *testing.T) {
	buf := make([]byte, MaxInstructionLength)
	_, _, ok := Encode(buf, Ldimm_I1, 0x1FF)
	assert(t, !ok, "0x1FF should not fit an 8-bit immediate")
}

// TestToMnemonicRendersHexWithWidthPadding pins §4.F's "<name> 0x<imm>"
// disassembly format: raw bit pattern, zero-padded to the immediate's
// encoded width, no sign extension and no decimal fallback.
func TestToMnemonicRendersHexWithWidthPadding(t *testing.T) {
	cases := []struct {
		op   Opcode
		imm  uint64
		want string
	}{
		{Ldimm_I1, 0x81, "ldimm.i1 0x81"},
		{Ldimm_I2, 0xBEEF, "ldimm.i2 0xbeef"},
		{Ldimm_I4, 0x44332211, "ldimm.i4 0x44332211"},
		{Ldimm_I8, 0x0102030405060708, "ldimm.i8 0x0102030405060708"},
		{Ldarg, 3, "ldarg 0x00000003"},
	}
	for _, c := range cases {
		buf := make([]byte, MaxInstructionLength)
		written, _, ok := Encode(buf, c.op, c.imm)
		assert(t, ok, "encode %s failed", c.op)
		decoded, consumed := Decode(buf[:written])
		assert(t, consumed == written, "decode %s failed", c.op)
		got := decoded.ToMnemonic()
		assert(t, got == c.want, "ToMnemonic(%s, %#x) = %q, want %q", c.op, c.imm, got, c.want)
	}
}
