package gvm

func isFrameOpcode(op Opcode) bool { return op >= Initarg && op <= Ldvarp }

// tableRecordSize is the fixed on-stack width of one argument/local-var
// table entry: a little-endian {size, address} pair (§6.4).
const tableRecordSize = 8

func pushTableRecord(table *VMStack, e TableEntry) bool {
	buf := make([]byte, tableRecordSize)
	ToBytesLE(e.Size, buf[0:4])
	ToBytesLE(e.Address, buf[4:8])
	return table.PushBytes(buf)
}

// execFrame implements §4.H.6. Arg/Var reserve their storage on the
// value stack itself (Arg/Var's address is a Stack.top_offset snapshot,
// not a guest heap address) and record {size, address} as an 8-byte
// entry on the dedicated argument/local-variable table stack; Ldarg et
// al. index ctx.ArgTable/VarTable, a Go-level mirror of those on-stack
// records kept in declaration order for O(1) access.
func (vm *VM) execFrame(inst VMInstruction) {
	ctx := vm.Context

	switch inst.Opcode {
	case Initarg:
		frame, ok := peekShadowFrame(ctx.ShadowStack)
		if !ok {
			ctx.Raise(ExceptionStackOverflow)
			return
		}
		if !ctx.ArgumentStack.SetTopOffset(frame.ATP) || !ctx.LocalVariableStack.SetTopOffset(frame.LVTP) {
			ctx.Raise(ExceptionInvalidAccess)
			return
		}
		ctx.ArgTable = ctx.ArgTable[:0]
		ctx.VarTable = ctx.VarTable[:0]
		ctx.XTableState &^= ArgumentTableReady

	case Arg:
		if len(ctx.ArgTable) >= MaxArgCount || inst.Immediate == 0 || uint64(inst.Immediate) > MaxSingleArg {
			ctx.Raise(ExceptionInvalidInstruction)
			return
		}
		off, ok := ctx.Stack.Reserve(uint32(inst.Immediate))
		if !ok {
			ctx.Raise(ExceptionStackOverflow)
			return
		}
		entry := TableEntry{Size: uint32(inst.Immediate), Address: off}
		if !pushTableRecord(ctx.ArgumentStack, entry) {
			ctx.Raise(ExceptionStackOverflow)
			return
		}
		ctx.ArgTable = append(ctx.ArgTable, entry)
		ctx.XTableState |= ArgumentTableReady

	case Var:
		if len(ctx.VarTable) >= MaxLocalVarCount || inst.Immediate == 0 || uint64(inst.Immediate) > MaxSingleLocalVar {
			ctx.Raise(ExceptionInvalidInstruction)
			return
		}
		off, ok := ctx.Stack.Reserve(uint32(inst.Immediate))
		if !ok {
			ctx.Raise(ExceptionStackOverflow)
			return
		}
		entry := TableEntry{Size: uint32(inst.Immediate), Address: off}
		if !pushTableRecord(ctx.LocalVariableStack, entry) {
			ctx.Raise(ExceptionStackOverflow)
			return
		}
		ctx.VarTable = append(ctx.VarTable, entry)
		ctx.XTableState |= LocalVariableTableReady

	case Ldarg:
		vm.loadTableEntry(ctx.ArgTable, inst.Immediate, ArgumentTableReady)
	case Starg:
		vm.storeTableEntry(ctx.ArgTable, inst.Immediate, ArgumentTableReady)
	case Ldvar:
		vm.loadTableEntry(ctx.VarTable, inst.Immediate, LocalVariableTableReady)
	case Stvar:
		vm.storeTableEntry(ctx.VarTable, inst.Immediate, LocalVariableTableReady)

	case Ldargp:
		vm.loadTableAddress(ctx.ArgTable, inst.Immediate, ArgumentTableReady)
	case Ldvarp:
		vm.loadTableAddress(ctx.VarTable, inst.Immediate, LocalVariableTableReady)

	default:
		ctx.Raise(ExceptionInvalidInstruction)
	}
}

func (vm *VM) tableEntry(table []TableEntry, index uint64, need XTableStateBits) (TableEntry, bool) {
	ctx := vm.Context
	if ctx.XTableState&need == 0 || index >= uint64(len(table)) {
		ctx.Raise(ExceptionInvalidInstruction)
		return TableEntry{}, false
	}
	return table[index], true
}

func (vm *VM) loadTableEntry(table []TableEntry, index uint64, need XTableStateBits) {
	ctx := vm.Context
	entry, ok := vm.tableEntry(table, index, need)
	if !ok {
		return
	}
	data, ok := ctx.Stack.ReadAt(entry.Address, entry.Size)
	if !ok || !ctx.Stack.PushBytes(data) {
		ctx.Raise(ExceptionStackOverflow)
	}
}

func (vm *VM) storeTableEntry(table []TableEntry, index uint64, need XTableStateBits) {
	ctx := vm.Context
	entry, ok := vm.tableEntry(table, index, need)
	if !ok {
		return
	}
	data, ok := ctx.Stack.PopBytes(entry.Size)
	if !ok || !ctx.Stack.WriteAt(entry.Address, data) {
		ctx.Raise(ExceptionStackOverflow)
	}
}

// loadTableAddress implements Ldargp/Ldvarp: push address, then size,
// without dereferencing (§4.H.6).
func (vm *VM) loadTableAddress(table []TableEntry, index uint64, need XTableStateBits) {
	ctx := vm.Context
	entry, ok := vm.tableEntry(table, index, need)
	if !ok {
		return
	}
	if !PushInt(ctx.Stack, uint64(entry.Address)) || !PushInt(ctx.Stack, uint64(entry.Size)) {
		ctx.Raise(ExceptionStackOverflow)
	}
}
