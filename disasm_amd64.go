//go:build amd64

package dynflag

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

// verifyHook decodes the leading instruction of a freshly emitted stub
// and checks it against the patch engine's expectations. Emission happens
// once per flag, so the decode cost is irrelevant; a stub that fails here
// would crash the process the first time it runs.
func verifyHook(code []byte, wantLen int) error {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return fmt.Errorf("emitted hook does not decode: %w", err)
	}
	switch inst.Op {
	case x86asm.TEST, x86asm.JMP, x86asm.MOV:
	default:
		return fmt.Errorf("emitted hook decodes as %v, want TEST, JMP or MOV", inst.Op)
	}
	if inst.Len != wantLen {
		return fmt.Errorf("emitted hook is %d bytes, want %d", inst.Len, wantLen)
	}
	return nil
}

// disassemble renders a stub for debugging.
func disassemble(code []byte) (string, error) {
	var buf bytes.Buffer

	baseAddr := uintptr(unsafe.Pointer(unsafe.SliceData(code)))

	for i := 0; i < len(code); {
		inst, err := x86asm.Decode(code[i:], 64)
		if err != nil {
			return "", fmt.Errorf("decode error at offset %d: %w", i, err)
		}
		fmt.Fprintf(&buf, "0x%08x\t%-20s\t%s\n",
			baseAddr+uintptr(i), hex.EncodeToString(code[i:i+inst.Len]), inst.String())

		i += inst.Len
	}

	return buf.String(), nil
}
