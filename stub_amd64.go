//go:build amd64

package dynflag

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

const (
	opcodeJMP      = 0xe9 // JMP rel32
	opcodeTEST     = 0xa9 // TESTL $imm32, %eax
	opcodeMOVimm32 = 0xb8 // MOVL $imm32, %eax
	opcodeMOVimm8  = 0xb0 // MOVB $imm8, %al
	opcodeRET      = 0xc3
	opcodeINT3     = 0xcc
)

// jumpEngine emits the preferred hook encoding. The hook is either a
// testl that falls through (inactive) or a jmp rel32 into the slow block
// (active). Both occupy five bytes with an identical operand, so a flip
// rewrites exactly the leading opcode byte.
//
// Stub layout:
//
//	+0   a9/e9 06 00 00 00   hook: testl $6, %eax / jmp +6
//	+5   b8 <fall32>         movl $fall, %eax
//	+10  c3                  ret
//	+11  b8 <take32>         slow: movl $take, %eax
//	+16  c3                  ret
type jumpEngine struct{}

const (
	jumpHookSize = 5
	jumpStubSize = 24 // 17 bytes of code, INT3-padded

	// slowOffset is the distance from the end of the hook instruction to
	// the slow block. It is the operand of both encodings and never
	// changes after emission.
	slowOffset = 6
)

func (jumpEngine) hookSize() uintptr    { return jumpHookSize }
func (jumpEngine) activeOpcode() byte   { return opcodeJMP }
func (jumpEngine) inactiveOpcode() byte { return opcodeTEST }

func (jumpEngine) emit(a *arena, defaultOp byte, flipped bool) (*stub, error) {
	if err := a.beginMutate(); err != nil {
		return nil, err
	}
	defer a.endMutate()

	code, err := a.allocate(jumpStubSize)
	if err != nil {
		return nil, err
	}

	fall, take := uint32(0), uint32(1)
	if flipped {
		fall, take = take, fall
	}

	code[0] = defaultOp
	binary.LittleEndian.PutUint32(code[1:], slowOffset)
	code[5] = opcodeMOVimm32
	binary.LittleEndian.PutUint32(code[6:], fall)
	code[10] = opcodeRET
	code[11] = opcodeMOVimm32
	binary.LittleEndian.PutUint32(code[12:], take)
	code[16] = opcodeRET

	// Pad with INT3 to match what the compiler does.
	for i := 17; i < len(code); i++ {
		code[i] = opcodeINT3
	}

	if err := verifyHook(code, jumpHookSize); err != nil {
		return nil, err
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(code)))
	s := &stub{
		hook:        base,
		destination: base + jumpHookSize + slowOffset,
		code:        code,
	}
	s.eval, s.ref = evalFunc(code)
	return s, nil
}

func (jumpEngine) apply(rec *record, s patchState) {
	code := hookBytes(rec.hook, jumpHookSize)

	if code[0] != opcodeJMP && code[0] != opcodeTEST {
		panic(fmt.Sprintf("dynflag: corrupt hook at %#x for %s: opcode %#02x is neither jmp nor testl",
			rec.hook, rec.name, code[0]))
	}
	// The operand must already reach the slow block: a flip only ever
	// touches the opcode byte, never the offset.
	rel := int32(binary.LittleEndian.Uint32(code[1:]))
	if want := int32(rec.destination - (rec.hook + jumpHookSize)); rel != want {
		panic(fmt.Sprintf("dynflag: corrupt hook at %#x for %s: operand %d does not reach the slow path (want %d)",
			rec.hook, rec.name, rel, want))
	}

	if s == stateActive {
		code[0] = opcodeJMP
	} else {
		code[0] = opcodeTEST
	}
}

func (jumpEngine) initialState(rec *record) patchState {
	switch rec.initialOpcode {
	case opcodeJMP:
		return stateActive
	case opcodeTEST:
		return stateInactive
	}
	panic(fmt.Sprintf("dynflag: record %s: initial opcode %#02x is neither jmp nor testl",
		rec.name, rec.initialOpcode))
}

// immEngine emits the fallback hook encoding: a movb of a constant into
// %al, normalized to a boolean before returning. Flipping rewrites the
// immediate byte. 0xF4 is HLT, a privileged instruction that is rare in
// real machine code, so a wrong patch offset crashes loudly instead of
// misbehaving silently.
//
// Stub layout:
//
//	+0   b0 <imm8>   hook: movb $imm, %al
//	+2   84 c0       testb %al, %al
//	+4   0f 95 c0    setne %al  (sete when flipped)
//	+7   c3          ret
type immEngine struct{}

const (
	immActive   = 0xf4
	immInactive = 0x00

	// The immediate sits one byte after the mov opcode, or two when the
	// instruction carries a prefix byte. Plan pages for the worst case.
	immHookSize = 3

	immStubSize = 8
)

func (immEngine) hookSize() uintptr    { return immHookSize }
func (immEngine) activeOpcode() byte   { return immActive }
func (immEngine) inactiveOpcode() byte { return immInactive }

func (immEngine) emit(a *arena, defaultOp byte, flipped bool) (*stub, error) {
	if err := a.beginMutate(); err != nil {
		return nil, err
	}
	defer a.endMutate()

	code, err := a.allocate(immStubSize)
	if err != nil {
		return nil, err
	}

	code[0] = opcodeMOVimm8
	code[1] = defaultOp
	code[2], code[3] = 0x84, 0xc0 // testb %al, %al
	setcc := byte(0x95)           // setne %al
	if flipped {
		setcc = 0x94 // sete %al
	}
	code[4], code[5], code[6] = 0x0f, setcc, 0xc0
	code[7] = opcodeRET

	if err := verifyHook(code, 2); err != nil {
		return nil, err
	}

	s := &stub{
		hook: uintptr(unsafe.Pointer(unsafe.SliceData(code))),
		code: code,
	}
	s.eval, s.ref = evalFunc(code)
	return s, nil
}

func (immEngine) apply(rec *record, s patchState) {
	code := hookBytes(rec.hook, immHookSize)

	field := 1
	if code[field] != immActive && code[field] != immInactive {
		// Prefixed mov: the immediate is one byte further along.
		field = 2
	}
	if code[field] != immActive && code[field] != immInactive {
		panic(fmt.Sprintf("dynflag: corrupt hook at %#x for %s: %#02x is neither the active nor the inactive immediate",
			rec.hook, rec.name, code[field]))
	}

	if s == stateActive {
		code[field] = immActive
	} else {
		code[field] = immInactive
	}
}

func (immEngine) initialState(rec *record) patchState {
	switch rec.initialOpcode {
	case immActive:
		return stateActive
	case immInactive:
		return stateInactive
	}
	panic(fmt.Sprintf("dynflag: record %s: initial immediate %#02x is neither active nor inactive",
		rec.name, rec.initialOpcode))
}

// evalFunc reinterprets a stub's machine code as a callable func() bool.
//
// A Go func value points at a funcval whose first word is the code
// address, so a pointer to a *byte holding the stub's base is exactly the
// representation we need. The returned cell must stay reachable for as
// long as the func value; callers keep it alongside eval.
func evalFunc(code []byte) (func() bool, **byte) {
	codeData := unsafe.SliceData(code)
	ref := &codeData
	eval := *(*func() bool)(unsafe.Pointer(uintptr(unsafe.Pointer(&ref))))
	return eval, ref
}
