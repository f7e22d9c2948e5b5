package frame

import (
	"fmt"
	"math/bits"
)

// Opcode is the 4-bit operation field of a frame programming instruction.
type Opcode uint8

// Frame programming instruction opcodes.
const (
	OpNOP Opcode = 0x0
	OpSOB Opcode = 0x1
	OpEOB Opcode = 0x2

	OpDATA Opcode = 0x4
	OpREAD Opcode = 0x8

	OpCKSWRL Opcode = 0x5
	OpCKSWRH Opcode = 0x6
	OpCKSWRE Opcode = 0x7
	OpCKSRDL Opcode = 0x9
	OpCKSRDH Opcode = 0xA
	OpCKSRDE Opcode = 0xB

	OpJR  Opcode = 0xC
	OpJAL Opcode = 0xD
	OpJAH Opcode = 0xE
	OpJAE Opcode = 0xF
)

var opcodeNames = map[Opcode]string{
	OpNOP: "NOP", OpSOB: "SOB", OpEOB: "EOB",
	OpDATA: "DATA", OpREAD: "READ",
	OpCKSWRL: "CKSWRL", OpCKSWRH: "CKSWRH", OpCKSWRE: "CKSWRE",
	OpCKSRDL: "CKSRDL", OpCKSRDH: "CKSRDH", OpCKSRDE: "CKSRDE",
	OpJR: "JR", OpJAL: "JAL", OpJAH: "JAH", OpJAE: "JAE",
}

func (op Opcode) String() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}

	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// Magic arguments of the bitstream bracketing instructions.
const (
	MagicSOB uint32 = 0xC4816D
	MagicEOB uint32 = 0xDABA47
)

// A frame bitstream is a sequence of 4-byte big-endian instructions. The
// most significant byte holds the 4-bit opcode, one odd parity bit per
// argument byte, and one odd parity bit covering bits 31:25:
//
//	 31    28 27      26      25      24      23    16 15     8 7      0
//	+--------+-------+-------+-------+--------+--------+--------+--------+
//	| opcode | par.  | par.  | par.  | parity | byte 2 | byte 1 | byte 0 |
//	|        | byte2 | byte1 | byte0 | 31:25  |        argument          |
//	+--------+-------+-------+-------+--------+--------+--------+--------+

// EncodeInstruction packs an opcode and a 24-bit argument into one
// instruction word, filling in the parity bits.
func EncodeInstruction(op Opcode, arg uint32) (uint32, error) {
	if op > 0xF {
		return 0, fmt.Errorf("unknown opcode: %d", op)
	}

	if arg >= 1<<24 {
		return 0, fmt.Errorf(
			"argument 0x%x cannot be represented with 24 bits", arg)
	}

	word := uint32(op)<<28 | arg
	word |= oddParity(arg>>16&0xFF) << 27
	word |= oddParity(arg>>8&0xFF) << 26
	word |= oddParity(arg&0xFF) << 25
	word |= oddParity(word>>25&0x7F) << 24

	return word, nil
}

// DecodeInstruction unpacks an instruction word, verifying the parity bits.
func DecodeInstruction(word uint32) (Opcode, uint32, error) {
	arg := word & 0xFFFFFF

	if word>>27&1 != oddParity(arg>>16&0xFF) ||
		word>>26&1 != oddParity(arg>>8&0xFF) ||
		word>>25&1 != oddParity(arg&0xFF) ||
		word>>24&1 != oddParity(word>>25&0x7F) {
		return 0, 0, fmt.Errorf("parity error in instruction 0x%08x", word)
	}

	return Opcode(word >> 28), arg, nil
}

// SOBInstruction returns the start-of-bitstream instruction.
func SOBInstruction() uint32 {
	word, _ := EncodeInstruction(OpSOB, MagicSOB)
	return word
}

// EOBInstruction returns the end-of-bitstream instruction.
func EOBInstruction() uint32 {
	word, _ := EncodeInstruction(OpEOB, MagicEOB)
	return word
}

// oddParity returns the bit that makes the total number of ones in v odd.
func oddParity(v uint32) uint32 {
	return uint32(bits.OnesCount32(v)+1) & 1
}
