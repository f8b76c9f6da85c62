package fnctx

import (
	"strconv"
	"strings"

	"github.com/l3aro/go-asm-flow/pkg/asm"
)

// WordSize is the number of bytes one pushed register occupies.
const WordSize = 4

// StackUsage returns the deepest stack extent in bytes reached while walking
// the instructions in order. Register pushes add WordSize each, pops release
// it, and explicit SP arithmetic (SUB #n, SP / ADD #n, SP) adjusts the frame.
func StackUsage(insts []asm.Instruction) int {
	depth, peak := 0, 0
	for _, inst := range insts {
		depth += stackDelta(inst)
		if depth < 0 {
			depth = 0
		}
		peak = max(peak, depth)
	}
	return peak
}

func stackDelta(inst asm.Instruction) int {
	op := inst.BaseMnemonic()
	ops := inst.Operands
	switch {
	case pushOps[op]:
		n := 0
		for _, o := range ops {
			n += len(ExpandRegisterList(o))
		}
		if op == "PUSHC" {
			n = len(ops)
		}
		return n * WordSize
	case popOps[op]:
		n := 0
		for _, o := range ops {
			n += len(ExpandRegisterList(o))
		}
		if op == "POPC" {
			n = len(ops)
		}
		return -n * WordSize
	case op == "RTSD":
		n := 0
		if len(ops) > 0 {
			n, _ = immediate(ops[0])
		}
		return -n
	}

	if len(ops) != 2 || !strings.EqualFold(ops[1], "SP") {
		return 0
	}
	n, ok := immediate(ops[0])
	if !ok {
		return 0
	}
	switch op {
	case "SUB":
		return n
	case "ADD":
		return -n
	}
	return 0
}

// immediate parses a "#n" operand in decimal, 0x hex or H-suffixed hex.
func immediate(op string) (int, bool) {
	s, ok := strings.CutPrefix(op, "#")
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if h, ok := strings.CutSuffix(strings.ToUpper(s), "H"); ok && h != "" {
		v, err := strconv.ParseInt(h, 16, 64)
		return int(v), err == nil
	}
	v, err := strconv.ParseInt(s, 0, 64)
	return int(v), err == nil
}
