package fnctx

import (
	"container/list"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/l3aro/go-asm-flow/pkg/asm"
	"github.com/l3aro/go-asm-flow/pkg/cfg"
)

// RefType is the kind of register reference made by an instruction.
type RefType string

const (
	RefTypeDefinition RefType = "definition" // Register written
	RefTypeUse        RefType = "use"        // Register read
)

// RegRef is a register reference at one instruction.
type RegRef struct {
	Name    string  `json:"name" yaml:"name"`
	RefType RefType `json:"ref_type" yaml:"ref_type"`
	Index   int     `json:"index" yaml:"index"` // Instruction index in the function
}

// RegisterUsage summarises how a function treats the machine registers.
type RegisterUsage struct {
	Inputs    []string `json:"inputs" yaml:"inputs"`       // Read on some path before any write
	Outputs   []string `json:"outputs" yaml:"outputs"`     // Return registers written by the function
	Preserved []string `json:"preserved" yaml:"preserved"` // Saved on the stack
	Modified  []string `json:"modified" yaml:"modified"`   // Written anywhere
}

// ReturnRegisters hold a function's result under the RX calling convention.
var ReturnRegisters = []string{"R1"}

var (
	bracketPattern = regexp.MustCompile(`\[([^\]]*)\]`)
	rangePattern   = regexp.MustCompile(`(?i)^R(\d+)\s*-\s*R(\d+)$`)
	generalPattern = regexp.MustCompile(`^R\d+$`)
)

// Mnemonics whose last register operand is written without being read.
var moveOps = map[string]bool{
	"MOV": true, "MOVU": true, "MVFC": true, "MVFACHI": true, "MVFACMI": true,
	"MVFACGU": true, "MVFACLO": true, "ITOF": true, "FTOI": true, "ROUND": true,
	"STZ": true, "STNZ": true,
}

// Mnemonics that read every operand and write none.
var compareOps = map[string]bool{
	"CMP": true, "TST": true, "FCMP": true, "BTST": true, "MVTC": true,
	"MVTACHI": true, "MVTACLO": true, "MULHI": true, "MULLO": true,
	"MACHI": true, "MACLO": true,
}

var (
	pushOps = map[string]bool{"PUSH": true, "PUSHM": true, "PUSHC": true}
	popOps  = map[string]bool{"POP": true, "POPM": true, "POPC": true}
)

// ExpandRegisterList expands a register list operand such as "R6-R8" or
// "R1,R4-R5" into individual register names. A range whose ends are not
// both general registers expands to nothing.
func ExpandRegisterList(operand string) []string {
	var regs []string
	for _, part := range strings.Split(operand, ",") {
		part = strings.TrimSpace(part)
		if m := rangePattern.FindStringSubmatch(part); m != nil {
			if !asm.IsRegister("R"+m[1]) || !asm.IsRegister("R"+m[2]) {
				continue
			}
			lo, _ := strconv.Atoi(m[1])
			hi, _ := strconv.Atoi(m[2])
			if lo > hi {
				lo, hi = hi, lo
			}
			for n := lo; n <= hi; n++ {
				regs = append(regs, "R"+strconv.Itoa(n))
			}
			continue
		}
		if asm.IsRegister(part) {
			regs = append(regs, strings.ToUpper(part))
		}
	}
	return regs
}

// References returns the register references of one instruction in operand
// order, uses before definitions.
func References(inst asm.Instruction) []RegRef {
	if inst.Mnemonic == "" || strings.HasPrefix(inst.Mnemonic, ".") || inst.IsBranch() {
		return nil
	}
	op := inst.BaseMnemonic()
	ops := inst.Operands

	var uses, defs []string
	switch {
	case pushOps[op]:
		for _, o := range ops {
			uses = append(uses, ExpandRegisterList(o)...)
		}
	case popOps[op]:
		for _, o := range ops {
			defs = append(defs, ExpandRegisterList(o)...)
		}
	case op == "RTSD":
		// RTSD #n, Rlo-Rhi restores the register range.
		if len(ops) > 1 {
			defs = append(defs, ExpandRegisterList(ops[1])...)
		}
	case inst.Call != "" || inst.Indirect || inst.Return:
		for _, o := range ops {
			uses = append(uses, operandUses(o)...)
		}
	case compareOps[op]:
		for _, o := range ops {
			uses = append(uses, operandUses(o)...)
		}
	default:
		if len(ops) == 0 {
			break
		}
		last := len(ops) - 1
		for _, o := range ops[:last] {
			uses = append(uses, operandUses(o)...)
		}
		dst := ops[last]
		if !asm.IsRegister(dst) {
			// Memory destination: only its address registers are read.
			uses = append(uses, operandUses(dst)...)
			break
		}
		// Two-operand arithmetic reads its destination; moves and the
		// three-operand forms do not.
		if !moveOps[op] && len(ops) != 3 {
			uses = append(uses, strings.ToUpper(dst))
		}
		defs = append(defs, strings.ToUpper(dst))
	}

	refs := make([]RegRef, 0, len(uses)+len(defs))
	for _, r := range uses {
		refs = append(refs, RegRef{Name: r, RefType: RefTypeUse, Index: inst.Index})
	}
	for _, r := range defs {
		refs = append(refs, RegRef{Name: r, RefType: RefTypeDefinition, Index: inst.Index})
	}
	return refs
}

// operandUses returns the registers read when evaluating an operand.
func operandUses(op string) []string {
	if strings.HasPrefix(op, "#") {
		return nil
	}
	if asm.IsRegister(op) {
		return []string{strings.ToUpper(op)}
	}
	var regs []string
	for _, m := range bracketPattern.FindAllStringSubmatch(op, -1) {
		for _, part := range strings.FieldsFunc(m[1], func(r rune) bool {
			return r == '+' || r == '-' || r == ',' || r == ' '
		}) {
			if asm.IsRegister(part) {
				regs = append(regs, strings.ToUpper(part))
			}
		}
	}
	return regs
}

// blockSets holds the upward-exposed uses and the definitions of one block.
type blockSets struct {
	gen  map[string]struct{}
	kill map[string]struct{}
}

// AnalyzeRegisters computes the general register usage of an analyzed
// function. Inputs are the registers live on entry, found with a backward
// liveness pass over the control flow graph. SP, PC and the control
// registers are not reported.
func AnalyzeRegisters(f *cfg.Function) RegisterUsage {
	sets := make(map[int]blockSets)
	modified := make(map[string]struct{})
	preserved := make(map[string]struct{})

	for _, b := range f.Blocks() {
		bs := blockSets{gen: make(map[string]struct{}), kill: make(map[string]struct{})}
		for _, inst := range b.Instructions() {
			op := inst.BaseMnemonic()
			for _, ref := range References(inst) {
				if !generalPattern.MatchString(ref.Name) {
					continue
				}
				switch {
				case pushOps[op]:
					// Saving a register is not a read of an input.
					preserved[ref.Name] = struct{}{}
				case ref.RefType == RefTypeUse:
					if _, ok := bs.kill[ref.Name]; !ok {
						bs.gen[ref.Name] = struct{}{}
					}
				default:
					bs.kill[ref.Name] = struct{}{}
					if !popOps[op] && op != "RTSD" {
						modified[ref.Name] = struct{}{}
					}
				}
			}
		}
		sets[b.ID()] = bs
	}

	liveIn := liveness(f, sets)

	usage := RegisterUsage{
		Inputs:    sortedRegs(liveIn[f.Entry()]),
		Preserved: sortedRegs(preserved),
		Modified:  sortedRegs(modified),
	}
	for _, r := range ReturnRegisters {
		if _, ok := modified[r]; ok {
			usage.Outputs = append(usage.Outputs, r)
		}
	}
	return usage
}

// liveness runs the worklist algorithm in[b] = gen[b] U (out[b] - kill[b]),
// out[b] = U in[s] over the successors s of b.
func liveness(f *cfg.Function, sets map[int]blockSets) map[int]map[string]struct{} {
	in := make(map[int]map[string]struct{})
	worklist := list.New()
	queued := make(map[int]bool)
	ids := f.BlockIDs()
	for i := len(ids) - 1; i >= 0; i-- {
		in[ids[i]] = make(map[string]struct{})
		worklist.PushBack(ids[i])
		queued[ids[i]] = true
	}

	for worklist.Len() > 0 {
		id := worklist.Remove(worklist.Front()).(int)
		queued[id] = false

		out := make(map[string]struct{})
		for _, s := range f.Successors(id) {
			for r := range in[s] {
				out[r] = struct{}{}
			}
		}
		next := make(map[string]struct{}, len(sets[id].gen))
		for r := range sets[id].gen {
			next[r] = struct{}{}
		}
		for r := range out {
			if _, killed := sets[id].kill[r]; !killed {
				next[r] = struct{}{}
			}
		}

		if len(next) == len(in[id]) {
			continue
		}
		in[id] = next
		for _, p := range f.Predecessors(id) {
			if !queued[p] {
				worklist.PushBack(p)
				queued[p] = true
			}
		}
	}
	return in
}

// sortedRegs orders registers numerically (R2 before R10), named registers
// last.
func sortedRegs(set map[string]struct{}) []string {
	regs := make([]string, 0, len(set))
	for r := range set {
		regs = append(regs, r)
	}
	slices.SortFunc(regs, func(a, b string) int {
		na, errA := strconv.Atoi(strings.TrimPrefix(a, "R"))
		nb, errB := strconv.Atoi(strings.TrimPrefix(b, "R"))
		switch {
		case errA == nil && errB == nil:
			return na - nb
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		}
		return strings.Compare(a, b)
	})
	return regs
}
