package asm

import (
	"regexp"
	"strings"
)

var (
	labelPattern    = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*):`)
	identPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	registerPattern = regexp.MustCompile(`(?i)^(R(1[0-5]|[0-9])|SP|FP|PC|PSW|USP|ISP)$`)
)

// Branch describes the control transfer of a branch instruction.
type Branch struct {
	Mnemonic string `json:"mnemonic"` // Base mnemonic without size suffix
	Cond     string `json:"cond"`     // Condition code, empty when unconditional
	Target   string `json:"target"`   // Referenced label
}

// Instruction is one line of a function body.
type Instruction struct {
	Index     int      `json:"index"`
	Text      string   `json:"text"`
	Label     string   `json:"label,omitempty"`
	Mnemonic  string   `json:"mnemonic,omitempty"`
	Operands  []string `json:"operands,omitempty"`
	Branch    *Branch  `json:"branch,omitempty"`
	Return    bool     `json:"return,omitempty"`
	Call      string   `json:"call,omitempty"`
	Indirect  bool     `json:"indirect,omitempty"`  // Call through a register or computed operand
	Malformed bool     `json:"malformed,omitempty"` // Branch mnemonic whose operand could not be parsed
}

// IsBranch reports whether the instruction transfers control to a label.
func (i Instruction) IsBranch() bool {
	return i.Branch != nil
}

// IsConditional reports whether the instruction is a conditional branch.
func (i Instruction) IsConditional() bool {
	return i.Branch != nil && i.Branch.Cond != ""
}

// IsTerminator reports whether control never falls through to the next
// instruction: returns and unconditional branches.
func (i Instruction) IsTerminator() bool {
	return i.Return || (i.Branch != nil && i.Branch.Cond == "")
}

// EndsBlock reports whether the instruction closes a basic block.
func (i Instruction) EndsBlock() bool {
	return i.Return || i.Branch != nil
}

// IsBlank reports whether the line carries neither a label nor an instruction.
func (i Instruction) IsBlank() bool {
	return i.Label == "" && i.Mnemonic == ""
}

// BaseMnemonic returns the mnemonic without its size suffix (BRA.S -> BRA).
func (i Instruction) BaseMnemonic() string {
	return baseMnemonic(i.Mnemonic)
}

// Segment turns raw lines into instructions indexed from zero.
func Segment(lines []string, d Dialect) []Instruction {
	out := make([]Instruction, len(lines))
	for i, line := range lines {
		out[i] = d.Parse(i, line)
	}
	return out
}

// Parse decodes a single line. A branch mnemonic whose operand is missing,
// a register or not an identifier is kept as plain content and flagged
// Malformed.
func (d Dialect) Parse(index int, raw string) Instruction {
	inst := Instruction{Index: index, Text: raw}

	body := strings.TrimSpace(StripComment(raw))
	if m := labelPattern.FindStringSubmatch(body); m != nil {
		inst.Label = m[1]
		body = strings.TrimSpace(body[len(m[0]):])
	}
	if body == "" {
		return inst
	}

	fields := strings.Fields(body)
	inst.Mnemonic = strings.ToUpper(fields[0])
	inst.Operands = splitOperands(strings.TrimSpace(body[len(fields[0]):]))

	base := baseMnemonic(inst.Mnemonic)
	if cond, ok := d.Branches[base]; ok {
		target, ok := labelOperand(inst.Operands)
		if !ok {
			inst.Malformed = true
			return inst
		}
		inst.Branch = &Branch{Mnemonic: base, Cond: cond, Target: target}
		return inst
	}
	if d.Returns[base] {
		inst.Return = true
		return inst
	}
	if d.Calls[base] {
		if target, ok := labelOperand(inst.Operands); ok {
			inst.Call = target
		} else {
			inst.Indirect = true
		}
	}
	return inst
}

// StripComment removes a trailing ';' comment, ignoring semicolons inside
// quoted literals.
func StripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ';':
			return line[:i]
		}
	}
	return line
}

// IsRegister reports whether s names a machine register.
func IsRegister(s string) bool {
	return registerPattern.MatchString(s)
}

// IsIdentifier reports whether s is a valid label name.
func IsIdentifier(s string) bool {
	return identPattern.MatchString(s)
}

func baseMnemonic(m string) string {
	if i := strings.IndexByte(m, '.'); i > 0 {
		return m[:i]
	}
	return m
}

func splitOperands(s string) []string {
	if s == "" {
		return nil
	}
	var ops []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			ops = append(ops, p)
		}
	}
	return ops
}

func labelOperand(ops []string) (string, bool) {
	if len(ops) == 0 {
		return "", false
	}
	if !identPattern.MatchString(ops[0]) || IsRegister(ops[0]) {
		return "", false
	}
	return ops[0], true
}
