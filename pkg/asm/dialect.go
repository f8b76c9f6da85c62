// Package asm splits the lines of an assembly function into indexed
// instruction records. It recognizes label declarations, branches, returns
// and calls; everything else is kept as plain content.
package asm

import (
	"fmt"
	"sort"
	"strings"
)

// Dialect describes the mnemonics that carry control-flow meaning for an
// instruction set. Mnemonics are stored upper-case without size suffix.
type Dialect struct {
	// Branches maps a branch mnemonic to its condition code.
	// An empty condition code marks an unconditional branch.
	Branches map[string]string
	Returns  map[string]bool
	Calls    map[string]bool
}

// RX returns the Renesas RX dialect used by default.
func RX() Dialect {
	return Dialect{
		Branches: map[string]string{
			"BRA":  "",
			"BEQ":  "EQ",
			"BZ":   "EQ",
			"BNE":  "NE",
			"BNZ":  "NE",
			"BGT":  "GT",
			"BGE":  "GE",
			"BLT":  "LT",
			"BLE":  "LE",
			"BPL":  "PL",
			"BPZ":  "PL",
			"BMI":  "MI",
			"BN":   "MI",
			"BGTU": "GTU",
			"BLEU": "LEU",
			"BGEU": "GEU",
			"BC":   "GEU",
			"BLTU": "LTU",
			"BNC":  "LTU",
			"BO":   "O",
			"BNO":  "NO",
		},
		Returns: map[string]bool{
			"RTS":  true,
			"RTSD": true,
			"RTE":  true,
			"RTFI": true,
		},
		Calls: map[string]bool{
			"JSR": true,
			"BSR": true,
		},
	}
}

// With returns a copy of d extended with extra branch, return and call
// mnemonics. Entries in branches override the ones already present.
// Mnemonics are upper-cased and any size suffix is dropped, so "bra.s"
// registers BRA.
func (d Dialect) With(branches map[string]string, returns, calls []string) Dialect {
	out := Dialect{
		Branches: make(map[string]string, len(d.Branches)+len(branches)),
		Returns:  make(map[string]bool, len(d.Returns)+len(returns)),
		Calls:    make(map[string]bool, len(d.Calls)+len(calls)),
	}
	for m, c := range d.Branches {
		out.Branches[m] = c
	}
	for m, c := range branches {
		out.Branches[tableKey(m)] = strings.ToUpper(c)
	}
	for m := range d.Returns {
		out.Returns[m] = true
	}
	for _, m := range returns {
		out.Returns[tableKey(m)] = true
	}
	for m := range d.Calls {
		out.Calls[m] = true
	}
	for _, m := range calls {
		out.Calls[tableKey(m)] = true
	}
	return out
}

func tableKey(m string) string {
	return baseMnemonic(strings.ToUpper(strings.TrimSpace(m)))
}

// Fingerprint returns a stable string describing the dialect. Two dialects
// with the same fingerprint segment every line identically.
func (d Dialect) Fingerprint() string {
	parts := make([]string, 0, len(d.Branches)+len(d.Returns)+len(d.Calls))
	for m, c := range d.Branches {
		parts = append(parts, fmt.Sprintf("b:%s=%s", m, c))
	}
	for m := range d.Returns {
		parts = append(parts, "r:"+m)
	}
	for m := range d.Calls {
		parts = append(parts, "c:"+m)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Conditions returns the distinct condition codes known to the dialect.
func (d Dialect) Conditions() []string {
	seen := make(map[string]bool)
	var conds []string
	for _, c := range d.Branches {
		if c != "" && !seen[c] {
			seen[c] = true
			conds = append(conds, c)
		}
	}
	sort.Strings(conds)
	return conds
}
