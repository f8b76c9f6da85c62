package cfg

import "github.com/l3aro/go-asm-flow/pkg/asm"

// idAllocator hands out block ids for a single function.
type idAllocator struct {
	next int
}

func (a *idAllocator) allocate() int {
	id := a.next
	a.next++
	return id
}

// partition splits insts into basic blocks. A block starts at index 0, at
// every labelled instruction and at the first non-blank line after every
// branch or return, so trailing blank and comment lines stay with the block
// they follow. Ids are taken from ids in increasing start order.
func partition(insts []asm.Instruction, ids *idAllocator) []*BasicBlock {
	if len(insts) == 0 {
		return nil
	}

	// Pass 1: mark leaders.
	leaders := make([]bool, len(insts))
	leaders[0] = true
	for i, inst := range insts {
		if inst.Label != "" {
			leaders[i] = true
		}
		if inst.EndsBlock() {
			if j := nextMeaningful(insts, i+1); j < len(insts) {
				leaders[j] = true
			}
		}
	}

	// Pass 2: cut the sequence at each leader.
	var blocks []*BasicBlock
	start := 0
	for i := 1; i <= len(insts); i++ {
		if i < len(insts) && !leaders[i] {
			continue
		}
		blocks = append(blocks, &BasicBlock{
			id:    ids.allocate(),
			start: start,
			end:   i,
			insts: insts[start:i:i],
		})
		start = i
	}
	return blocks
}

func nextMeaningful(insts []asm.Instruction, from int) int {
	for from < len(insts) && insts[from].IsBlank() {
		from++
	}
	return from
}
