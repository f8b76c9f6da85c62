package cfg

import "slices"

// labelIndex maps every label declared in the function to its block.
// The first declaration of a duplicated label wins.
func labelIndex(blocks []*BasicBlock) map[string]*BasicBlock {
	idx := make(map[string]*BasicBlock, len(blocks))
	for _, b := range blocks {
		label := b.Label()
		if label == "" {
			continue
		}
		if _, ok := idx[label]; !ok {
			idx[label] = b
		}
	}
	return idx
}

// resolveEdges wires successor and predecessor sets from the last instruction
// of every block. Unresolved targets and malformed operands are recorded as
// defects on the block; analysis always continues.
func resolveEdges(blocks []*BasicBlock) {
	labels := labelIndex(blocks)
	byStart := make(map[int]*BasicBlock, len(blocks))
	for _, b := range blocks {
		byStart[b.start] = b
	}

	for _, b := range blocks {
		for _, inst := range b.insts {
			if inst.Malformed {
				b.defects = append(b.defects, Defect{
					Kind:    DefectMalformedBranchOperand,
					BlockID: b.id,
					Index:   inst.Index,
					Text:    inst.Text,
				})
			}
		}

		last := b.Last()
		next := byStart[b.end]

		switch {
		case last.Return:
			// No successor.
		case last.IsBranch():
			target, ok := labels[last.Branch.Target]
			if !ok {
				b.defects = append(b.defects, Defect{
					Kind:    DefectUnresolvedBranchTarget,
					BlockID: b.id,
					Index:   last.Index,
					Label:   last.Branch.Target,
					Text:    last.Text,
				})
			}
			if !last.IsConditional() {
				if ok {
					link(b, target, EdgeTypeUnconditional, "")
				}
				continue
			}
			if ok {
				link(b, target, EdgeTypeTrue, last.Branch.Cond)
				b.conds = insertSorted(b.conds, last.Branch.Cond)
			}
			if next != nil {
				link(b, next, EdgeTypeFalse, "")
			}
		default:
			if next != nil {
				link(b, next, EdgeTypeFallthrough, "")
			}
		}
	}
}

// link adds the edge from -> to, updating both sides together.
func link(from, to *BasicBlock, typ EdgeType, cond string) {
	from.edges = append(from.edges, Edge{From: from.id, To: to.id, Type: typ, Condition: cond})
	from.succs = insertSorted(from.succs, to.id)
	to.preds = insertSorted(to.preds, from.id)
}

func insertSorted[T int | string](s []T, v T) []T {
	i, found := slices.BinarySearch(s, v)
	if found {
		return s
	}
	return slices.Insert(s, i, v)
}
