package cfg

import "strings"

// BlockInfo is a serialisable snapshot of a basic block.
type BlockInfo struct {
	ID           int      `json:"id" yaml:"id" msgpack:"id"`
	Role         Role     `json:"role" yaml:"role" msgpack:"role"`                                  // Reported role
	Roles        []Role   `json:"roles" yaml:"roles" msgpack:"roles"`                               // Every role held, strongest first
	Label        string   `json:"label,omitempty" yaml:"label,omitempty" msgpack:"label,omitempty"` // Label declared by the first instruction
	Start        int      `json:"start" yaml:"start" msgpack:"start"`                               // First instruction index
	End          int      `json:"end" yaml:"end" msgpack:"end"`                                     // One past the last instruction index
	Instructions []string `json:"instructions" yaml:"instructions" msgpack:"instructions"`
	Successors   []int    `json:"successors" yaml:"successors" msgpack:"successors"`
	Predecessors []int    `json:"predecessors" yaml:"predecessors" msgpack:"predecessors"`
	Conditions   []string `json:"conditions,omitempty" yaml:"conditions,omitempty" msgpack:"conditions,omitempty"`
	Defects      []Defect `json:"defects,omitempty" yaml:"defects,omitempty" msgpack:"defects,omitempty"`
}

// Info is a serialisable snapshot of an analyzed function.
type Info struct {
	FunctionName         string      `json:"function_name" yaml:"function_name" msgpack:"function_name"`
	SourceStart          int         `json:"source_start" yaml:"source_start" msgpack:"source_start"`
	SourceEnd            int         `json:"source_end" yaml:"source_end" msgpack:"source_end"`
	LoopStrategy         string      `json:"loop_strategy" yaml:"loop_strategy" msgpack:"loop_strategy"`
	Blocks               []BlockInfo `json:"blocks" yaml:"blocks" msgpack:"blocks"`
	Edges                []Edge      `json:"edges" yaml:"edges" msgpack:"edges"`
	EntryBlockID         int         `json:"entry_block_id" yaml:"entry_block_id" msgpack:"entry_block_id"`
	ExitBlockIDs         []int       `json:"exit_block_ids" yaml:"exit_block_ids" msgpack:"exit_block_ids"`
	Loops                []Loop      `json:"loops" yaml:"loops" msgpack:"loops"`
	Defects              []Defect    `json:"defects,omitempty" yaml:"defects,omitempty" msgpack:"defects,omitempty"`
	CyclomaticComplexity int         `json:"cyclomatic_complexity" yaml:"cyclomatic_complexity" msgpack:"cyclomatic_complexity"`
}

// Block returns the snapshot of the block with the given id.
func (i *Info) Block(id int) (BlockInfo, bool) {
	for _, b := range i.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return BlockInfo{}, false
}

// CyclomaticComplexity returns E - N + 2 over the resolved edges.
func (f *Function) CyclomaticComplexity() int {
	edges := 0
	for _, b := range f.blocks {
		edges += len(b.succs)
	}
	return edges - len(f.blocks) + 2
}

// Info returns a snapshot of f suitable for encoding.
func (f *Function) Info() Info {
	start, end := f.SourceRange()
	info := Info{
		FunctionName:         f.name,
		SourceStart:          start,
		SourceEnd:            end,
		LoopStrategy:         f.strategy,
		Blocks:               make([]BlockInfo, 0, len(f.blocks)),
		Edges:                f.Edges(),
		EntryBlockID:         f.entry,
		ExitBlockIDs:         f.Exits(),
		Loops:                f.Loops(),
		Defects:              f.Defects(),
		CyclomaticComplexity: f.CyclomaticComplexity(),
	}
	for _, b := range f.blocks {
		insts := make([]string, 0, len(b.insts))
		for _, inst := range b.insts {
			if text := strings.TrimSpace(inst.Text); text != "" {
				insts = append(insts, text)
			}
		}
		info.Blocks = append(info.Blocks, BlockInfo{
			ID:           b.id,
			Role:         b.Role(),
			Roles:        b.Roles(),
			Label:        b.Label(),
			Start:        b.start,
			End:          b.end,
			Instructions: insts,
			Successors:   b.Successors(),
			Predecessors: b.Predecessors(),
			Conditions:   b.Conditions(),
			Defects:      b.Defects(),
		})
	}
	return info
}
