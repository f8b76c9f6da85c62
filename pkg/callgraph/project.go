package callgraph

import (
	"fmt"

	"github.com/l3aro/go-asm-flow/internal/scanner"
	"github.com/l3aro/go-asm-flow/pkg/asm"
	"github.com/l3aro/go-asm-flow/pkg/source"
)

// ProjectOptions configures LoadProject.
type ProjectOptions struct {
	Dialect    asm.Dialect
	Extensions []string // Empty selects scanner.DefaultExtensions
	IgnoreFile string   // Empty selects scanner.DefaultIgnoreFile
}

// LoadProject scans root for assembly files and parses each of them.
// root may also name a single file.
func LoadProject(root string, opts ProjectOptions) ([]*source.File, error) {
	scanOpts := scanner.DefaultOptions()
	if len(opts.Extensions) > 0 {
		scanOpts.Extensions = opts.Extensions
	}
	if opts.IgnoreFile != "" {
		scanOpts.IgnoreFileName = opts.IgnoreFile
	}
	if opts.Dialect.Branches == nil {
		opts.Dialect = asm.RX()
	}

	found, err := scanner.New(scanOpts).Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	files := make([]*source.File, 0, len(found))
	for _, fi := range found {
		f, err := source.Load(fi.FullPath, opts.Dialect)
		if err != nil {
			return nil, err
		}
		f.Path = fi.Path
		for _, fn := range f.Functions {
			fn.File = fi.Path
		}
		files = append(files, f)
	}
	return files, nil
}

// BuildProject loads root and builds its call graph.
func BuildProject(root string, opts ProjectOptions) (*Graph, []*source.File, error) {
	files, err := LoadProject(root, opts)
	if err != nil {
		return nil, nil, err
	}
	return Build(files...), files, nil
}
