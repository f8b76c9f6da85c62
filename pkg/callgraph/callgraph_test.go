package callgraph

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/l3aro/go-asm-flow/pkg/asm"
	"github.com/l3aro/go-asm-flow/pkg/source"
)

func testDataDir() string {
	return filepath.Join("..", "..", "testdata", "rx")
}

func loadProject(t *testing.T) *Graph {
	t.Helper()
	g, files, err := BuildProject(testDataDir(), ProjectOptions{Dialect: asm.RX()})
	if err != nil {
		t.Fatalf("BuildProject() failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(files))
	}
	return g
}

func TestBuildProject(t *testing.T) {
	g := loadProject(t)

	want := []string{"_main", "LOOP_EXAMPLE", "PROCESS_DATA", "CHECK_SIGN", "EXTERNAL_FN"}
	if got := g.Functions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Functions() = %v, want %v", got, want)
	}

	entry, ok := g.Lookup("EXTERNAL_FN")
	if !ok {
		t.Fatal("EXTERNAL_FN not indexed")
	}
	if entry.FilePath != "util.src" || entry.LineNumber != 4 || !entry.Global {
		t.Errorf("Unexpected entry %+v", entry)
	}
}

func TestCallersAndCallees(t *testing.T) {
	g := loadProject(t)

	tests := []struct {
		name    string
		callees []string
		callers []string
	}{
		{"_main", []string{"CHECK_SIGN", "LOOP_EXAMPLE"}, nil},
		{"LOOP_EXAMPLE", []string{"PROCESS_DATA"}, []string{"_main"}},
		{"PROCESS_DATA", nil, []string{"EXTERNAL_FN", "LOOP_EXAMPLE"}},
		{"CHECK_SIGN", []string{"EXTERNAL_FN"}, []string{"_main"}},
		{"EXTERNAL_FN", []string{"PROCESS_DATA"}, []string{"CHECK_SIGN"}},
	}

	for _, tt := range tests {
		if got := g.Callees(tt.name); !reflect.DeepEqual(got, tt.callees) {
			t.Errorf("Callees(%s) = %v, want %v", tt.name, got, tt.callees)
		}
		if got := g.Callers(tt.name); !reflect.DeepEqual(got, tt.callers) {
			t.Errorf("Callers(%s) = %v, want %v", tt.name, got, tt.callers)
		}
	}

	if got := g.Roots(); !reflect.DeepEqual(got, []string{"_main"}) {
		t.Errorf("Roots() = %v", got)
	}
	if got := g.Reachable("_main"); !reflect.DeepEqual(got, []string{"CHECK_SIGN", "EXTERNAL_FN", "LOOP_EXAMPLE", "PROCESS_DATA"}) {
		t.Errorf("Reachable(_main) = %v", got)
	}
}

func TestEdges(t *testing.T) {
	g := loadProject(t)

	edges := g.Edges()
	if len(edges) != 5 {
		t.Fatalf("Expected 5 edges, got %d: %v", len(edges), edges)
	}

	cross := Edge{
		SourceFile: "sample.src",
		SourceFunc: "CHECK_SIGN",
		DestFile:   "util.src",
		DestFunc:   "EXTERNAL_FN",
		LineNumber: 41,
	}
	found := false
	for _, e := range edges {
		if e == cross {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected cross-file edge %+v in %v", cross, edges)
	}
}

func TestUnresolved(t *testing.T) {
	g := loadProject(t)

	unresolved := g.Unresolved()
	if len(unresolved) != 1 {
		t.Fatalf("Expected 1 unresolved call, got %v", unresolved)
	}
	u := unresolved[0]
	if u.Reason != ReasonIndirect || u.SourceFunc != "CHECK_SIGN" || u.LineNumber != 40 {
		t.Errorf("Unexpected unresolved call %+v", u)
	}

	// Without util.src the external call is undefined.
	f, err := source.Load(filepath.Join(testDataDir(), "sample.src"), asm.RX())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	single := Build(f)
	var undefined []string
	for _, u := range single.Unresolved() {
		if u.Reason == ReasonUndefined {
			undefined = append(undefined, u.Target)
		}
	}
	if !reflect.DeepEqual(undefined, []string{"EXTERNAL_FN"}) {
		t.Errorf("Undefined targets = %v", undefined)
	}
}

func TestDuplicates(t *testing.T) {
	tmpDir := t.TempDir()
	for name, content := range map[string]string{
		"a.src": "helper:\n  RTS\n",
		"b.src": "helper:\n  RTS\ncaller:\n  JSR helper\n  RTS\n",
	} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	g, _, err := BuildProject(tmpDir, ProjectOptions{})
	if err != nil {
		t.Fatalf("BuildProject() failed: %v", err)
	}

	entry, _ := g.Lookup("helper")
	if entry.FilePath != "a.src" {
		t.Errorf("Expected first definition to win, got %s", entry.FilePath)
	}
	dups := g.Duplicates()
	if len(dups["helper"]) != 1 || dups["helper"][0].FilePath != "b.src" {
		t.Errorf("Duplicates() = %v", dups)
	}
	if got := g.Callers("helper"); !reflect.DeepEqual(got, []string{"caller"}) {
		t.Errorf("Callers(helper) = %v", got)
	}
}

func TestBuildEmpty(t *testing.T) {
	g := Build()
	if len(g.Functions()) != 0 || len(g.Edges()) != 0 {
		t.Error("Expected empty graph")
	}
	if g.Callees("missing") != nil {
		t.Error("Expected nil callees for unknown function")
	}
}
