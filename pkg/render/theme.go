package render

// Theme holds colors for DOT rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by edge type.
	EdgeTaken    string // Taken side of a conditional branch
	EdgeNotTaken string // Fallthrough side of a conditional branch
	EdgeDirect   string // Unconditional branches and plain fallthrough
	EdgeBack     string // Edges into a loop header from its body

	// Node accents by role.
	EntryBorder string
	ExitFill    string
	LoopFill    string
	DefectColor string
}

// Paper is a light monochrome theme with sparse color.
var Paper = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeTaken:    "#0B3D91", // blue
	EdgeNotTaken: "#FC3D21", // red
	EdgeDirect:   "#424242", // dark gray
	EdgeBack:     "#00695C", // teal

	EntryBorder: "#0B3D91",
	ExitFill:    "#ECEFF1", // blue-gray 50
	LoopFill:    "#E0F2F1", // teal 50
	DefectColor: "#E65100", // deep orange
}
