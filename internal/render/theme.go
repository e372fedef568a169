package render

// Theme holds colors for graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by control flow category.
	EdgeFlow   string // unconditional flow
	EdgeTrue   string // conditional, taken
	EdgeFalse  string // conditional, not taken
	EdgeCall   string // subroutine calls
	EdgeReturn string // subroutine returns
	EdgeState  string // stored-state captures
	EdgeDead   string // provably never taken

	// Node accents.
	ExitFill string // blocks ending in RETN

	// Cluster styling.
	ClusterBorder string
	ClusterLabel  string
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeFlow:   "#424242", // dark gray
	EdgeTrue:   "#0B3D91", // NASA blue
	EdgeFalse:  "#FC3D21", // NASA red
	EdgeCall:   "#00695C", // teal
	EdgeReturn: "#9E9E9E", // gray
	EdgeState:  "#E65100", // deep orange
	EdgeDead:   "#BDBDBD", // light gray

	ExitFill: "#ECEFF1", // blue-gray 50

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",
}
