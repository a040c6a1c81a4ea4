// Package render draws the dependency changes of a repair run as a graph.
//
// Every failing target becomes a box with an edge to each dependency it
// gains (green) or loses (red, dashed). Unresolved imports hang off their
// target as grey notes. [ToDOT] produces Graphviz DOT text; [RenderSVG]
// lays it out in-process with [github.com/goccy/go-graphviz], so no
// Graphviz installation is needed.
//
//	dot := render.ToDOT(result)
//	svg, err := render.RenderSVG(ctx, dot)
//
// [Write] picks the format from a file extension (.dot, .gv or .svg).
package render
