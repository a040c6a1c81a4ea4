package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/depfix/pkg/detect"
	depfixerrors "github.com/matzehuels/depfix/pkg/errors"
	"github.com/matzehuels/depfix/pkg/repair"
)

// ToDOT converts the fixes of the last round of result to Graphviz DOT.
func ToDOT(result *repair.Result) string {
	var buf bytes.Buffer
	buf.WriteString("digraph deps {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\"];\n")
	buf.WriteString("\n")

	declared := make(map[string]bool)
	node := func(id string, attrs ...string) {
		if declared[id] {
			return
		}
		declared[id] = true
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q;\n", id)
			return
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", id, strings.Join(attrs, ", "))
	}

	var edges []string
	for _, fix := range result.Changes {
		if fix.Round != result.Rounds {
			continue
		}
		target := fix.Failure.FailingTarget()
		node(target, "fillcolor=\"#e8eefc\"", fmt.Sprintf("tooltip=%q", fix.BuildFile))

		for _, l := range fix.Added {
			node(l)
			edges = append(edges, fmt.Sprintf("  %q -> %q [color=\"#2e7d32\", label=\"add\"];\n", target, l))
		}
		for _, l := range fix.Removed {
			node(l)
			edges = append(edges, fmt.Sprintf("  %q -> %q [color=\"#c62828\", style=dashed, label=\"remove\"];\n", target, l))
		}
		if ur, ok := fix.Failure.(detect.UnresolvedReferences); ok {
			for _, imp := range ur.Imports {
				id := "import " + imp
				node(id, "shape=note", "fillcolor=\"#eeeeee\"", fmt.Sprintf("label=%q", imp))
				edges = append(edges, fmt.Sprintf("  %q -> %q [color=grey, style=dotted];\n", target, id))
			}
		}
	}

	buf.WriteString("\n")
	for _, e := range edges {
		buf.WriteString(e)
	}
	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

// Write renders result to path in the format named by its extension.
func Write(ctx context.Context, path string, result *repair.Result) error {
	dot := ToDOT(result)

	var data []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".dot", ".gv":
		data = []byte(dot)
	case ".svg":
		svg, err := RenderSVG(ctx, dot)
		if err != nil {
			return err
		}
		data = svg
	default:
		return depfixerrors.New(depfixerrors.ErrCodeInvalidInput, "unsupported graph format %q (must be one of: .dot, .gv, .svg)", ext)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
