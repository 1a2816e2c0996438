package unittest

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"
)

// TreeOptions configures RenderTree
type TreeOptions struct {
	Column int
	Color  bool
}

type painter bool

func (p painter) paint(color, text string) string {
	if !p {
		return text
	}
	return color + text + ANSIReset
}

// PrintLegend writes the three-line glyph legend followed by a blank line
func PrintLegend(w io.Writer, color bool) {
	p := painter(color)
	fmt.Fprintf(w, "%s - success                %s - unexpected output\n",
		p.paint(ANSIGreen, "K"), p.paint(ANSIYellow, "K"))
	fmt.Fprintf(w, "%s - expected build error   %s - build error\n",
		p.paint(ANSIGray, "B"), p.paint(ANSIRed, "B"))
	fmt.Fprintf(w, "%s - expected runtime error %s - runtime error\n",
		p.paint(ANSIGray, "R"), p.paint(ANSIRed, "R"))
	fmt.Fprintln(w)
}

// RenderTree writes every suite and its subtree as a box-drawing tree.
// Statistics are printed as they are; call Aggregate first.
func RenderTree(w io.Writer, suites []*Suite, opts TreeOptions) {
	if opts.Column <= 0 {
		opts.Column = DefaultColumn
	}
	for i, suite := range suites {
		renderSuite(w, suite, "", i == len(suites)-1, opts)
	}
}

func renderSuite(w io.Writer, suite *Suite, prefix string, isLast bool, opts TreeOptions) {
	if suite == nil {
		return
	}
	p := painter(opts.Color)

	padding := opts.Column - displayWidth(prefix) - displayWidth(suite.name) - 2 // 2 for tree chars
	if padding < 1 {
		padding = 1
	}
	fmt.Fprintf(w, "%s%s%s%s%s\n",
		prefix, branch(isLast), suite.name, strings.Repeat(" ", padding), formatStats(suite.stats, p))

	childPrefix := prefix + "│ "
	if isLast {
		childPrefix = prefix + "  "
	}

	for i, child := range suite.children {
		renderSuite(w, child, childPrefix, i == len(suite.children)-1, opts)
	}

	for i, c := range suite.cases {
		// a case is only last when no suite follows it either
		last := i == len(suite.cases)-1 && len(suite.children) == 0

		var b strings.Builder
		fmt.Fprintf(&b, "%s%s%s: ", childPrefix, branch(last), c.name)
		for _, o := range c.results {
			b.WriteString(p.paint(o.Color(), string(o.Glyph())))
			b.WriteByte(' ')
		}
		fmt.Fprintln(w, b.String())
	}
}

func branch(isLast bool) string {
	if isLast {
		return "└─"
	}
	return "├─"
}

// formatStats renders the six counters as K/B/R groups, benign count first
func formatStats(s Stats, p painter) string {
	return fmt.Sprintf("K: %s/%s  B: %s/%s  R: %s/%s",
		p.paint(ANSIGreen, fmt.Sprintf("%2d", s.Success)),
		p.paint(ANSIYellow, fmt.Sprintf("%d", s.UnexpectedOutput)),
		p.paint(ANSIGray, fmt.Sprintf("%2d", s.ExpectedBuildError)),
		p.paint(ANSIRed, fmt.Sprintf("%d", s.BuildError)),
		p.paint(ANSIGray, fmt.Sprintf("%2d", s.ExpectedRuntimeError)),
		p.paint(ANSIRed, fmt.Sprintf("%d", s.RuntimeError)),
	)
}

// displayWidth returns the number of terminal columns s occupies. East Asian
// wide and fullwidth runes take two columns.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}
