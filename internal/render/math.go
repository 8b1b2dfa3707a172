package render

import (
	"bytes"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindMath is the node kind of a $...$ or $$...$$ span.
var KindMath = gast.NewNodeKind("Math")

// KindMathBlock is the node kind of a paragraph that holds only display math.
var KindMathBlock = gast.NewNodeKind("MathBlock")

// Math is an inline TeX span. Its children are raw text segments.
type Math struct {
	gast.BaseInline
	Display bool
}

func (n *Math) Kind() gast.NodeKind { return KindMath }

func (n *Math) Dump(source []byte, level int) {
	gast.DumpHelper(n, source, level, map[string]string{
		"Display": boolString(n.Display),
	}, nil)
}

// MathBlock wraps a single display Math node that stood alone in its
// paragraph.
type MathBlock struct {
	gast.BaseBlock
}

func (n *MathBlock) Kind() gast.NodeKind { return KindMathBlock }

func (n *MathBlock) Dump(source []byte, level int) {
	gast.DumpHelper(n, source, level, nil, nil)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

type mathParser struct{}

func (p *mathParser) Trigger() []byte {
	return []byte{'$'}
}

func (p *mathParser) Parse(parent gast.Node, block text.Reader, pc parser.Context) gast.Node {
	line, seg := block.PeekLine()
	if len(line) < 2 || line[0] != '$' {
		return nil
	}
	if line[1] == '$' {
		return p.parseDisplay(block)
	}
	for i := 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '\n', '\r':
			return nil
		case '$':
			if i == 1 {
				return nil
			}
			// "$5 and $10" is money, not math.
			if i+1 < len(line) && line[i+1] >= '0' && line[i+1] <= '9' {
				return nil
			}
			node := &Math{}
			node.AppendChild(node, gast.NewRawTextSegment(text.NewSegment(seg.Start+1, seg.Start+i)))
			block.Advance(i + 1)
			return node
		}
	}
	return nil
}

// parseDisplay reads $$...$$, which may span several lines of a paragraph.
func (p *mathParser) parseDisplay(block text.Reader) gast.Node {
	_, start := block.PeekLine()
	block.Advance(2)
	l, pos := block.Position()
	node := &Math{Display: true}
	for {
		line, seg := block.PeekLine()
		if line == nil {
			block.SetPosition(l, pos)
			return gast.NewTextSegment(start.WithStop(start.Start + 2))
		}
		if i := bytes.Index(line, []byte("$$")); i >= 0 {
			if i > 0 {
				node.AppendChild(node, gast.NewRawTextSegment(seg.WithStop(seg.Start+i)))
			}
			block.Advance(i + 2)
			if !node.HasChildren() {
				return gast.NewTextSegment(start.WithStop(start.Start + 4))
			}
			return node
		}
		node.AppendChild(node, gast.NewRawTextSegment(seg))
		block.AdvanceLine()
	}
}

// mathBlockTransformer lifts paragraphs that contain nothing but one display
// span into MathBlock nodes so they render as a block element.
type mathBlockTransformer struct{}

func (t *mathBlockTransformer) Transform(doc *gast.Document, reader text.Reader, pc parser.Context) {
	var paras []*gast.Paragraph
	_ = gast.Walk(doc, func(n gast.Node, entering bool) (gast.WalkStatus, error) {
		if !entering {
			return gast.WalkContinue, nil
		}
		if p, ok := n.(*gast.Paragraph); ok {
			if displayOnly(p, reader.Source()) {
				paras = append(paras, p)
			}
			return gast.WalkSkipChildren, nil
		}
		return gast.WalkContinue, nil
	})

	for _, p := range paras {
		var math gast.Node
		for c := p.FirstChild(); c != nil; c = c.NextSibling() {
			if m, ok := c.(*Math); ok {
				math = m
			}
		}
		p.RemoveChild(p, math)
		mb := &MathBlock{}
		mb.AppendChild(mb, math)
		p.Parent().ReplaceChild(p.Parent(), p, mb)
	}
}

func displayOnly(p *gast.Paragraph, source []byte) bool {
	found := false
	for c := p.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *Math:
			if !n.Display || found {
				return false
			}
			found = true
		case *gast.Text:
			if len(bytes.TrimSpace(n.Segment.Value(source))) != 0 {
				return false
			}
		default:
			return false
		}
	}
	return found
}

type mathHTMLRenderer struct {
	writer html.Writer
}

func (r *mathHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindMath, r.renderMath)
	reg.Register(KindMathBlock, r.renderMathBlock)
}

func (r *mathHTMLRenderer) renderMath(w util.BufWriter, source []byte, node gast.Node, entering bool) (gast.WalkStatus, error) {
	if !entering {
		return gast.WalkContinue, nil
	}
	n := node.(*Math)
	_, inBlock := n.Parent().(*MathBlock)
	if !inBlock {
		if n.Display {
			_, _ = w.WriteString(`<span class="math math-display">`)
		} else {
			_, _ = w.WriteString(`<span class="math math-inline">`)
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.writer.RawWrite(w, c.(*gast.Text).Segment.Value(source))
	}
	if !inBlock {
		_, _ = w.WriteString("</span>")
	}
	return gast.WalkSkipChildren, nil
}

func (r *mathHTMLRenderer) renderMathBlock(w util.BufWriter, source []byte, node gast.Node, entering bool) (gast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(`<div class="math math-display">`)
	} else {
		_, _ = w.WriteString("</div>\n")
	}
	return gast.WalkContinue, nil
}

type mathExtension struct{}

// MathExtension adds $...$ and $$...$$ TeX spans to goldmark. The TeX is
// emitted escaped inside elements with a "math" class for a client-side
// typesetter.
var MathExtension goldmark.Extender = &mathExtension{}

func (e *mathExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithInlineParsers(util.Prioritized(&mathParser{}, 150)),
		parser.WithASTTransformers(util.Prioritized(&mathBlockTransformer{}, 100)),
	)
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&mathHTMLRenderer{writer: html.DefaultWriter}, 500),
	))
}
