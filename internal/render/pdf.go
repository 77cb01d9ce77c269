package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	ptToMM     = 0.3528
	lineFactor = 1.45
	indentStep = 7.0
	monoFamily = "Courier"
)

var headingScale = map[int]float64{1: 1.9, 2: 1.55, 3: 1.3, 4: 1.15, 5: 1.05, 6: 1.0}

// PDF renders markdown onto a paginated PDF document.
func (r *Renderer) PDF(title, markdown string) ([]byte, error) {
	src := []byte(markdown)
	doc := r.md.Parser().Parse(text.NewReader(src))

	pdf := fpdf.New("P", "mm", r.style.PageSize, "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("chapternotes", true)
	pdf.SetMargins(r.style.Margin, r.style.Margin, r.style.Margin)
	pdf.SetAutoPageBreak(true, r.style.Margin)
	pdf.AddPage()

	w := &pdfWriter{
		pdf:   pdf,
		src:   src,
		style: r.style,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		size:  r.style.FontSize,
	}
	w.applyFont()
	w.blocks(doc)

	if pdf.Err() {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailure, pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailure, err)
	}
	return buf.Bytes(), nil
}

// pdfWriter walks a goldmark AST and draws it with fpdf. Inline emphasis is
// tracked as counters so nested spans restore correctly.
type pdfWriter struct {
	pdf   *fpdf.Fpdf
	src   []byte
	style Style
	tr    func(string) string

	size               float64
	bold, italic, mono int
}

func (w *pdfWriter) lineHeight() float64 {
	return w.size * ptToMM * lineFactor
}

func (w *pdfWriter) applyFont() {
	family := w.style.FontFamily
	if w.mono > 0 {
		family = monoFamily
	}
	var style string
	if w.bold > 0 {
		style += "B"
	}
	if w.italic > 0 {
		style += "I"
	}
	w.pdf.SetFont(family, style, w.size)
}

func (w *pdfWriter) write(s string) {
	if s == "" {
		return
	}
	w.pdf.Write(w.lineHeight(), w.tr(s))
}

func (w *pdfWriter) gap(factor float64) {
	w.pdf.Ln(w.lineHeight() * factor)
}

func (w *pdfWriter) blocks(parent ast.Node) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c)
	}
}

func (w *pdfWriter) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		w.heading(n)
	case *ast.Paragraph:
		w.inlines(n)
		w.gap(1)
		w.gap(0.35)
	case *ast.TextBlock:
		w.inlines(n)
		w.gap(1)
	case *ast.List:
		w.list(n)
		w.gap(0.3)
	case *ast.Blockquote:
		w.blockquote(n)
	case *ast.FencedCodeBlock:
		w.codeBlock(n.Lines())
	case *ast.CodeBlock:
		w.codeBlock(n.Lines())
	case *ast.ThematicBreak:
		w.rule()
	case *east.Table:
		w.table(n)
	case *ast.HTMLBlock:
		// raw HTML has no PDF rendering
	default:
		w.blocks(n)
	}
}

func (w *pdfWriter) heading(n *ast.Heading) {
	prev := w.size
	w.size = w.style.FontSize * headingScale[n.Level]
	w.bold++
	w.applyFont()
	w.gap(0.3)
	w.inlines(n)
	w.gap(1)
	w.bold--
	w.size = prev
	w.applyFont()
	w.gap(0.3)
}

func (w *pdfWriter) list(n *ast.List) {
	left, _, _, _ := w.pdf.GetMargins()
	content := left + indentStep

	i := 0
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "•"
		if n.IsOrdered() {
			marker = fmt.Sprintf("%d.", n.Start+i)
		}
		i++

		w.pdf.SetLeftMargin(content)
		w.pdf.SetX(left)
		w.write(marker)
		w.pdf.SetX(content)
		w.blocks(item)
		w.pdf.SetLeftMargin(left)
		w.pdf.SetX(left)
	}
}

func (w *pdfWriter) blockquote(n *ast.Blockquote) {
	left, _, _, _ := w.pdf.GetMargins()
	page, top := w.pdf.PageNo(), w.pdf.GetY()

	w.pdf.SetLeftMargin(left + indentStep)
	w.pdf.SetX(left + indentStep)
	w.italic++
	w.applyFont()
	w.blocks(n)
	w.italic--
	w.applyFont()
	w.pdf.SetLeftMargin(left)
	w.pdf.SetX(left)

	if w.pdf.PageNo() == page {
		w.pdf.SetDrawColor(180, 180, 180)
		w.pdf.SetLineWidth(0.8)
		w.pdf.Line(left+2, top, left+2, w.pdf.GetY()-w.lineHeight()*0.35)
		w.pdf.SetLineWidth(0.2)
		w.pdf.SetDrawColor(0, 0, 0)
	}
}

func (w *pdfWriter) codeBlock(lines *text.Segments) {
	prev := w.size
	w.size = w.style.FontSize * 0.9
	w.mono++
	w.applyFont()
	w.pdf.SetFillColor(243, 244, 246)
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(w.src)), "\r\n")
		line = strings.ReplaceAll(line, "\t", "    ")
		w.pdf.MultiCell(0, w.lineHeight(), w.tr(line), "", "L", true)
	}
	w.mono--
	w.size = prev
	w.applyFont()
	w.gap(0.5)
}

func (w *pdfWriter) rule() {
	left, _, right, _ := w.pdf.GetMargins()
	pageW, _ := w.pdf.GetPageSize()
	w.gap(0.4)
	y := w.pdf.GetY()
	w.pdf.SetDrawColor(190, 190, 190)
	w.pdf.Line(left, y, pageW-right, y)
	w.pdf.SetDrawColor(0, 0, 0)
	w.gap(0.6)
}

func (w *pdfWriter) table(n *east.Table) {
	var rows [][]string
	header := -1
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		if _, ok := row.(*east.TableHeader); ok {
			header = len(rows)
		}
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, w.plainText(cell))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	left, _, right, _ := w.pdf.GetMargins()
	pageW, _ := w.pdf.GetPageSize()
	colW := (pageW - left - right) / float64(len(rows[0]))
	h := w.lineHeight() + 1

	w.pdf.SetFillColor(238, 238, 238)
	for i, cells := range rows {
		isHeader := i == header
		if isHeader {
			w.bold++
			w.applyFont()
		}
		for _, c := range cells {
			w.pdf.CellFormat(colW, h, w.fit(c, colW-2), "1", 0, "L", isHeader, 0, "")
		}
		w.pdf.Ln(h)
		if isHeader {
			w.bold--
			w.applyFont()
		}
	}
	w.gap(0.5)
}

// fit truncates s so it fits in width with the current font.
func (w *pdfWriter) fit(s string, width float64) string {
	s = w.tr(s)
	if w.pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && w.pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func (w *pdfWriter) inlines(parent ast.Node) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		w.inline(c)
	}
}

func (w *pdfWriter) inline(n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		w.write(string(n.Segment.Value(w.src)))
		switch {
		case n.HardLineBreak():
			w.pdf.Ln(w.lineHeight())
		case n.SoftLineBreak():
			w.write(" ")
		}
	case *ast.String:
		w.write(string(n.Value))
	case *ast.Emphasis:
		if n.Level >= 2 {
			w.bold++
		} else {
			w.italic++
		}
		w.applyFont()
		w.inlines(n)
		if n.Level >= 2 {
			w.bold--
		} else {
			w.italic--
		}
		w.applyFont()
	case *ast.CodeSpan:
		w.mono++
		w.applyFont()
		w.inlines(n)
		w.mono--
		w.applyFont()
	case *ast.Link:
		w.pdf.SetTextColor(9, 105, 218)
		w.inlines(n)
		w.pdf.SetTextColor(0, 0, 0)
	case *ast.AutoLink:
		w.pdf.SetTextColor(9, 105, 218)
		w.write(string(n.URL(w.src)))
		w.pdf.SetTextColor(0, 0, 0)
	case *ast.Image:
		w.write("[" + w.plainText(n) + "]")
	case *east.TaskCheckBox:
		if n.IsChecked {
			w.write("[x] ")
		} else {
			w.write("[ ] ")
		}
	case *ast.RawHTML:
	default:
		w.inlines(n)
	}
}

func (w *pdfWriter) plainText(n ast.Node) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(w.src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteByte(' ')
			}
			return
		case *ast.String:
			b.Write(n.Value)
			return
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
