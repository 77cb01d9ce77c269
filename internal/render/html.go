package render

import (
	"bytes"
	"fmt"
	"html"
)

const pageCSS = `body{font-family:-apple-system,"Segoe UI",Helvetica,Arial,sans-serif;line-height:1.55;max-width:46rem;margin:2rem auto;padding:0 1rem;color:#1f2328}
h1,h2,h3{line-height:1.25}h1{border-bottom:1px solid #d0d7de;padding-bottom:.3em}
blockquote{margin:0;padding:0 1em;color:#57606a;border-left:.25em solid #d0d7de}
code,pre{font-family:ui-monospace,Menlo,Consolas,monospace;background:#f6f8fa}pre{padding:1em;overflow:auto}
table{border-collapse:collapse}th,td{border:1px solid #d0d7de;padding:.3em .7em}`

// HTML renders markdown as a complete HTML document titled title.
func (r *Renderer) HTML(title, markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailure, err)
	}

	var out bytes.Buffer
	out.Grow(body.Len() + len(pageCSS) + 256)
	out.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	out.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n<style>%s</style>\n", html.EscapeString(title), pageCSS)
	out.WriteString("</head>\n<body>\n<main>\n")
	out.Write(body.Bytes())
	out.WriteString("</main>\n</body>\n</html>\n")
	return out.Bytes(), nil
}
