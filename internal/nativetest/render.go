package nativetest

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/alnah/go-wkhtmltox/internal/htmlscan"
)

type resource struct {
	external bool
	url      string
}

type document struct {
	loads []resource
	text  string
}

// parseDocument extracts the resources a page would fetch and its visible
// text. Anchors become PDF links, not loads, and are skipped.
func parseDocument(src string) document {
	var doc document
	refs, err := htmlscan.ScanString(src)
	if err == nil {
		for _, r := range refs {
			if r.Kind == htmlscan.Inline || r.Element == "a" {
				continue
			}
			doc.loads = append(doc.loads, resource{external: r.Kind == htmlscan.External, url: r.URL})
		}
	}
	doc.text = visibleText(src)
	return doc
}

func visibleText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var parts []string
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isHidden(string(name)) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHidden(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if t := strings.Join(strings.Fields(string(z.Text())), " "); t != "" {
				parts = append(parts, t)
			}
		}
	}
}

func isHidden(tag string) bool {
	return tag == "script" || tag == "style" || tag == "head" || tag == "title"
}

// mediaBoxes holds page sizes in PostScript points.
var mediaBoxes = map[string][2]int{
	"A3":     {842, 1191},
	"A4":     {595, 842},
	"A5":     {420, 595},
	"Legal":  {612, 1008},
	"Letter": {612, 792},
}

// renderPDF writes a one-page-per-object PDF carrying each object's text.
func renderPDF(global *settings, texts []string) []byte {
	size := mediaBoxes["A4"]
	title := ""
	if global != nil {
		if s, ok := mediaBoxes[global.values["size.paperSize"]]; ok {
			size = s
		}
		if global.values["orientation"] == "Landscape" {
			size[0], size[1] = size[1], size[0]
		}
		title = global.values["documentTitle"]
	}

	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	n := len(texts)
	kids := make([]string, n)
	for i := range texts {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	obj(fmt.Sprintf("<< /Title (%s) /Producer (wkhtmltopdf simulated) >>", escapePDF(title)))
	for i, text := range texts {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents %d 0 R >>",
			size[0], size[1], 5+2*i))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 %d Td (%s) Tj ET", size[1]-72, escapePDF(text))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 3 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xref)
	return buf.Bytes()
}

func escapePDF(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}
