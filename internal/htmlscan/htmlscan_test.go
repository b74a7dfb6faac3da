package htmlscan

import (
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want Kind
	}{
		{"https://example.com/a.png", External},
		{"HTTP://EXAMPLE.COM", External},
		{"//cdn.example.com/x.js", External},
		{"ftp://host/file", External},
		{"file:///etc/passwd", Local},
		{"/etc/passwd", Local},
		{"images/logo.png", Local},
		{"../secret.txt", Local},
		{"data:image/png;base64,AAAA", Inline},
		{"#section-2", Inline},
		{"mailto:a@b.c", Inline},
		{"javascript:void(0)", Inline},
		{"about:blank", Inline},
		{"", Inline},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tt.url); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestScanString_Elements(t *testing.T) {
	t.Parallel()

	doc := `<html><head>
<link rel="stylesheet" href="https://cdn.example.com/site.css">
<script src="app.js"></script>
</head><body>
<img src="file:///tmp/a.png" srcset="small.png 1x, https://img.example.com/big.png 2x">
<a href="#top">top</a>
<iframe src="//frames.example.com/x"></iframe>
<object data="data:text/plain,hi"></object>
<p title="https://ignored.example.com">text</p>
</body></html>`

	refs, err := ScanString(doc)
	if err != nil {
		t.Fatalf("ScanString() error = %v", err)
	}

	want := []Reference{
		{Element: "link", Attr: "href", URL: "https://cdn.example.com/site.css", Kind: External},
		{Element: "script", Attr: "src", URL: "app.js", Kind: Local},
		{Element: "img", Attr: "src", URL: "file:///tmp/a.png", Kind: Local},
		{Element: "img", Attr: "srcset", URL: "small.png", Kind: Local},
		{Element: "img", Attr: "srcset", URL: "https://img.example.com/big.png", Kind: External},
		{Element: "a", Attr: "href", URL: "#top", Kind: Inline},
		{Element: "iframe", Attr: "src", URL: "//frames.example.com/x", Kind: External},
		{Element: "object", Attr: "data", URL: "data:text/plain,hi", Kind: Inline},
	}

	if len(refs) != len(want) {
		t.Fatalf("got %d refs %+v, want %d", len(refs), refs, len(want))
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("ref %d = %+v, want %+v", i, refs[i], want[i])
		}
	}
}

func TestScanString_CSS(t *testing.T) {
	t.Parallel()

	doc := `<style>@import "https://fonts.example.com/f.css";
body { background: url('bg.png'); }</style>
<div style="background-image: url(https://img.example.com/x.png)"></div>`

	refs, err := ScanString(doc)
	if err != nil {
		t.Fatalf("ScanString() error = %v", err)
	}

	if got := len(Filter(refs, External)); got != 2 {
		t.Errorf("external refs = %d, want 2 (%+v)", got, refs)
	}
	if got := len(Filter(refs, Local)); got != 1 {
		t.Errorf("local refs = %d, want 1 (%+v)", got, refs)
	}
}

func TestScanString_NoReferences(t *testing.T) {
	t.Parallel()

	refs, err := ScanString("<html><body>Hello</body></html>")
	if err != nil {
		t.Fatalf("ScanString() error = %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("got %d refs, want 0", len(refs))
	}
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	for kind, want := range map[Kind]string{Inline: "inline", External: "external", Local: "local"} {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
