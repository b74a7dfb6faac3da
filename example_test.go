package wkhtmltox_test

import (
	"bytes"
	"context"
	"fmt"

	"github.com/alnah/go-wkhtmltox"
	"github.com/alnah/go-wkhtmltox/internal/nativetest"
)

// Example converts an HTML string with a Worker.
// The simulated engine stands in for libwkhtmltox here; real programs
// build with -tags wkhtmltox and call NewWorker without WithRuntime.
func Example() {
	rt := wkhtmltox.NewRuntime(nativetest.New())
	w, err := wkhtmltox.NewWorker(wkhtmltox.WithRuntime(rt))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer w.Close()

	if err := w.Convert(context.Background(), "<h1>Hello World</h1>", nil); err != nil {
		fmt.Println("error:", err)
		return
	}

	pdf, err := w.Output()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if bytes.HasPrefix(pdf, []byte("%PDF-")) {
		fmt.Println("PDF generated successfully")
	}
	// Output: PDF generated successfully
}

// Example_events follows a conversion through its phases.
func Example_events() {
	rt := wkhtmltox.NewRuntime(nativetest.New())
	w, err := wkhtmltox.NewWorker(wkhtmltox.WithRuntime(rt))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer w.Close()

	w.Events().OnPhaseChanged(func(e wkhtmltox.PhaseEvent) {
		fmt.Printf("phase %d/%d: %s\n", e.Phase+1, e.PhaseCount, e.Description)
	})
	w.Events().OnFinished(func(e wkhtmltox.FinishedEvent) {
		fmt.Println("finished:", e.OK(), e.Arg)
	})

	if err := w.Convert(context.Background(), "<p>Report</p>", "report-42"); err != nil {
		fmt.Println("error:", err)
	}
	// Output:
	// phase 1/6: Loading pages
	// phase 2/6: Counting pages
	// phase 3/6: Resolving links
	// phase 4/6: Loading headers and footers
	// phase 5/6: Printing pages
	// phase 6/6: Done
	// finished: true report-42
}

// Example_profile configures a Worker from a YAML profile.
func Example_profile() {
	p, err := wkhtmltox.ParseProfile([]byte(`
global:
  size.paperSize: A5
  documentTitle: Minutes
`))
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	rt := wkhtmltox.NewRuntime(nativetest.New(), p.RuntimeOptions()...)
	w, err := wkhtmltox.NewWorker(wkhtmltox.WithRuntime(rt), wkhtmltox.WithProfile(p))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer w.Close()

	size, _ := w.PaperSize()
	fmt.Println("paper size:", size)
	// Output: paper size: A5
}

// Example_converter drives the lower-level lifecycle directly.
func Example_converter() {
	rt := wkhtmltox.NewRuntime(nativetest.New())

	global, err := rt.NewGlobalSettings()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	_ = global.Set("orientation", "Landscape")

	conv, err := rt.NewConverter(global, nil)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer conv.Close()

	obj, err := rt.NewObjectSettings()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if err := conv.AddObject(obj, "<p>Wide table</p>"); err != nil {
		fmt.Println("error:", err)
		return
	}
	if err := conv.Convert(context.Background()); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(conv.State())
	// Output: completed
}
