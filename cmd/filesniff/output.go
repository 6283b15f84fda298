package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/gobeaver/filesniff"
	"github.com/gobeaver/filesniff/magic"
)

// printer writes results as coloured text or JSON lines. It is safe for
// concurrent use by watch callbacks.
type printer struct {
	mu   sync.Mutex
	w    io.Writer
	json bool

	path   *color.Color
	mime   *color.Color
	inner  *color.Color
	failed *color.Color
	dim    *color.Color
}

func newPrinter(w io.Writer, asJSON, noColor bool) *printer {
	p := &printer{
		w:      w,
		json:   asJSON,
		path:   color.New(color.Bold),
		mime:   color.New(color.FgGreen),
		inner:  color.New(color.FgCyan),
		failed: color.New(color.FgRed, color.Bold),
		dim:    color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.path, p.mime, p.inner, p.failed, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

// jsonResult is the wire form of a result. Errors are rendered as text.
type jsonResult struct {
	filesniff.Result
	Category magic.Category `json:"category,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func toJSON(r filesniff.Result) jsonResult {
	out := jsonResult{Result: r}
	if r.Failed() {
		out.Error = r.Err.Error()
	} else {
		out.Category = magic.CategoryOf(r.Classification)
	}
	return out
}

func (p *printer) print(r filesniff.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.json {
		b, err := json.Marshal(toJSON(r))
		if err != nil {
			fmt.Fprintf(p.w, "{\"path\":%q,\"error\":%q}\n", r.Path, err.Error())
			return
		}
		fmt.Fprintf(p.w, "%s\n", b)
		return
	}

	if r.Failed() {
		fmt.Fprintf(p.w, "%s: %s\n", p.path.Sprint(r.Path), p.failed.Sprint(r.Err))
		return
	}
	fmt.Fprintf(p.w, "%s: %s %s", p.path.Sprint(r.Path), p.mime.Sprint(r.MIME), p.dim.Sprintf("(.%s)", r.Ext))
	for in := r.Inner; in != nil; in = in.Inner {
		fmt.Fprintf(p.w, " > %s %s", p.inner.Sprint(in.MIME), p.dim.Sprintf("(.%s)", in.Ext))
	}
	fmt.Fprintln(p.w)
}
