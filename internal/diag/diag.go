// Package diag colors the compile/runtime diagnostics spec §6/§7
// mandate the way the pack's CLI tools do (github.com/fatih/color),
// without changing their wording: pkg/compiler already formats "[line N]
// Error at X: msg" and pkg/vm "[line N] in fn()" traces, this
// package just tints whatever stream it's given red.
package diag

import (
	"io"

	"github.com/fatih/color"
)

// Reporter is an io.Writer that colors every write red and forwards it
// unchanged otherwise. Wrap it around a process's stderr (ideally one
// already passed through mattn/go-colorable so the ANSI codes render on
// every platform) and hand it to vm.New as the VM's diagnostic sink.
type Reporter struct {
	w   io.Writer
	red func(format string, a ...interface{}) string
}

// NewReporter wraps w for colored diagnostic output.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w, red: color.New(color.FgRed).SprintfFunc()}
}

func (r *Reporter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(r.w, r.red("%s", string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
