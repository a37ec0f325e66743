// Writer implementation printing track activity to STDOUT
package sim

import (
	"os"

	"golang.org/x/term"

	"railwsn-sim/internal/config"
)

// NewStdoutWriter colorizes output when STDOUT is a terminal and prints JSON
// lines otherwise, so piped output stays machine readable.
func NewStdoutWriter(cfg *config.Config) Writer {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return NewColorStdoutWriter(cfg)
	}
	return NewJSONStdoutWriter()
}
