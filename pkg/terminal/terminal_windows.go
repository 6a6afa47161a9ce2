package terminal

import (
	"io"

	"github.com/mattn/go-colorable"
)

// getColorableWriter returns a writer that translates ANSI escape
// sequences into Windows console API calls.
func getColorableWriter() io.Writer {
	return colorable.NewColorableStdout()
}
