//go:build !windows

package terminal

import (
	"io"
	"os"
)

// getColorableWriter returns stdout, terminals on non-windows platforms
// interpret ANSI escape sequences natively.
func getColorableWriter() io.Writer {
	return os.Stdout
}
