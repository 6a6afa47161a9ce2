package terminal

import (
	"os"

	"golang.org/x/sys/windows"
)

func (w *pagingWriter) getWindowSize() {
	var sbi windows.ConsoleScreenBufferInfo
	err := windows.GetConsoleScreenBufferInfo(windows.Handle(os.Stdout.Fd()), &sbi)
	if err != nil {
		w.mode = pagingWriterNormal
		return
	}
	w.columns = int(sbi.Window.Right - sbi.Window.Left + 1)
	w.lines = int(sbi.Window.Bottom - sbi.Window.Top + 1)
}
