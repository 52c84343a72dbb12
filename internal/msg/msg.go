package msg

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var verbose bool

// SetVerbose toggles whether Debug produces output.
func SetVerbose(v bool) { verbose = v }

func Error(format string, a ...any) {
	fmt.Fprint(os.Stderr, color.HiRedString("error"), ": ")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprint(os.Stderr, "\n")
}

func Warn(format string, a ...any) {
	fmt.Fprint(os.Stderr, color.YellowString("warn"), ": ")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprint(os.Stderr, "\n")
}

func Fatal(format string, a ...any) {
	fmt.Fprint(os.Stderr, color.RedString("fatal"), ": ")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprint(os.Stderr, "\n")
	os.Exit(1)
}

func Info(format string, a ...any) {
	fmt.Print(color.HiGreenString("info"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

func Debug(format string, a ...any) {
	if !verbose {
		return
	}
	fmt.Print(color.HiBlackString("debug"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

// IndentWriter prefixes every line written through it with Indent. Used to
// offset subprocess output from our own diagnostics.
type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	line := make([]byte, 0, len(p)+len(w.Indent))
	flush := func() error {
		if len(line) == 0 {
			return nil
		}
		_, err := w.W.Write(line)
		line = line[:0]
		return err
	}

	for _, c := range p {
		if !w.didIndent {
			line = append(line, w.Indent...)
			w.didIndent = true
		}
		line = append(line, c)
		if c == '\n' || c == '\r' {
			w.didIndent = false
			if err := flush(); err != nil {
				return len(p), err
			}
		}
	}
	return len(p), flush()
}
