package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ASCIILogo is printed at the start of interactive runs
const ASCIILogo = `
   __  _____________________________ _____  ___  ____
   \ \/ / ___/ __/ ___/ _ \/ _ |/ _ \/ __/ _ \/ __/
    >  </ /___\ \/ /__/ , _/ __ / ___/ _// , _/\ \
   /_/\_\___/___/\___/_/|_/_/ |_/_/  /___/_/|_/___/
        xeno-canto recording crawler
`

var (
	outMu   sync.Mutex
	out     io.Writer = os.Stdout
	errOut  io.Writer = os.Stderr
	quiet   bool
	noColor bool
)

// SetOutput redirects normal and error output
func SetOutput(stdout, stderr io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out, errOut = stdout, stderr
}

// SetQuiet suppresses everything except errors
func SetQuiet(q bool) {
	outMu.Lock()
	defer outMu.Unlock()
	quiet = q
}

// IsQuiet reports whether quiet mode is on
func IsQuiet() bool {
	outMu.Lock()
	defer outMu.Unlock()
	return quiet
}

// SetColor turns ANSI colors on or off
func SetColor(enabled bool) {
	outMu.Lock()
	defer outMu.Unlock()
	noColor = !enabled
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		outMu.Lock()
		plain := noColor
		outMu.Unlock()
		if plain {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func printf(format string, args ...interface{}) {
	outMu.Lock()
	w, q := out, quiet
	outMu.Unlock()
	if !q {
		fmt.Fprintf(w, format, args...)
	}
}

func eprintf(format string, args ...interface{}) {
	outMu.Lock()
	w := errOut
	outMu.Unlock()
	fmt.Fprintf(w, format, args...)
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	printf("%s", Cyan(ASCIILogo))
}

// PrintError prints an error message in red. It is shown even in quiet mode.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		eprintf("%s\n", Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		eprintf("%s\n", Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf("%s\n", Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf("%s\n", Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf("%s\n", Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf("%s\n", Magenta(msg))
}
