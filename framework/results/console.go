package results

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

var consoleRunErrorColor = color.New(color.FgYellow) //nolint:gochecknoglobals
var consoleTestFailedColor = color.New(color.FgRed)  //nolint:gochecknoglobals
var consoleModuleColor = color.New(color.Faint)      //nolint:gochecknoglobals
var allTestsPassedColor = color.New(color.FgGreen)   //nolint:gochecknoglobals

// ConsoleListener prints lifecycle transitions as they are recorded.
type ConsoleListener struct {
	// ShowTests prints every test start/end rather than only failures.
	ShowTests bool
}

func (c ConsoleListener) OnRecord(rec Record) {
	switch rec.Kind {
	case KindModuleStarted:
		fmt.Printf("[%s]\n", rec.Name)
	case KindRunFailed:
		for _, line := range strings.Split(rec.Message, "\n") {
			_, _ = consoleRunErrorColor.Printf("  %s\n", line)
		}
	case KindTestStarted:
		if c.ShowTests {
			fmt.Printf("  %s\n", rec.Name)
		}
	case KindTestFailed:
		_, _ = consoleTestFailedColor.Printf("  FAILED: %s: %s\n", rec.Name, rec.Message)
	case KindTestEnded:
		if rec.Status == StatusFailed || rec.Status == StatusError {
			_, _ = consoleTestFailedColor.Printf("  FAILED: %s\n", rec.Name)
		} else if c.ShowTests {
			_, _ = consoleModuleColor.Printf("  passed: %s\n", rec.Name)
		}
	}
}

// PrintSummary prints the final outcome of a finished invocation.
func PrintSummary(inv *Invocation) {
	failed := inv.FailedTests()
	if len(failed) == 0 && !inv.Failed() {
		_, _ = allTestsPassedColor.Printf("All tests passed (%d)\n", inv.TestCount())
		return
	}
	_, _ = consoleTestFailedColor.Fprintf(os.Stderr, "FAILED TESTS (%d):\n", len(failed))
	for _, name := range failed {
		_, _ = consoleTestFailedColor.Fprintf(os.Stderr, "  * %s\n", name)
	}
	for _, m := range inv.Modules {
		for _, r := range m.Runs {
			for _, msg := range r.FailureMessages {
				_, _ = consoleTestFailedColor.Fprintf(os.Stderr, "  * %s/%s: %s\n", m.Name, r.Name, msg)
			}
		}
	}
}
