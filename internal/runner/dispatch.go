package runner

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Interactive reports whether script should run attached to a pseudo-terminal.
// Upload scripts prompt the operator, except the large-file variants which are
// meant to run unattended.
func Interactive(script string) bool {
	return strings.Contains(script, "upload") && !strings.Contains(script, "large")
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
