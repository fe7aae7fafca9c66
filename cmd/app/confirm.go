package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/starford/mediabin/internal/sequence"
)

// newPromptConfirmer asks on out and reads y/n answers from in. Anything but
// an explicit yes declines.
func newPromptConfirmer(in io.Reader, out io.Writer) sequence.Confirmer {
	scanner := bufio.NewScanner(in)
	return sequence.ConfirmFunc(func(fileName string) bool {
		fmt.Fprintf(out, "%s looks like part of an image sequence. Import as one sequence? [y/N] ", fileName)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true
		}
		return false
	})
}
