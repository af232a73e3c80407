package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// errNotInteractive is returned when a prompt is needed but stdin is not a terminal.
var errNotInteractive = errors.New("input required but stdin is not a terminal")

// isInteractive reports whether stdin is a terminal.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptLine prints label and reads one line from reader. An empty answer
// yields def.
func promptLine(reader *bufio.Reader, out io.Writer, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}

	input, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	return input, nil
}

// promptSecret reads a value from the terminal without echoing it.
func promptSecret(label string) (string, error) {
	if !isInteractive() {
		return "", errNotInteractive
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("%s must not be empty", strings.ToLower(label))
	}
	return secret, nil
}

// confirm asks a yes/no question; anything but y or yes is no.
func confirm(reader *bufio.Reader, out io.Writer, question string) bool {
	answer, err := promptLine(reader, out, question+" [y/N]", "")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}
