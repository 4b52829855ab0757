package prompter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var (
	// In and Out are the prompt streams. Tests replace them.
	In  io.Reader = os.Stdin
	Out io.Writer = os.Stdout

	buffered   *bufio.Reader
	bufferedIn io.Reader
)

func reader() *bufio.Reader {
	if buffered == nil || bufferedIn != In {
		buffered = bufio.NewReader(In)
		bufferedIn = In
	}
	return buffered
}

func readLine() (string, error) {
	line, err := reader().ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PromptString prompts user for a string input
func PromptString(label string) (string, error) {
	fmt.Fprint(Out, label)
	input, err := readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// PromptStringDefault prompts for a string, returning def on empty input.
func PromptStringDefault(label, def string) (string, error) {
	if def != "" {
		label = fmt.Sprintf("%s[%s] ", label, def)
	}
	s, err := PromptString(label)
	if err != nil {
		return "", err
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// PromptPassword prompts user for a password (hidden input)
func PromptPassword(label string) (string, error) {
	fmt.Fprint(Out, label)

	if f, ok := In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(Out)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	// Piped input, e.g. CI scripts.
	return readLine()
}

// PromptConfirm prompts user for yes/no confirmation
func PromptConfirm(label string) (bool, error) {
	fmt.Fprint(Out, label+" (y/n) ")
	input, err := readLine()
	if err != nil {
		return false, err
	}

	response := strings.TrimSpace(strings.ToLower(input))
	return response == "y" || response == "yes", nil
}

// PromptSelect prompts user to select from options
func PromptSelect(label string, options []string) (int, error) {
	fmt.Fprintln(Out, label)
	for i, opt := range options {
		fmt.Fprintf(Out, "%d) %s\n", i+1, opt)
	}

	fmt.Fprint(Out, "Select option: ")
	input, err := readLine()
	if err != nil {
		return -1, err
	}

	var selection int
	if _, err := fmt.Sscanf(strings.TrimSpace(input), "%d", &selection); err != nil {
		return -1, fmt.Errorf("invalid selection %q", strings.TrimSpace(input))
	}

	if selection < 1 || selection > len(options) {
		return -1, fmt.Errorf("invalid selection: %d", selection)
	}

	return selection - 1, nil
}

// PromptMultilineString prompts user for multi-line input, ended by an
// empty line or after maxLines lines.
func PromptMultilineString(label string, maxLines int) (string, error) {
	fmt.Fprintf(Out, "%s (empty line to finish):\n", label)

	var lines []string
	for i := 0; i < maxLines; i++ {
		line, err := readLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if line == "" {
			break
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n"), nil
}
