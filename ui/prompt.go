package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompter asks yes/no questions on a line-oriented input.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{reader: bufio.NewReader(in), out: out}
}

// Interactive reports whether stdin is attached to a terminal.
func Interactive() bool {
	return isTerminal(os.Stdin)
}

// Confirm asks prompt and returns defaultYes on an empty answer.
func (p *Prompter) Confirm(prompt string, defaultYes bool) (bool, error) {
	defaultText := "y/N"
	if defaultYes {
		defaultText = "Y/n"
	}

	answer, err := p.prompt(fmt.Sprintf("%s [%s]: ", prompt, defaultText))
	if err != nil {
		return false, err
	}
	normalized := strings.ToLower(answer)
	if normalized == "" {
		return defaultYes, nil
	}
	return normalized == "y" || normalized == "yes", nil
}

func (p *Prompter) prompt(q string) (string, error) {
	fmt.Fprint(p.out, q)
	input, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
