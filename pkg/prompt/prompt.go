// Package prompt implements an interactive fallback for missing context
// variables: each unresolved reference is asked for on the terminal, and the
// typed value is decoded like any markup scalar so "42" comes back as an
// integer.
package prompt

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"

	"github.com/ormasoftchile/confix/pkg/markup"
)

var (
	pathStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// Prompter asks the user for missing variable values and remembers the
// answers, so a variable referenced from several places is asked once.
type Prompter struct {
	mu      sync.Mutex
	answers map[string]any
	rl      *readline.Instance
}

// New returns a terminal-backed Prompter.
func New() *Prompter {
	return &Prompter{answers: map[string]any{}}
}

// Ask requests a value for the given variable path. An empty line or a
// closed input stream declines, letting the evaluation fail normally.
func (p *Prompter) Ask(path, help string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.answers[path]; ok {
		return v, true
	}
	if p.rl == nil {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          p.renderPrompt(path, help),
			InterruptPrompt: "^C",
		})
		if err != nil {
			return nil, false
		}
		p.rl = rl
	}
	p.rl.SetPrompt(p.renderPrompt(path, help))
	line, err := p.rl.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}
	value, err := markup.Decode([]byte(line))
	if err != nil {
		value = line
	}
	p.answers[path] = value
	return value, true
}

// Close releases the terminal.
func (p *Prompter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rl == nil {
		return nil
	}
	err := p.rl.Close()
	p.rl = nil
	return err
}

func (p *Prompter) renderPrompt(path, help string) string {
	prompt := pathStyle.Render(path)
	if help != "" {
		prompt += " " + helpStyle.Render("("+help+")")
	}
	return prompt + ": "
}
