// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("aborted")

// prompter reads credentials from the user.
type prompter interface {
	Prompt(label string) (string, error)
	PasswordPrompt(label string) (string, error)
	Close() error
}

// newPrompter uses liner on a terminal and plain line reads otherwise, so
// scripts can pipe credentials in.
func newPrompter(in io.Reader, out io.Writer) prompter {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		return &linerPrompter{state: state}
	}
	return &linePrompter{r: bufio.NewReader(in), w: out}
}

// =============================================================================
// LINER
// =============================================================================

type linerPrompter struct {
	state *liner.State
}

func (p *linerPrompter) Prompt(label string) (string, error) {
	s, err := p.state.Prompt(label)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrAborted
	}
	return strings.TrimSpace(s), err
}

func (p *linerPrompter) PasswordPrompt(label string) (string, error) {
	s, err := p.state.PasswordPrompt(label)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrAborted
	}
	return s, err
}

func (p *linerPrompter) Close() error {
	return p.state.Close()
}

// =============================================================================
// PLAIN
// =============================================================================

type linePrompter struct {
	r *bufio.Reader
	w io.Writer
}

func (p *linePrompter) Prompt(label string) (string, error) {
	s, err := p.readLine(label)
	return strings.TrimSpace(s), err
}

func (p *linePrompter) PasswordPrompt(label string) (string, error) {
	return p.readLine(label)
}

func (p *linePrompter) Close() error {
	return nil
}

// readLine returns the next line without its terminator. EOF before any
// input counts as an abort.
func (p *linePrompter) readLine(label string) (string, error) {
	fmt.Fprint(p.w, label)
	line, err := p.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			return "", ErrAborted
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}
