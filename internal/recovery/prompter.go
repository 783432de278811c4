// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNonInteractive is returned by a prompter that cannot ask anyone.
var ErrNonInteractive = errors.New("no interactive terminal available for confirmation")

// Prompter asks the operator a yes/no question.
//
// # Description
//
// Abstracts the terminal so the confirmation gate can be tested without a
// TTY. Implementations must treat anything other than an explicit
// affirmative as "no".
type Prompter interface {
	// Confirm shows prompt and returns true only for an explicit yes.
	Confirm(ctx context.Context, prompt string) (bool, error)

	// IsInteractive reports whether a human can answer.
	IsInteractive() bool
}

// -----------------------------------------------------------------------------
// InteractivePrompter
// -----------------------------------------------------------------------------

// InteractivePrompter reads answers line by line from a reader.
//
// Accepted affirmatives are "y" and "yes" in any case, surrounding
// whitespace ignored. Empty input, any other text, and EOF are "no".
type InteractivePrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewInteractivePrompter returns a prompter on stdin and stdout.
func NewInteractivePrompter() *InteractivePrompter {
	return NewInteractivePrompterWithIO(os.Stdin, os.Stdout)
}

// NewInteractivePrompterWithIO returns a prompter on the given streams.
func NewInteractivePrompterWithIO(r io.Reader, w io.Writer) *InteractivePrompter {
	return &InteractivePrompter{reader: bufio.NewReader(r), writer: w}
}

// Confirm writes "<prompt> [y/N]: " and reads one line.
//
// # Outputs
//
//   - bool: true only for y/yes.
//   - error: ctx.Err() when the context ends first, or a read error other than EOF.
func (p *InteractivePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(p.writer, "%s [y/N]: ", prompt)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.reader.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.writer)
		return false, ctx.Err()
	case res := <-ch:
		if res.err != nil && !errors.Is(res.err, io.EOF) {
			return false, fmt.Errorf("read confirmation: %w", res.err)
		}
		if errors.Is(res.err, io.EOF) && res.line == "" {
			fmt.Fprintln(p.writer)
		}
		return isAffirmative(res.line), nil
	}
}

// IsInteractive always returns true.
func (p *InteractivePrompter) IsInteractive() bool {
	return true
}

func isAffirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// NonInteractivePrompter
// -----------------------------------------------------------------------------

// NonInteractivePrompter refuses every question. It is used when stdin is
// not a terminal so an interactive restore can never be answered by a pipe.
type NonInteractivePrompter struct{}

// NewNonInteractivePrompter returns a prompter that always refuses.
func NewNonInteractivePrompter() *NonInteractivePrompter {
	return &NonInteractivePrompter{}
}

// Confirm returns ErrNonInteractive.
func (p *NonInteractivePrompter) Confirm(_ context.Context, prompt string) (bool, error) {
	return false, fmt.Errorf("%w: %q", ErrNonInteractive, prompt)
}

// IsInteractive returns false.
func (p *NonInteractivePrompter) IsInteractive() bool {
	return false
}
