// Package command defines the Command and command-list data model.
package command

import "os"

// Flag is a bitmask of the flags a Command may carry. OR and AND are
// mutually exclusive.
type Flag int

const (
	FlagOr Flag = 1 << iota
	FlagAnd
	FlagJob // defined, never set by the parser (no job control)
	FlagPipeFromPrev
)

// Command is one word of a command list: a program invocation (argv),
// environment assignments to apply before exec, optional redirected
// file descriptors, and control-flow flags. A nil *os.File is the
// "none" sentinel meaning the descriptor is inherited unchanged.
type Command struct {
	Argv     []string
	ExtraEnv []string // "NAME=VALUE" strings

	StdinFile  *os.File
	StdoutFile *os.File
	StderrFile *os.File

	Flags Flag
}

// New returns an empty Command with no redirections.
func New() *Command {
	return &Command{}
}

// Argc returns len(Argv).
func (c *Command) Argc() int {
	return len(c.Argv)
}

// IsEmpty reports whether the command has neither arguments nor
// environment assignments. Only the last-appended command in a list may
// be empty, and a trailing empty command is stripped before execution;
// an assignment-only command (no argv, some ExtraEnv) is not empty.
func (c *Command) IsEmpty() bool {
	return len(c.Argv) == 0 && len(c.ExtraEnv) == 0
}

// Has reports whether flag is set.
func (c *Command) Has(flag Flag) bool {
	return c.Flags&flag != 0
}

// Set turns on flag.
func (c *Command) Set(flag Flag) {
	c.Flags |= flag
}

// List is an ordered sequence of Commands, linked by pipeline and
// conditional-chain flags.
type List struct {
	Commands []*Command
}

// NewList returns a List containing a single empty Command, ready for
// the parser to fill in: a growing command list whose last element is
// the command currently being built.
func NewList() *List {
	return &List{Commands: []*Command{New()}}
}

// Current returns the command currently being built (the last element).
func (l *List) Current() *Command {
	return l.Commands[len(l.Commands)-1]
}

// Append adds a new empty Command to the end of the list and returns it.
func (l *List) Append() *Command {
	c := New()
	l.Commands = append(l.Commands, c)
	return c
}

// TrimTrailingEmpty drops any suffix of empty commands. It never
// removes every command: an all-empty list collapses to a single empty
// command so the caller can recognize "nothing was typed" uniformly.
func (l *List) TrimTrailingEmpty() {
	for len(l.Commands) > 1 && l.Commands[len(l.Commands)-1].IsEmpty() {
		l.Commands = l.Commands[:len(l.Commands)-1]
	}
}

// Empty reports whether the list reduces to a single, empty command,
// meaning nothing was parsed.
func (l *List) Empty() bool {
	return len(l.Commands) == 1 && l.Commands[0].IsEmpty()
}
