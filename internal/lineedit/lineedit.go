// Package lineedit implements essence's interactive input line editor:
// raw-mode byte-at-a-time reading, cursor motion, history navigation,
// filename/PATH autocompletion, and redraw.
package lineedit

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
	"golang.org/x/text/width"

	"github.com/phillarmonic/essence/internal/historystore"
	"github.com/phillarmonic/essence/internal/pathcache"
)

const defaultBufferSize = 512

// Editor reads interactive lines from a terminal in raw mode. It
// satisfies input.LineReader.
type Editor struct {
	fd      int
	reader  *bufio.Reader
	history *historystore.Store
	paths   *pathcache.Cache

	rawState *term.State
	verase   byte
}

// New builds an Editor reading from stdin. history and paths may be
// nil (history navigation and PATH-name completion are then no-ops).
func New(history *historystore.Store, paths *pathcache.Cache) *Editor {
	return &Editor{
		fd:      int(os.Stdin.Fd()),
		reader:  bufio.NewReader(os.Stdin),
		history: history,
		paths:   paths,
		verase:  0x7f,
	}
}

// EnterRawMode captures the terminal's VERASE byte and installs a copy
// of the terminal settings with echo and canonical mode disabled. A
// no-op when stdin isn't a terminal (scripts, piped input, tests).
func (e *Editor) EnterRawMode() error {
	if !term.IsTerminal(e.fd) {
		return nil
	}
	if v, ok := getVerase(e.fd); ok {
		e.verase = v
	}
	state, err := term.MakeRaw(e.fd)
	if err != nil {
		return err
	}
	e.rawState = state
	return nil
}

// Restore reverts the terminal to the settings captured by EnterRawMode.
// Safe to call even if EnterRawMode was never called or was a no-op.
func (e *Editor) Restore() error {
	if e.rawState == nil {
		return nil
	}
	err := term.Restore(e.fd, e.rawState)
	e.rawState = nil
	return err
}

// ReadLine prints prompt, then reads and edits one line from the
// terminal, returning it without its trailing newline. eof is true
// when the input stream closes while the line is empty; a non-empty
// partial line at end of input is returned with eof false.
func (e *Editor) ReadLine(prompt string) (string, bool) {
	fmt.Print(prompt)

	line := make([]byte, 0, defaultBufferSize)
	cursor := 0
	historyCursor := 0
	var savedLiveLine *string
	lastWasTab := false

	for {
		b, err := e.reader.ReadByte()
		if err != nil {
			if len(line) == 0 {
				return "", true
			}
			return string(line), false
		}

		if b != '\t' {
			lastWasTab = false
		}

		switch {
		case b == 0x1b: // ESC
			next, err := e.reader.ReadByte()
			if err != nil || next != '[' {
				continue
			}
			csi, err := e.reader.ReadByte()
			if err != nil {
				continue
			}
			switch csi {
			case 'D':
				if cursor > 0 {
					fmt.Print("\b")
					cursor--
				} else {
					fmt.Print("\a")
				}
			case 'C':
				if cursor < len(line) {
					fmt.Printf("%c", line[cursor])
					cursor++
				}
			case 'A':
				line, cursor, historyCursor = e.historyUp(prompt, line, historyCursor, &savedLiveLine)
			case 'B':
				line, cursor, historyCursor = e.historyDown(prompt, line, historyCursor, &savedLiveLine)
			}

		case b == e.verase:
			if cursor > 0 {
				copy(line[cursor-1:], line[cursor:])
				line = line[:len(line)-1]
				cursor--
				fmt.Print("\b \b")
				e.redrawTail(line, cursor)
			}

		case b == '\n':
			fmt.Print("\n")
			result := string(line)
			if e.history != nil && result != "" {
				e.history.Append(result)
			}
			return result, false

		case b == '\t':
			line, cursor, lastWasTab = e.handleTab(prompt, line, cursor, lastWasTab)

		default:
			oldCursor := cursor
			line = insertByte(line, cursor, b)
			cursor++
			fmt.Print(string(line[oldCursor:]))
			fmt.Print(strings.Repeat("\b", tailDisplayWidth(line[cursor:])))
		}
	}
}

func insertByte(line []byte, at int, b byte) []byte {
	line = append(line, 0)
	copy(line[at+1:], line[at:])
	line[at] = b
	return line
}

// redrawTail reprints line from cursor to its end, clears one
// now-vacated terminal cell, then backs the cursor up to its original
// column. Used after VERASE deletes a character mid-line.
func (e *Editor) redrawTail(line []byte, cursor int) {
	tail := line[cursor:]
	fmt.Print(string(tail))
	fmt.Print(" \b")
	fmt.Print(strings.Repeat("\b", tailDisplayWidth(tail)))
}

// redrawLine moves to column 0, reprints prompt+newLine, and pads over
// any leftover tail from a longer previous line. Used for history
// up/down redraw.
func redrawLine(prompt string, oldLine, newLine []byte) {
	fmt.Printf("\033[G%s%s", prompt, string(newLine))
	diff := len(oldLine) - len(newLine)
	if diff > 0 {
		fmt.Print(strings.Repeat(" ", diff))
		fmt.Print(strings.Repeat("\b", diff))
	}
}

func (e *Editor) historyUp(prompt string, line []byte, historyCursor int, saved **string) ([]byte, int, int) {
	if e.history == nil {
		return line, len(line), historyCursor
	}
	entry, ok := e.history.At(historyCursor + 1)
	if !ok {
		return line, len(line), historyCursor
	}
	if historyCursor == 0 {
		s := string(line)
		*saved = &s
	}
	newLine := []byte(entry)
	redrawLine(prompt, line, newLine)
	return newLine, len(newLine), historyCursor + 1
}

func (e *Editor) historyDown(prompt string, line []byte, historyCursor int, saved **string) ([]byte, int, int) {
	if historyCursor == 0 {
		return line, len(line), historyCursor
	}
	historyCursor--

	var newLine []byte
	if historyCursor == 0 {
		if *saved != nil {
			newLine = []byte(**saved)
		}
		*saved = nil
	} else if e.history != nil {
		entry, _ := e.history.At(historyCursor)
		newLine = []byte(entry)
	}

	redrawLine(prompt, line, newLine)
	return newLine, len(newLine), historyCursor
}

// handleTab runs autocompletion for the token under the cursor. Two
// tabs in immediate succession list all candidates; a single tab with
// a unique candidate inserts it.
func (e *Editor) handleTab(prompt string, line []byte, cursor int, lastWasTab bool) ([]byte, int, bool) {
	start := cursor
	for start > 0 && line[start-1] != ' ' {
		start--
	}
	token := string(line[start:cursor])
	firstToken := start == 0

	matches := e.candidates(token, firstToken)
	if len(matches) == 0 {
		return line, cursor, false
	}

	if len(matches) == 1 {
		match := matches[0]
		suffix := match[len(tokenPrefix(token)):]
		if !strings.HasSuffix(match, "/") {
			suffix += " "
		}

		newLine := make([]byte, 0, len(line)+len(suffix))
		newLine = append(newLine, line[:cursor]...)
		newLine = append(newLine, suffix...)
		newLine = append(newLine, line[cursor:]...)

		fmt.Print(suffix + string(line[cursor:]))
		fmt.Print(strings.Repeat("\b", tailDisplayWidth(line[cursor:])))

		return newLine, cursor + len(suffix), false
	}

	if lastWasTab {
		fmt.Print("\n")
		fmt.Print(strings.Join(matches, ", "))
		fmt.Print("\n")
		fmt.Print(prompt + string(line))
		fmt.Print(strings.Repeat("\b", tailDisplayWidth(line[cursor:])))
		return line, cursor, false
	}
	return line, cursor, true
}

// candidates runs the autocompletion algorithm: tilde substitution,
// dir/prefix split, directory enumeration (skipping dotfiles,
// directories suffixed with "/"), and, only for the first token with
// no "/" in it, PATH executable names. Results are deduplicated.
func (e *Editor) candidates(token string, firstToken bool) []string {
	if strings.HasPrefix(token, "~") {
		if u, err := user.Current(); err == nil {
			token = u.HomeDir + token[1:]
		}
	}

	dir := "."
	prefix := token
	if idx := strings.LastIndexByte(token, '/'); idx >= 0 {
		dir = token[:idx]
		if dir == "" {
			dir = "/"
		}
		prefix = token[idx+1:]
	}

	seen := make(map[string]struct{})
	var out []string

	if entries, err := os.ReadDir(dir); err == nil {
		for _, ent := range entries {
			name := ent.Name()
			if strings.HasPrefix(name, ".") || !strings.HasPrefix(name, prefix) {
				continue
			}
			formatted := name
			if ent.IsDir() {
				formatted += "/"
			}
			if _, dup := seen[formatted]; dup {
				continue
			}
			seen[formatted] = struct{}{}
			out = append(out, formatted)
		}
	}

	if firstToken && e.paths != nil && !strings.Contains(token, "/") {
		for _, pd := range pathcache.Dirs() {
			entries, err := os.ReadDir(pd)
			if err != nil {
				continue
			}
			for _, ent := range entries {
				name := ent.Name()
				if strings.HasPrefix(name, ".") || !strings.HasPrefix(name, prefix) {
					continue
				}
				if _, dup := seen[name]; dup {
					continue
				}
				// Confirm (and cache) the resolution through the shared
				// PATH cache rather than re-deriving the executable bit
				// here, so a Tab press warms the same cache the
				// executor consults at dispatch time.
				if _, ok := e.paths.Lookup(name); !ok {
					continue
				}
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}

	sort.Strings(out)
	return out
}

// tokenPrefix returns the portion of token already typed since its last
// "/" (or all of it, if token has none): the part a completion match
// must have its suffix taken after, since match is always a bare
// directory entry name, never the directory path itself.
func tokenPrefix(token string) string {
	if idx := strings.LastIndexByte(token, '/'); idx >= 0 {
		return token[idx+1:]
	}
	return token
}

// tailDisplayWidth sums the terminal column width of each rune in b,
// so cursor-back-stepping stays correct for multi-byte UTF-8 input
// even though the line buffer itself is indexed byte-wise.
func tailDisplayWidth(b []byte) int {
	total := 0
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			size = 1
		}
		total += runeWidth(r)
		i += size
	}
	return total
}

func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}
