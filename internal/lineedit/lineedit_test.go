package lineedit

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/phillarmonic/essence/internal/historystore"
)

func newTestEditor(t *testing.T, input string) *Editor {
	t.Helper()
	store, err := historystore.Open(afero.NewMemMapFs(), t.TempDir())
	if err != nil {
		t.Fatalf("historystore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return &Editor{
		fd:      -1,
		reader:  bufio.NewReader(strings.NewReader(input)),
		history: store,
		verase:  0x7f,
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	w.Close()
	os.Stdout = orig
	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	r.Close()
	return string(buf[:n])
}

func TestReadLine_SimpleLine(t *testing.T) {
	e := newTestEditor(t, "echo hi\n")
	var line string
	var eof bool
	captureStdout(t, func() {
		line, eof = e.ReadLine("$ ")
	})
	if eof {
		t.Fatal("unexpected eof")
	}
	if line != "echo hi" {
		t.Fatalf("line = %q, want %q", line, "echo hi")
	}
	if got, ok := e.history.At(1); !ok || got != "echo hi" {
		t.Fatalf("history.At(1) = %q, %v, want %q, true", got, ok, "echo hi")
	}
}

func TestReadLine_BackspaceErasesCharacter(t *testing.T) {
	e := newTestEditor(t, "ab\x7fc\n")
	var line string
	captureStdout(t, func() {
		line, _ = e.ReadLine("$ ")
	})
	if line != "ac" {
		t.Fatalf("line = %q, want %q", line, "ac")
	}
}

func TestReadLine_EOFWithNoBytesReturnsEOF(t *testing.T) {
	e := newTestEditor(t, "")
	var line string
	var eof bool
	captureStdout(t, func() {
		line, eof = e.ReadLine("$ ")
	})
	if !eof {
		t.Fatal("expected eof")
	}
	if line != "" {
		t.Fatalf("line = %q, want empty", line)
	}
}

func TestReadLine_LeftArrowThenInsert(t *testing.T) {
	// "ab" then left-arrow (ESC [ D) then "x" then newline: expect "axb"
	e := newTestEditor(t, "ab\x1b[Dx\n")
	var line string
	captureStdout(t, func() {
		line, _ = e.ReadLine("$ ")
	})
	if line != "axb" {
		t.Fatalf("line = %q, want %q", line, "axb")
	}
}

func TestCandidates_DirectoryPrefixMatch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"foo.txt", "foobar.txt", "bar.txt", ".hidden"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	e := newTestEditor(t, "")
	got := e.candidates(filepath.Join(dir, "fo"), false)
	want := []string{"foo.txt", "foobar.txt"}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want suffix matches of %v", got, want)
	}
	for i, w := range want {
		if !strings.HasSuffix(got[i], w) {
			t.Fatalf("candidates[%d] = %q, want suffix %q", i, got[i], w)
		}
	}
}

func TestCandidates_SkipsDotfiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".secret"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	e := newTestEditor(t, "")
	got := e.candidates(dir+"/", false)
	for _, c := range got {
		if strings.HasPrefix(filepath.Base(c), ".") {
			t.Fatalf("candidates included a dotfile: %v", got)
		}
	}
}

func TestTokenPrefix(t *testing.T) {
	cases := []struct {
		token string
		want  string
	}{
		{"/et", "et"},
		{"foo", "foo"},
		{"a/b/c", "c"},
		{"", ""},
	}
	for _, c := range cases {
		if got := tokenPrefix(c.token); got != c.want {
			t.Errorf("tokenPrefix(%q) = %q, want %q", c.token, got, c.want)
		}
	}
}

func TestHandleTab_CompletesDirectoryPathWithoutDuplicatingSegment(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(dir+"/etc", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	e := newTestEditor(t, "")
	token := dir + "/et"
	line := []byte("cat " + token)
	cursor := len(line)

	newLine, newCursor, _ := e.handleTab("", line, cursor, false)
	want := "cat " + dir + "/etc/"
	if string(newLine) != want {
		t.Fatalf("handleTab line = %q, want %q", newLine, want)
	}
	if newCursor != len(want) {
		t.Fatalf("handleTab cursor = %d, want %d", newCursor, len(want))
	}
}

func TestTailDisplayWidth_ASCII(t *testing.T) {
	if got := tailDisplayWidth([]byte("hello")); got != 5 {
		t.Fatalf("tailDisplayWidth(hello) = %d, want 5", got)
	}
}

func TestTailDisplayWidth_WideRune(t *testing.T) {
	// A fullwidth CJK character occupies two terminal columns.
	if got := tailDisplayWidth([]byte("あ")); got != 2 {
		t.Fatalf("tailDisplayWidth(fullwidth rune) = %d, want 2", got)
	}
}
