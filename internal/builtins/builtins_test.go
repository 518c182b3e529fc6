package builtins

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/phillarmonic/essence/internal/shellctx"
)

func newTestContext() *shellctx.Context {
	return &shellctx.Context{Env: shellctx.NewEnvironment()}
}

func TestCd_ChangesToGivenDirectory(t *testing.T) {
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(start)

	dir := t.TempDir()
	ctx := newTestContext()
	if status := Cd(ctx, []string{"cd", dir}); status != 0 {
		t.Fatalf("Cd status = %d, want 0", status)
	}

	got, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Fatalf("cwd = %q, want %q", gotResolved, want)
	}
}

func TestCd_FallsBackToHomeWithNoArgument(t *testing.T) {
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(start)

	home := t.TempDir()
	ctx := newTestContext()
	ctx.Env.Set("HOME", home)

	if status := Cd(ctx, []string{"cd"}); status != 0 {
		t.Fatalf("Cd status = %d, want 0", status)
	}
	got, _ := os.Getwd()
	want, _ := filepath.EvalSymlinks(home)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Fatalf("cwd = %q, want %q", gotResolved, want)
	}
}

func TestCd_ReportsErrorOnMissingDirectory(t *testing.T) {
	ctx := newTestContext()
	status := Cd(ctx, []string{"cd", "/no/such/path/essence-test"})
	if status != 1 {
		t.Fatalf("Cd status = %d, want 1", status)
	}
}

func TestPwd_PrintsWorkingDirectory(t *testing.T) {
	ctx := newTestContext()
	if status := Pwd(ctx, []string{"pwd"}); status != 0 {
		t.Fatalf("Pwd status = %d, want 0", status)
	}
}

func TestExport_SetsPlainAssignment(t *testing.T) {
	ctx := newTestContext()
	status := Export(ctx, []string{"export", "FOO=bar"})
	if status != 0 {
		t.Fatalf("Export status = %d, want 0", status)
	}
	if got := ctx.Env.Get("FOO"); got != "bar" {
		t.Fatalf("FOO = %q, want %q", got, "bar")
	}
}

func TestExport_MultipleAssignments(t *testing.T) {
	ctx := newTestContext()
	status := Export(ctx, []string{"export", "A=1", "B=2"})
	if status != 0 {
		t.Fatalf("Export status = %d, want 0", status)
	}
	if ctx.Env.Get("A") != "1" || ctx.Env.Get("B") != "2" {
		t.Fatalf("A=%q B=%q, want 1/2", ctx.Env.Get("A"), ctx.Env.Get("B"))
	}
}

func TestExport_RejectsMalformedAssignment(t *testing.T) {
	ctx := newTestContext()
	status := Export(ctx, []string{"export", "NOEQUALS"})
	if status != 1 {
		t.Fatalf("Export status = %d, want 1", status)
	}
}

type fakeSecretsManager struct {
	values map[string]string
}

func (f *fakeSecretsManager) Set(name, value string) error { f.values[name] = value; return nil }
func (f *fakeSecretsManager) Get(name string) (string, error) {
	v, ok := f.values[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}
func (f *fakeSecretsManager) Delete(name string) error         { delete(f.values, name); return nil }
func (f *fakeSecretsManager) Exists(name string) (bool, error) { _, ok := f.values[name]; return ok, nil }
func (f *fakeSecretsManager) List() ([]string, error)          { return nil, nil }

func TestExport_SecretPullsFromBackend(t *testing.T) {
	ctx := newTestContext()
	ctx.Secrets = &fakeSecretsManager{values: map[string]string{"API_TOKEN": "s3cr3t"}}

	status := Export(ctx, []string{"export", "--secret", "API_TOKEN"})
	if status != 0 {
		t.Fatalf("Export status = %d, want 0", status)
	}
	if got := ctx.Env.Get("API_TOKEN"); got != "s3cr3t" {
		t.Fatalf("API_TOKEN = %q, want %q", got, "s3cr3t")
	}
}

func TestExport_SecretStoresNameEqualsValue(t *testing.T) {
	ctx := newTestContext()
	mgr := &fakeSecretsManager{values: map[string]string{}}
	ctx.Secrets = mgr

	status := Export(ctx, []string{"export", "--secret", "API_TOKEN=s3cr3t"})
	if status != 0 {
		t.Fatalf("Export status = %d, want 0", status)
	}
	if got := mgr.values["API_TOKEN"]; got != "s3cr3t" {
		t.Fatalf("backend API_TOKEN = %q, want %q", got, "s3cr3t")
	}
	if got := ctx.Env.Get("API_TOKEN"); got != "s3cr3t" {
		t.Fatalf("API_TOKEN = %q, want %q", got, "s3cr3t")
	}
}

func TestExport_SecretWithoutBackendFails(t *testing.T) {
	ctx := newTestContext()
	status := Export(ctx, []string{"export", "--secret", "API_TOKEN"})
	if status != 1 {
		t.Fatalf("Export status = %d, want 1", status)
	}
}

func TestExport_SecretMissingNameFails(t *testing.T) {
	ctx := newTestContext()
	status := Export(ctx, []string{"export", "--secret"})
	if status != 1 {
		t.Fatalf("Export status = %d, want 1", status)
	}
}

func TestHelp_ReturnsZero(t *testing.T) {
	ctx := newTestContext()
	if status := Help(ctx, []string{"help"}); status != 0 {
		t.Fatalf("Help status = %d, want 0", status)
	}
}

func TestTable_HasAllFiveBuiltins(t *testing.T) {
	for _, name := range []string{"cd", "pwd", "export", "exit", "help"} {
		if _, ok := Table[name]; !ok {
			t.Fatalf("Table missing builtin %q", name)
		}
	}
}
