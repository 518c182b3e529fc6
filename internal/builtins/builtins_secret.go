package builtins

import (
	"errors"

	"github.com/phillarmonic/essence/internal/shellctx"
)

// errNoSecretsBackend is returned when export --secret is used but the
// shell was started without a secrets backend configured.
var errNoSecretsBackend = errors.New("no secrets backend configured")

// exportSecret resolves name through the shell's configured secrets
// backend, the lookup behind the export --secret supplement.
func exportSecret(ctx *shellctx.Context, name string) (string, error) {
	if ctx.Secrets == nil {
		return "", errNoSecretsBackend
	}
	return ctx.Secrets.Get(name)
}

// storeSecret writes value into the shell's configured secrets backend
// under name, the write behind export --secret NAME=VALUE.
func storeSecret(ctx *shellctx.Context, name, value string) error {
	if ctx.Secrets == nil {
		return errNoSecretsBackend
	}
	return ctx.Secrets.Set(name, value)
}
