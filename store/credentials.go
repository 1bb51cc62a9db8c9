package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	gap "github.com/muesli/go-app-paths"

	"github.com/nullp2ike/speech-practice/tts"
)

// DefaultCredentialsPath resolves the per-user credentials file
// location, kept apart from the settings file so it can carry tighter
// permissions.
func DefaultCredentialsPath() (string, error) {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.DataDirs()
	if err != nil || len(dirs) == 0 {
		return "", err
	}
	return filepath.Join(dirs[0], "credentials.json"), nil
}

// Credentials is a file-backed credential store. The file maps provider
// names to key material and is written with owner-only permissions.
type Credentials struct {
	path string
}

// NewCredentials creates a store over the given file path.
func NewCredentials(path string) *Credentials {
	return &Credentials{path: path}
}

func (c *Credentials) read() map[string]tts.Credentials {
	out := map[string]tts.Credentials{}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]tts.Credentials{}
	}
	return out
}

func (c *Credentials) write(m map[string]tts.Credentials) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// Has reports whether usable credentials exist for the provider.
func (c *Credentials) Has(provider tts.Provider) bool {
	creds, ok := c.Load(provider)
	return ok && creds.Key != "" && creds.Region != ""
}

// Load returns the stored credentials for the provider.
func (c *Credentials) Load(provider tts.Provider) (tts.Credentials, bool) {
	creds, ok := c.read()[string(provider)]
	return creds, ok
}

// Save stores credentials for the provider.
func (c *Credentials) Save(provider tts.Provider, creds tts.Credentials) error {
	m := c.read()
	m[string(provider)] = creds
	return c.write(m)
}

// Delete removes the provider's credentials. Deleting what is not there
// is not an error.
func (c *Credentials) Delete(provider tts.Provider) error {
	m := c.read()
	if _, ok := m[string(provider)]; !ok {
		return nil
	}
	delete(m, string(provider))
	return c.write(m)
}
