package store

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/nullp2ike/speech-practice/tts"
)

func credPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "credentials.json")
}

func TestCredentialsRoundTrip(t *testing.T) {
	c := NewCredentials(credPath(t))

	if c.Has(tts.ProviderAzure) {
		t.Error("Expected no credentials initially")
	}

	in := tts.Credentials{Key: "secret-key", Region: "westeurope"}
	if err := c.Save(tts.ProviderAzure, in); err != nil {
		t.Fatal(err)
	}

	if !c.Has(tts.ProviderAzure) {
		t.Error("Expected Has after Save")
	}
	got, ok := c.Load(tts.ProviderAzure)
	if !ok {
		t.Fatal("Expected Load to find saved credentials")
	}
	if got != in {
		t.Errorf("Expected %+v, got %+v", in, got)
	}
}

func TestCredentialsDelete(t *testing.T) {
	c := NewCredentials(credPath(t))

	if err := c.Delete(tts.ProviderAzure); err != nil {
		t.Errorf("Expected deleting absent credentials to succeed, got %v", err)
	}

	if err := c.Save(tts.ProviderAzure, tts.Credentials{Key: "k", Region: "r"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(tts.ProviderAzure); err != nil {
		t.Fatal(err)
	}
	if c.Has(tts.ProviderAzure) {
		t.Error("Expected credentials gone after Delete")
	}
}

func TestIncompleteCredentialsDoNotCount(t *testing.T) {
	c := NewCredentials(credPath(t))

	if err := c.Save(tts.ProviderAzure, tts.Credentials{Key: "k"}); err != nil {
		t.Fatal(err)
	}
	if c.Has(tts.ProviderAzure) {
		t.Error("Expected key without region not to count as usable")
	}
}

func TestCredentialsFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	path := credPath(t)
	c := NewCredentials(path)

	if err := c.Save(tts.ProviderAzure, tts.Credentials{Key: "k", Region: "r"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("Expected 0600 permissions, got %o", perm)
	}
}

func TestCorruptCredentialsFile(t *testing.T) {
	path := credPath(t)
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	c := NewCredentials(path)
	if c.Has(tts.ProviderAzure) {
		t.Error("Expected corrupt file to read as empty")
	}
	if err := c.Save(tts.ProviderAzure, tts.Credentials{Key: "k", Region: "r"}); err != nil {
		t.Fatal(err)
	}
	if !c.Has(tts.ProviderAzure) {
		t.Error("Expected Save to recover from a corrupt file")
	}
}
