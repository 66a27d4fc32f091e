package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(TokenEnvVar, "deadbeef")

	tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tok.Hex() != "deadbeef" {
		t.Fatalf("token = %s, want deadbeef", tok.Hex())
	}
}

// unsetenv clears name for the test while preserving the caller's value.
func unsetenv(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	os.Unsetenv(name)
}

func TestLoadFromFile(t *testing.T) {
	unsetenv(t, TokenEnvVar)
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("c0ffee\n"), 0600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
	t.Setenv(TokenFileEnvVar, path)

	tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tok.Hex() != "c0ffee" {
		t.Fatalf("token = %s, want c0ffee", tok.Hex())
	}
}

func TestLoadMissingConfiguredFileFails(t *testing.T) {
	unsetenv(t, TokenEnvVar)
	t.Setenv(TokenFileEnvVar, filepath.Join(t.TempDir(), "absent"))

	if _, err := Load(); err == nil {
		t.Fatal("Load with missing configured file succeeded, want error")
	}
}

func TestParseRejectsNonHex(t *testing.T) {
	_, err := Parse("not hex!")
	if err == nil {
		t.Fatal("Parse succeeded, want error")
	}
	if !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse("  \n"); !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
}
