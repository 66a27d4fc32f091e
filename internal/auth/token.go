package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// TokenEnvVar holds a hex-encoded auth token directly.
	TokenEnvVar = "MODALITY_AUTH_TOKEN"
	// TokenFileEnvVar points at a file containing a hex-encoded token.
	TokenFileEnvVar = "MODALITY_AUTH_TOKEN_FILE"
)

// Token is the decoded auth token presented during the backend handshake.
// An empty token means anonymous access.
type Token []byte

// Hex returns the wire encoding of the token.
func (t Token) Hex() string {
	return hex.EncodeToString(t)
}

// Load resolves a token from the environment, an explicitly configured
// file, or the user default path, in that order. An absent token is not
// an error: Load returns an empty token when no source is configured and
// the default file does not exist. Unreadable configured sources fail
// loading; non-hex content fails parsing.
func Load() (Token, error) {
	if raw, ok := os.LookupEnv(TokenEnvVar); ok {
		return Parse(raw)
	}

	if path, ok := os.LookupEnv(TokenFileEnvVar); ok {
		return loadFile(path, true)
	}

	path, err := defaultTokenPath()
	if err != nil {
		return nil, fmt.Errorf("auth: resolve token path: %w", err)
	}
	return loadFile(path, false)
}

// ErrParse marks a token that was found but could not be decoded.
var ErrParse = errors.New("invalid auth token")

// Parse decodes a hex token string.
func Parse(raw string) (Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("auth: empty auth token: %w", ErrParse)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("auth: token is not valid hex (%v): %w", err, ErrParse)
	}
	return Token(b), nil
}

func loadFile(path string, required bool) (Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: read token file: %w", err)
	}
	return Parse(string(data))
}

func defaultTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "testtrace", "auth_token"), nil
}
