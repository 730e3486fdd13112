// Package session persists the logged-in user's access token between CLI runs.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/BurntSushi/toml"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ganjinghwan/erecipehub/core/vault"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrLocked   = errors.New("session is encrypted and no identity was provided")
)

type User struct {
	ID       string `toml:"id,omitempty"`
	Username string `toml:"username,omitempty"`
	Role     string `toml:"role,omitempty"`
}

type State struct {
	Version     int       `toml:"version"`
	ServerURL   string    `toml:"server_url"`
	AccessToken string    `toml:"access_token,omitempty"`
	ExpiresAt   time.Time `toml:"expires_at,omitempty"`
	User        User      `toml:"user"`
}

// Expired reports whether the token has a known expiry that has passed.
func (s State) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "erecipehub", "session.toml"), nil
}

// FromToken builds a session from an access token. Claims are read without
// verifying the signature; the server remains the authority on validity.
func FromToken(serverURL, token string) (State, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return State{}, errors.New("access token is required")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return State{}, fmt.Errorf("parse access token: %w", err)
	}

	s := State{
		Version:     1,
		ServerURL:   strings.TrimRight(strings.TrimSpace(serverURL), "/"),
		AccessToken: token,
		User: User{
			ID:       firstClaim(claims, "sub", "userId", "id"),
			Username: firstClaim(claims, "username", "name"),
			Role:     firstClaim(claims, "role"),
		},
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time.UTC()
	}
	return s, nil
}

func firstClaim(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Load reads the session at path. An encrypted file needs id to open.
func Load(path string, id age.Identity) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, ErrNotFound
		}
		return State{}, err
	}
	if vault.IsEncrypted(data) {
		if id == nil {
			return State{}, ErrLocked
		}
		if data, err = vault.Decrypt(data, id); err != nil {
			return State{}, fmt.Errorf("decrypt session: %w", err)
		}
	}

	var s State
	if _, err := toml.Decode(string(data), &s); err != nil {
		return State{}, fmt.Errorf("decode session: %w", err)
	}
	if s.Version == 0 {
		s.Version = 1
	}
	s.ServerURL = strings.TrimRight(strings.TrimSpace(s.ServerURL), "/")
	return s, nil
}

// Write stores the session at path, encrypted to "to" when it is non-nil.
func Write(path string, s State, to age.Recipient) error {
	s.ServerURL = strings.TrimRight(strings.TrimSpace(s.ServerURL), "/")
	if s.ServerURL == "" {
		return errors.New("server_url is required")
	}
	if s.Version == 0 {
		s.Version = 1
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return err
	}
	data := buf.Bytes()
	if to != nil {
		sealed, err := vault.Encrypt(data, to)
		if err != nil {
			return fmt.Errorf("encrypt session: %w", err)
		}
		data = sealed
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Remove deletes the session file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
