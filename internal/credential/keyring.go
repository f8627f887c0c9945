package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/99designs/keyring"
)

const (
	serviceName = "taskboard"
	cookiesKey  = "session-cookies"
)

// ErrNoCredentials is returned when nothing is stored.
var ErrNoCredentials = errors.New("no stored credentials")

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/taskboard/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("taskboard-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Vault stores the session cookies in the system keyring so a restart
// can resume the session.
type Vault struct {
	ring keyring.Keyring
}

// Open returns a vault backed by the system keyring.
func Open() (*Vault, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return &Vault{ring: ring}, nil
}

// NewVault wraps an existing keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// Get retrieves a credential value by key.
func (v *Vault) Get(key string) (string, error) {
	item, err := v.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key.
func (v *Vault) Set(key string, value string) error {
	err := v.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key. A missing key is not an error.
func (v *Vault) Delete(key string) error {
	err := v.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SaveJar stores the cookies jar holds for u.
func (v *Vault) SaveJar(jar http.CookieJar, u *url.URL) error {
	cookies := jar.Cookies(u)
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshaling cookies: %w", err)
	}
	return v.Set(cookiesKey, string(data))
}

// RestoreJar loads the stored cookies into jar for u and returns them.
func (v *Vault) RestoreJar(jar http.CookieJar, u *url.URL) ([]*http.Cookie, error) {
	data, err := v.Get(cookiesKey)
	if err != nil {
		return nil, err
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("unmarshaling cookies: %w", err)
	}
	if len(stored) == 0 {
		return nil, ErrNoCredentials
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		cookies = append(cookies, &http.Cookie{Name: s.Name, Value: s.Value, Path: "/"})
	}
	jar.SetCookies(u, cookies)
	return cookies, nil
}

// ClearCookies forgets the stored cookies.
func (v *Vault) ClearCookies() error {
	return v.Delete(cookiesKey)
}
