// Package secrets stores language model API keys in the system keyring,
// falling back to a 0600 file on headless hosts.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const keyringService = "boardroom-llm"

// ErrNotFound is returned when no key is stored for a provider
var ErrNotFound = errors.New("api key not found")

var (
	// fallbackMode indicates if we're using file-based fallback (headless systems)
	fallbackMode    bool
	fallbackModeMu  sync.Mutex
	fallbackChecked bool

	// fallbackDir can be overridden in tests
	fallbackDir = defaultFallbackDir
)

// checkKeyringAvailable tests if system keyring is available
func checkKeyringAvailable() bool {
	fallbackModeMu.Lock()
	defer fallbackModeMu.Unlock()

	if fallbackChecked {
		return !fallbackMode
	}

	testKey := "boardroom-keyring-test"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		fallbackMode = true
		fallbackChecked = true
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	fallbackChecked = true
	return true
}

func resetKeyringCheck() {
	fallbackModeMu.Lock()
	defer fallbackModeMu.Unlock()
	fallbackChecked = false
	fallbackMode = false
}

func defaultFallbackDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".boardroom", "keys"), nil
}

func fallbackPath(provider string) (string, error) {
	dir, err := fallbackDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, provider+".key"), nil
}

func normalizeProvider(provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || strings.ContainsAny(provider, `/\.`) {
		return "", fmt.Errorf("invalid provider name %q", provider)
	}
	return provider, nil
}

// StoreAPIKey saves the key for a provider
func StoreAPIKey(provider, key string) error {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}

	if checkKeyringAvailable() {
		if err := keyring.Set(keyringService, provider, key); err != nil {
			return fmt.Errorf("failed to store key in keyring: %w", err)
		}
		return nil
	}

	path, err := fallbackPath(provider)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(key), 0600); err != nil {
		return fmt.Errorf("failed to write fallback key: %w", err)
	}
	return nil
}

// LoadAPIKey returns the stored key for a provider, or ErrNotFound
func LoadAPIKey(provider string) (string, error) {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return "", err
	}

	if checkKeyringAvailable() {
		key, err := keyring.Get(keyringService, provider)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("failed to read keyring: %w", err)
		}
	}

	path, err := fallbackPath(provider)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

// DeleteAPIKey removes the key from the keyring and the fallback file
func DeleteAPIKey(provider string) error {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return err
	}

	var keyringErr error
	if checkKeyringAvailable() {
		keyringErr = keyring.Delete(keyringService, provider)
		if errors.Is(keyringErr, keyring.ErrNotFound) {
			keyringErr = nil
		}
	}

	path, err := fallbackPath(provider)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return keyringErr
}

// StorageMode describes where keys are kept
func StorageMode() string {
	if checkKeyringAvailable() {
		return "system-keyring"
	}
	return "file-based (keyring unavailable)"
}
