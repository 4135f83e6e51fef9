package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/term"

	"pagegen/pkg/logx"
)

// Secrets file layout: [salt][nonce][ciphertext+tag].
const (
	saltSize  = 16
	nonceSize = 12
	scryptN   = 32768 // 2^15
	scryptR   = 8
	scryptP   = 1
	keySize   = 32 // AES-256
)

// ErrSecretNotFound is returned when neither the secrets file nor the environment has a value.
var ErrSecretNotFound = errors.New("secret not found")

// Global state for decrypted secrets.
//
//nolint:gochecknoglobals // Intentional global state for in-memory secrets storage
var (
	decryptedSecrets    map[string]string
	decryptedSecretsMux sync.RWMutex
)

// SetDecryptedSecrets stores decrypted secrets in memory.
func SetDecryptedSecrets(secrets map[string]string) {
	decryptedSecretsMux.Lock()
	defer decryptedSecretsMux.Unlock()
	decryptedSecrets = maps.Clone(secrets)
}

// GetSecret returns a secret by name: decrypted secrets file first, then the environment.
func GetSecret(name string) (string, error) {
	decryptedSecretsMux.RLock()
	value, ok := decryptedSecrets[name]
	decryptedSecretsMux.RUnlock()
	if ok && value != "" {
		return value, nil
	}
	if value := os.Getenv(name); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s not in secrets file or environment", ErrSecretNotFound, name)
}

// APIKey returns the credential for provider. For Ollama it returns the host URL.
func (c *Config) APIKey(provider string) (string, error) {
	var envVar string
	switch provider {
	case ProviderAnthropic:
		envVar = EnvAnthropicAPIKey
	case ProviderOpenAI:
		envVar = EnvOpenAIAPIKey
	case ProviderGoogle:
		envVar = EnvGoogleAPIKey
	case ProviderOllama:
		if c.Reasoning.OllamaHost != "" {
			return c.Reasoning.OllamaHost, nil
		}
		host, _ := GetSecret(EnvOllamaHost)
		return host, nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}
	return GetSecret(envVar)
}

// SecretsPath returns the encrypted secrets file inside dir.
func SecretsPath(dir string) string {
	return filepath.Join(dir, DefaultSecretsFileName)
}

// SecretsFileExists checks whether dir holds an encrypted secrets file.
func SecretsFileExists(dir string) bool {
	_, err := os.Stat(SecretsPath(dir))
	return err == nil
}

func deriveGCM(password string, salt []byte) (cipher.AEAD, error) {
	passwordBytes := []byte(password)
	defer clear(passwordBytes)

	key, err := scrypt.Key(passwordBytes, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptSecretsFile encrypts secrets into dir with mode 0600.
func EncryptSecretsFile(dir, password string, secrets map[string]string) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := deriveGCM(password, salt)
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}
	defer clear(plaintext)

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	fileData := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	fileData = append(fileData, salt...)
	fileData = append(fileData, nonce...)
	fileData = append(fileData, ciphertext...)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}
	if err := os.WriteFile(SecretsPath(dir), fileData, 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

// DecryptSecretsFile decrypts the secrets file in dir.
func DecryptSecretsFile(dir, password string) (map[string]string, error) {
	path := SecretsPath(dir)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets file: %w", err)
	}
	if info.Mode().Perm() != 0o600 {
		logx.Warnf("⚠️  Secrets file has permissions %04o, resetting to 0600", info.Mode().Perm())
		if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
			return nil, fmt.Errorf("failed to fix file permissions: %w", chmodErr)
		}
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	if len(fileData) < saltSize+nonceSize+16 { // 16 is the GCM tag size
		return nil, errors.New("secrets file is corrupted or invalid format (too small)")
	}

	salt := fileData[:saltSize]
	nonce := fileData[saltSize : saltSize+nonceSize]
	ciphertext := fileData[saltSize+nonceSize:]

	gcm, err := deriveGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("decryption failed (wrong password or corrupted file)")
	}
	defer clear(plaintext)

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets: %w", err)
	}
	return secrets, nil
}

// SetSecretInFile adds or replaces one secret in the file, creating it when missing.
func SetSecretInFile(dir, password, name, value string) error {
	secrets := map[string]string{}
	if SecretsFileExists(dir) {
		existing, err := DecryptSecretsFile(dir, password)
		if err != nil {
			return err
		}
		secrets = existing
	}
	secrets[name] = value
	return EncryptSecretsFile(dir, password, secrets)
}

// UnlockSecrets loads the secrets file in dir into memory when it exists.
// The password comes from PAGEGEN_PASSWORD, or an interactive prompt when
// stdin is a terminal.
func UnlockSecrets(dir string) error {
	if !SecretsFileExists(dir) {
		return nil
	}
	password := os.Getenv(EnvPassword)
	if password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
			logx.Warnf("🔒 Secrets file present but %s is unset and stdin is not a terminal; using environment only", EnvPassword)
			return nil
		}
		var err error
		password, err = PromptPassword("Secrets password: ")
		if err != nil {
			return err
		}
	}
	secrets, err := DecryptSecretsFile(dir, password)
	if err != nil {
		return err
	}
	SetDecryptedSecrets(secrets)
	logx.Infof("🔓 Loaded %d secrets from %s", len(secrets), SecretsPath(dir))
	return nil
}

// PromptPassword reads a line from the terminal without echo.
func PromptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	defer clear(password)
	return string(password), nil
}
