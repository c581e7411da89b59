package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cuemby/burrow/pkg/resource"
)

// Static is an in-memory credential provider for tests and demos
type Static map[string]string

// Credential implements resource.CredentialProvider
func (s Static) Credential(_ context.Context, id string) (string, error) {
	v, ok := s[id]
	if !ok {
		return "", &NotFoundError{ID: id}
	}
	return v, nil
}

// NotFoundError reports an unknown credential id
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("credential %s not found", e.ID)
}

// Vault is a file-backed credential provider. Credentials are stored
// encrypted with AES-256-GCM under a key derived from a passphrase;
// each value carries its own random nonce. Lookups decrypt on demand,
// so a plaintext credential never sits in memory between calls.
type Vault struct {
	path string
	key  []byte // 32 bytes for AES-256

	mu sync.Mutex
}

// vaultFile is the on-disk shape: base64(nonce||ciphertext) per id
type vaultFile struct {
	Credentials map[string]string `json:"credentials"`
}

// NewVault opens or creates a credential vault at path. The passphrase
// is hashed with SHA-256 to derive the encryption key.
func NewVault(path, passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	hash := sha256.Sum256([]byte(passphrase))

	v := &Vault{path: path, key: hash[:]}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := v.write(&vaultFile{Credentials: make(map[string]string)}); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Credential implements resource.CredentialProvider. The value is read
// from disk and decrypted on every call; rotations made by Put are
// visible immediately.
func (v *Vault) Credential(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.read()
	if err != nil {
		return "", err
	}
	sealed, ok := file.Credentials[id]
	if !ok {
		return "", &NotFoundError{ID: id}
	}
	plaintext, err := v.open(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential %s: %w", id, err)
	}
	return string(plaintext), nil
}

// Put stores or rotates one credential
func (v *Vault) Put(id, value string) error {
	if id == "" {
		return fmt.Errorf("credential id cannot be empty")
	}

	sealed, err := v.seal([]byte(value))
	if err != nil {
		return fmt.Errorf("failed to encrypt credential %s: %w", id, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.read()
	if err != nil {
		return err
	}
	file.Credentials[id] = sealed
	return v.write(file)
}

// Delete removes one credential; deleting an unknown id is a no-op
func (v *Vault) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.read()
	if err != nil {
		return err
	}
	delete(file.Credentials, id)
	return v.write(file)
}

// IDs lists the stored credential ids without decrypting anything
func (v *Vault) IDs() ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.read()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(file.Credentials))
	for id := range file.Credentials {
		ids = append(ids, id)
	}
	return ids, nil
}

func (v *Vault) seal(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (v *Vault) open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("malformed ciphertext: %w", err)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (v *Vault) read() (*vaultFile, error) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault: %w", err)
	}
	file := &vaultFile{}
	if err := json.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("failed to parse vault: %w", err)
	}
	if file.Credentials == nil {
		file.Credentials = make(map[string]string)
	}
	return file, nil
}

func (v *Vault) write(file *vaultFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode vault: %w", err)
	}
	return os.WriteFile(v.path, data, 0600)
}

var (
	_ resource.CredentialProvider = Static(nil)
	_ resource.CredentialProvider = (*Vault)(nil)
)
