package tokenstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

var _ Store = (*FileStore)(nil)

// FileStore persists both slots to a single local file so a session
// survives a process restart. When a seal key is configured the file is
// encrypted at rest with XChaCha20-Poly1305; without one it is plain JSON.
// All I/O is best-effort: a missing, corrupt, or undecryptable file is
// treated the same as an empty store.
type FileStore struct {
	path       string
	sealKey    []byte // nil disables sealing
	accessTTL  time.Duration
	refreshTTL time.Duration

	lock    sync.Mutex
	access  slot
	refresh slot
}

type storedPair struct {
	Access  slot `json:"access"`
	Refresh slot `json:"refresh"`
}

// FileStoreOption modifies a FileStore at construction.
type FileStoreOption func(*FileStore)

// WithSealKey enables encryption at rest. Any non-empty string works as key
// material; it is stretched to the cipher's key size.
func WithSealKey(key string) FileStoreOption {
	return func(fs *FileStore) {
		if key == "" {
			return
		}
		sum := sha256.Sum256([]byte(key))
		fs.sealKey = sum[:]
	}
}

// WithFileTTLs overrides the advisory validity windows.
func WithFileTTLs(accessTTL, refreshTTL time.Duration) FileStoreOption {
	return func(fs *FileStore) {
		fs.accessTTL = accessTTL
		fs.refreshTTL = refreshTTL
	}
}

// NewFileStore loads any previously persisted pair from path.
func NewFileStore(path string, options ...FileStoreOption) *FileStore {
	fs := &FileStore{
		path:       path,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
	}
	for _, opt := range options {
		opt(fs)
	}
	fs.load()
	return fs
}

func (fs *FileStore) Set(pair Pair) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.access = accessSlot(pair.AccessToken, fs.accessTTL)
	fs.refresh = refreshSlot(pair.RefreshToken, fs.refreshTTL)
	fs.persist()
}

func (fs *FileStore) Get() (Pair, bool) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	now := NowTimeFunc()
	var pair Pair
	if fs.access.valid(now) {
		pair.AccessToken = fs.access.Token
	}
	if fs.refresh.valid(now) {
		pair.RefreshToken = fs.refresh.Token
	}
	return pair, pair.AccessToken != "" || pair.RefreshToken != ""
}

func (fs *FileStore) Clear() {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.access = slot{}
	fs.refresh = slot{}
	_ = os.Remove(fs.path)
}

func (fs *FileStore) load() {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return
	}
	if fs.sealKey != nil {
		if data, err = fs.unseal(data); err != nil {
			return
		}
	}
	var stored storedPair
	if err := json.Unmarshal(data, &stored); err != nil {
		return
	}
	fs.access = stored.Access
	fs.refresh = stored.Refresh
}

func (fs *FileStore) persist() {
	data, err := json.Marshal(storedPair{Access: fs.access, Refresh: fs.refresh})
	if err != nil {
		return
	}
	if fs.sealKey != nil {
		if data, err = fs.seal(data); err != nil {
			return
		}
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return
	}
	_ = os.WriteFile(fs.path, data, 0o600)
}

func (fs *FileStore) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(fs.sealKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (fs *FileStore) unseal(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(fs.sealKey)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed payload too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}
