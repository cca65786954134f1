// Package filestore persists the key-value map as a single JSON file,
// optionally sealed with XChaCha20-Poly1305 under a passphrase-derived key.
package filestore

import (
	"context"
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	apperrors "github.com/jrsteele09/go-customer-auth/internal/errors"
	"github.com/jrsteele09/go-customer-auth/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	fileMode     = 0o600
	dirMode      = 0o700
	saltSize     = 16
	sealedFormat = 2
	sealedAD     = "customer-auth filestore v2"
	kdfArgon2id  = "argon2id"

	// upper bounds on the parameters a sealed file may ask for
	maxKDFTime   = 16
	maxKDFMemory = 1 << 20
)

// KDFParams are the Argon2id cost parameters. Memory is in KiB.
type KDFParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultKDFParams follow the OWASP baseline for Argon2id.
var DefaultKDFParams = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}

func (p KDFParams) valid() bool {
	return p.Time >= 1 && p.Time <= maxKDFTime &&
		p.Threads >= 1 &&
		p.Memory >= 8*uint32(p.Threads) && p.Memory <= maxKDFMemory
}

// FileStore implements storage.Backend on top of one file. Every call reads
// the file so writes from other processes are observed.
type FileStore struct {
	path       string
	passphrase []byte
	kdf        KDFParams

	mu sync.Mutex
	// last derived key, reused while the file keeps the same salt
	cached *derivedKey
}

type derivedKey struct {
	salt   []byte
	params KDFParams
	key    []byte
}

var (
	_ storage.Backend = (*FileStore)(nil)
	_ storage.Watcher = (*FileStore)(nil)
)

type Option func(*FileStore)

// WithPassphrase enables encryption at rest.
func WithPassphrase(passphrase string) Option {
	return func(s *FileStore) {
		if passphrase != "" {
			s.passphrase = []byte(passphrase)
		}
	}
}

// WithKDFParams sets the Argon2id cost used when sealing. Reads use the
// parameters recorded in the file.
func WithKDFParams(p KDFParams) Option {
	return func(s *FileStore) {
		s.kdf = p
	}
}

type sealedFile struct {
	Version    int    `json:"version"`
	KDF        string `json:"kdf"`
	Time       uint32 `json:"time"`
	Memory     uint32 `json:"memory"`
	Threads    uint8  `json:"threads"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// New prepares a store at path, creating the parent directory.
func New(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("filestore: path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), dirMode); err != nil {
		return nil, fmt.Errorf("filestore: create directory: %w", err)
	}

	s := &FileStore{path: abs, kdf: DefaultKDFParams}
	for _, opt := range opts {
		opt(s)
	}
	if !s.kdf.valid() {
		return nil, fmt.Errorf("filestore: invalid argon2id parameters %+v", s.kdf)
	}
	return s, nil
}

// Path returns the absolute file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.loadForWrite()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.loadForWrite()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

// Watch reports changes to the file, including writes by other processes.
// The parent directory is watched so atomic renames are seen.
func (s *FileStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.path {
					continue
				}
				if !event.Has(fsnotify.Write) &&
					!event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Rename) &&
					!event.Has(fsnotify.Remove) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("path", s.path).Msg("filestore watcher error")
			}
		}
	}()
	return out, nil
}

// load returns the current map; a missing file is an empty map.
func (s *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read: %w", err)
	}
	if len(raw) == 0 {
		return map[string]string{}, nil
	}

	plain := raw
	if s.passphrase != nil {
		if plain, err = s.open(raw); err != nil {
			return nil, err
		}
	}

	values := map[string]string{}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCorruptData, "filestore: decode %s", s.path)
	}
	return values, nil
}

// loadForWrite starts over from an empty map when the file is unreadable so
// a corrupt file does not block new logins.
func (s *FileStore) loadForWrite() (map[string]string, error) {
	values, err := s.load()
	if apperrors.Is(err, apperrors.ErrCorruptData) {
		log.Warn().Str("path", s.path).Msg("discarding unreadable store file")
		return map[string]string{}, nil
	}
	return values, err
}

func (s *FileStore) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}
	if s.passphrase != nil {
		if data, err = s.seal(data); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

// deriveKey runs Argon2id over the passphrase. The result is cached per salt
// and parameters since every read and write of a sealed file needs it.
func (s *FileStore) deriveKey(salt []byte, p KDFParams) []byte {
	if c := s.cached; c != nil && c.params == p && bytes.Equal(c.salt, salt) {
		return c.key
	}
	key := argon2.IDKey(s.passphrase, salt, p.Time, p.Memory, p.Threads, chacha20poly1305.KeySize)
	s.cached = &derivedKey{salt: bytes.Clone(salt), params: p, key: key}
	return key
}

// sealingKey reuses the cached salt when it was derived with the configured
// parameters. Every seal still draws a fresh 24 byte nonce.
func (s *FileStore) sealingKey() ([]byte, []byte, error) {
	if c := s.cached; c != nil && c.params == s.kdf {
		return c.salt, c.key, nil
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("filestore: salt: %w", err)
	}
	return salt, s.deriveKey(salt, s.kdf), nil
}

func (s *FileStore) seal(plain []byte) ([]byte, error) {
	salt, key, err := s.sealingKey()
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("filestore: cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("filestore: nonce: %w", err)
	}
	return json.Marshal(sealedFile{
		Version:    sealedFormat,
		KDF:        kdfArgon2id,
		Time:       s.kdf.Time,
		Memory:     s.kdf.Memory,
		Threads:    s.kdf.Threads,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plain, []byte(sealedAD)),
	})
}

func (s *FileStore) open(raw []byte) ([]byte, error) {
	var sealed sealedFile
	if err := json.Unmarshal(raw, &sealed); err != nil || sealed.Version != sealedFormat || sealed.KDF != kdfArgon2id {
		return nil, apperrors.Wrapf(apperrors.ErrCorruptData, "filestore: %s is not a sealed store", s.path)
	}
	params := KDFParams{Time: sealed.Time, Memory: sealed.Memory, Threads: sealed.Threads}
	if !params.valid() || len(sealed.Salt) != saltSize {
		return nil, apperrors.Wrapf(apperrors.ErrCorruptData, "filestore: bad key derivation parameters in %s", s.path)
	}
	aead, err := chacha20poly1305.NewX(s.deriveKey(sealed.Salt, params))
	if err != nil {
		return nil, fmt.Errorf("filestore: cipher: %w", err)
	}
	if len(sealed.Nonce) != aead.NonceSize() {
		return nil, apperrors.Wrapf(apperrors.ErrCorruptData, "filestore: bad nonce")
	}
	plain, err := aead.Open(nil, sealed.Nonce, sealed.Ciphertext, []byte(sealedAD))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCorruptData, "filestore: decrypt %s", s.path)
	}
	return plain, nil
}
