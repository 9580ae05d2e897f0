package objectstorage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// BlobStore is the binary storage behind attachments. Keys are
// content-addressed via ContentKey, so the same bytes land on the same key.
type BlobStore interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	Exists(key string) (bool, error)
}

// ContentKey derives the storage key and SHA-256 content hash for a blob.
// The key is prefixed with the hash so identical content is written once.
func ContentKey(data []byte) (key, hash string) {
	sum := sha256.Sum256(data)
	hash = hex.EncodeToString(sum[:])
	return "attachments/" + hash[:2] + "/" + hash, hash
}

// GenerateObjectKey builds a time-bucketed unique key for blobs that are
// not content-addressed, such as raw message archives.
// YYYY/MM/DD/HH/mm/ss/UUID
func GenerateObjectKey() string {
	now := time.Now()
	return fmt.Sprintf("%04d/%02d/%02d/%02d/%02d/%02d/%s",
		now.Year(), now.Month(), now.Day(),
		now.Hour(), now.Minute(), now.Second(),
		uuid.New().String())
}

// Memory is an in-process BlobStore used by tests.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.blobs[key] = buf
	return nil
}

func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *Memory) Exists(key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[key]
	return ok, nil
}
