package objectstorage

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestContentKey(t *testing.T) {
	key1, hash1 := ContentKey([]byte("hello"))
	key2, hash2 := ContentKey([]byte("hello"))
	key3, hash3 := ContentKey([]byte("world"))

	if key1 != key2 || hash1 != hash2 {
		t.Errorf("same content must yield same key: %q vs %q", key1, key2)
	}
	if key1 == key3 || hash1 == hash3 {
		t.Errorf("different content must yield different keys")
	}
	if !strings.HasPrefix(key1, "attachments/"+hash1[:2]+"/") {
		t.Errorf("key %q is not fan-out prefixed by hash %q", key1, hash1)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d; want 64", len(hash1))
	}
}

func TestMemoryRoundtrip(t *testing.T) {
	m := NewMemory()

	key, _ := ContentKey([]byte("payload"))
	if err := m.Put(key, []byte("payload")); err != nil {
		t.Fatal(err)
	}

	data, err := m.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("payload")) {
		t.Errorf("Get = %q; want %q", data, "payload")
	}

	ok, err := m.Exists(key)
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v; want true, nil", ok, err)
	}

	if err := m.Delete(key); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v; want ErrNotFound", err)
	}
	if ok, _ := m.Exists(key); ok {
		t.Error("Exists after delete = true; want false")
	}
}

func TestGenerateObjectKey(t *testing.T) {
	k1 := GenerateObjectKey()
	k2 := GenerateObjectKey()
	if k1 == k2 {
		t.Errorf("keys must be unique, got %q twice", k1)
	}
	if len(strings.Split(k1, "/")) != 7 {
		t.Errorf("key %q is not YYYY/MM/DD/HH/mm/ss/UUID shaped", k1)
	}
}
