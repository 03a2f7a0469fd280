package tokenrepofake

import (
	"context"
	"sync"

	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/jrsteele09/go-officehours-client/tokens"
)

var _ tokens.Store = (*FakeStore)(nil)

// FakeStore is an in-memory token store. It doubles as the store for the
// "memory" backend, where credentials last only as long as the process.
type FakeStore struct {
	values  map[string]string
	batches int
	lock    sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		values: make(map[string]string),
	}
}

func (fs *FakeStore) Get(_ context.Context, key string) (string, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	v, ok := fs.values[key]
	if !ok {
		return "", clienterrors.ErrNotFound
	}
	return v, nil
}

func (fs *FakeStore) Set(_ context.Context, key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.values[key] = value
	return nil
}

func (fs *FakeStore) Delete(_ context.Context, keys ...string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	for _, k := range keys {
		delete(fs.values, k)
	}
	return nil
}

// Snapshot returns a copy of every stored key
func (fs *FakeStore) Snapshot() map[string]string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	out := make(map[string]string, len(fs.values))
	for k, v := range fs.values {
		out[k] = v
	}
	return out
}

func (fs *FakeStore) Apply(_ context.Context, b tokens.Batch) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	for k, v := range b.Set {
		fs.values[k] = v
	}
	for _, k := range b.Delete {
		delete(fs.values, k)
	}
	fs.batches++
	return nil
}

// Batches returns how many batches the store has applied
func (fs *FakeStore) Batches() int {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.batches
}
