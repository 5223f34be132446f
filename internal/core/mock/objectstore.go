package mock

import (
	"context"
	"fmt"
	"sync"
)

// Archive is an in-memory core.ObjectClient recording uploads and deletes.
type Archive struct {
	// UploadFileFunc and DeleteFileFunc are called if set.
	UploadFileFunc func(ctx context.Context, key string, data []byte, contentType string) (string, error)
	DeleteFileFunc func(ctx context.Context, key string) error

	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func NewArchive() *Archive {
	return &Archive{objects: make(map[string][]byte)}
}

func (a *Archive) UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if a.UploadFileFunc != nil {
		return a.UploadFileFunc(ctx, key, data, contentType)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = append([]byte(nil), data...)
	return fmt.Sprintf("https://archive.test/%s", key), nil
}

func (a *Archive) DeleteFile(ctx context.Context, key string) error {
	if a.DeleteFileFunc != nil {
		return a.DeleteFileFunc(ctx, key)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, key)
	a.deleted = append(a.deleted, key)
	return nil
}

// Keys returns the keys of every stored object.
func (a *Archive) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.objects))
	for key := range a.objects {
		out = append(out, key)
	}
	return out
}

// Deleted returns the keys removed so far, in call order.
func (a *Archive) Deleted() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.deleted...)
}
