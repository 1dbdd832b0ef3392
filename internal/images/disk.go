package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/2beens/ironlog/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var ErrImageNotFound = errors.New("image not found")

// DiskStore keeps one exercise image per (owner, muscle group, exercise),
// stored on disk as <root>/<owner>/<muscleGroup>__<exercise>. Uploading again
// replaces the previous image.
type DiskStore struct {
	rootPath string
	mutex    sync.RWMutex
}

func NewDiskStore(rootPath string) (*DiskStore, error) {
	if rootPath == "" {
		return nil, errors.New("root path cannot be empty")
	}
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, fmt.Errorf("create images root: %w", err)
	}
	return &DiskStore{
		rootPath: rootPath,
	}, nil
}

// Key returns the disk name of the pair's image, e.g.
// ("Chest", "Bench Press") -> "chest__bench-press".
func Key(muscleGroup, exercise string) string {
	return fmt.Sprintf("%s__%s", sanitize(muscleGroup), sanitize(exercise))
}

func (ds *DiskStore) Save(ctx context.Context, ownerID, key string, content io.Reader) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("image.key", key))

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ownerDir := path.Join(ds.rootPath, sanitize(ownerID))
	if err := os.MkdirAll(ownerDir, 0755); err != nil {
		return fmt.Errorf("create owner dir: %w", err)
	}

	imagePath := path.Join(ownerDir, key)
	file, err := os.Create(imagePath)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	written, err := io.Copy(file, content)
	if err != nil {
		return fmt.Errorf("write image file: %w", err)
	}

	log.Debugf("disk store: image [%s] saved, %d bytes", key, written)
	return nil
}

func (ds *DiskStore) Open(ctx context.Context, ownerID, key string) (_ io.ReadCloser, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.open")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("image.key", key))

	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	file, err := os.Open(path.Join(ds.rootPath, sanitize(ownerID), sanitize(key)))
	if os.IsNotExist(err) {
		return nil, ErrImageNotFound
	} else if err != nil {
		return nil, err
	}
	return file, nil
}

func (ds *DiskStore) Delete(ctx context.Context, ownerID, key string) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "diskStore.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("image.key", key))

	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	err = os.Remove(path.Join(ds.rootPath, sanitize(ownerID), sanitize(key)))
	if os.IsNotExist(err) {
		return ErrImageNotFound
	}
	return err
}

// sanitize makes a string safe as a file name: lowercased, anything outside
// [a-z0-9_] becomes a dash.
func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
