package broadcast

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tgcast/internal/cache"
	"tgcast/internal/transport"
	logx "tgcast/pkg/logx"
)

const fileRefPrefix = "file_id:"

// FileRefs maps local upload file names to platform file references so a
// file is uploaded once and then sent by reference. The process map is
// consulted first, then the shared cache; the shared cache is the source
// of truth across processes.
type FileRefs struct {
	dir   string
	cache cache.Cache
	ttl   time.Duration
	log   logx.Logger

	mu    sync.RWMutex
	local map[string]string
	group singleflight.Group
}

func NewFileRefs(uploadDir string, c cache.Cache, ttl time.Duration, log logx.Logger) *FileRefs {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &FileRefs{
		dir:   uploadDir,
		cache: c,
		ttl:   ttl,
		log:   log.With(logx.String("comp", "broadcast.filerefs")),
		local: map[string]string{},
	}
}

// LocalFile resolves a media URL to a file in the upload directory by its
// last path segment.
func (f *FileRefs) LocalFile(mediaURL string) (name, path string, ok bool) {
	name = transport.FileName(mediaURL)
	if name == "" || f.dir == "" {
		return "", "", false
	}
	path = filepath.Join(f.dir, name)
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return "", "", false
	}
	return name, path, true
}

// Lookup returns a cached reference, filling the process map from the
// shared cache on a hit there.
func (f *FileRefs) Lookup(ctx context.Context, name string) (string, bool) {
	f.mu.RLock()
	id, ok := f.local[name]
	f.mu.RUnlock()
	if ok {
		return id, true
	}
	b, err := f.cache.Get(ctx, fileRefPrefix+name)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			f.log.Warn("file ref cache read failed", logx.String("file", name), logx.Err(err))
		}
		return "", false
	}
	if len(b) == 0 {
		return "", false
	}
	id = string(b)
	f.setLocal(name, id)
	return id, true
}

func (f *FileRefs) Store(ctx context.Context, name, fileID string) {
	if fileID == "" {
		return
	}
	f.setLocal(name, fileID)
	if err := f.cache.Set(ctx, fileRefPrefix+name, []byte(fileID), f.ttl); err != nil {
		f.log.Warn("file ref cache write failed", logx.String("file", name), logx.Err(err))
	}
}

func (f *FileRefs) setLocal(name, id string) {
	f.mu.Lock()
	f.local[name] = id
	f.mu.Unlock()
}

type refResult struct {
	id       string
	uploaded bool
}

// Resolve returns the reference for name, calling upload when none is
// cached. upload delivers the message itself and returns the new reference;
// uploaded tells the caller its message was already sent. Concurrent
// callers for the same name share one upload.
func (f *FileRefs) Resolve(ctx context.Context, name string, upload func() (string, error)) (fileID string, uploaded bool, err error) {
	if id, ok := f.Lookup(ctx, name); ok {
		return id, false, nil
	}
	for {
		var leader bool
		v, err, _ := f.group.Do(name, func() (any, error) {
			leader = true
			if id, ok := f.Lookup(ctx, name); ok {
				return refResult{id: id}, nil
			}
			id, err := upload()
			if err != nil {
				return refResult{}, err
			}
			f.Store(ctx, name, id)
			return refResult{id: id, uploaded: true}, nil
		})
		r, _ := v.(refResult)
		if leader {
			return r.id, r.uploaded, err
		}
		if err == nil && r.id != "" {
			return r.id, false, nil
		}
		// The shared upload failed for another recipient; rejoin the group
		// so one waiter takes over the upload and the rest reuse its ref.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
	}
}
