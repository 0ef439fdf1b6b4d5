package service

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"classificados/internal/storage"
)

// UploadPathPrefix is the public URL prefix under which stored attachments are served.
const UploadPathPrefix = "/uploads/"

var (
	// generatedKey matches the names produced by objectKey for an accepted image.
	generatedKey = regexp.MustCompile(`^[0-9]+-[0-9]+\.(?i:jpe?g|png|webp)$`)

	allowedExtensions = map[string]bool{".jpeg": true, ".jpg": true, ".png": true, ".webp": true}
	allowedMIMETypes  = map[string]bool{"image/jpeg": true, "image/jpg": true, "image/png": true, "image/webp": true}
)

// Upload is one file received with a create request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// AttachmentLimits bounds what a single request may upload.
type AttachmentLimits struct {
	MaxFiles    int
	MaxFileSize int64
}

// AttachmentService validates uploads and stores them, handing back stable public paths.
type AttachmentService struct {
	store  storage.Storage
	limits AttachmentLimits
	now    func() time.Time
	randN  func(n int) int
}

func NewAttachmentService(store storage.Storage, limits AttachmentLimits) *AttachmentService {
	return &AttachmentService{
		store:  store,
		limits: limits,
		now:    time.Now,
		randN:  rand.IntN,
	}
}

// Validate checks every upload against the limits without storing anything.
func (a *AttachmentService) Validate(uploads []Upload) error {
	if len(uploads) > a.limits.MaxFiles {
		return &AttachmentError{Reason: fmt.Sprintf("too many files, max %d", a.limits.MaxFiles)}
	}
	for _, u := range uploads {
		ext := strings.ToLower(filepath.Ext(u.Filename))
		ct := strings.ToLower(strings.TrimSpace(strings.SplitN(u.ContentType, ";", 2)[0]))
		if !allowedExtensions[ext] || !allowedMIMETypes[ct] {
			return &AttachmentError{Filename: u.Filename, Reason: "only images are allowed (jpeg, jpg, png, webp)"}
		}
		if u.Size > a.limits.MaxFileSize {
			return &AttachmentError{Filename: u.Filename, Reason: fmt.Sprintf("file too large, max %dMB", a.limits.MaxFileSize>>20)}
		}
		if u.Content == nil {
			return &AttachmentError{Filename: u.Filename, Reason: "empty upload"}
		}
	}
	return nil
}

// Store validates all uploads, then writes them in order. If any write fails,
// the ones already written are removed and a *StorageError is returned.
func (a *AttachmentService) Store(ctx context.Context, uploads []Upload) ([]string, error) {
	if err := a.Validate(uploads); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(uploads))
	for _, u := range uploads {
		key := a.objectKey(u.Filename)
		if _, err := a.store.Put(ctx, key, u.Content, storage.PutObjectOptions{
			Size:        u.Size,
			ContentType: u.ContentType,
			Metadata:    map[string]string{"original-filename": u.Filename},
		}); err != nil {
			a.Discard(ctx, paths)
			return nil, &StorageError{Op: "store attachment", Err: err}
		}
		paths = append(paths, UploadPathPrefix+key)
	}
	return paths, nil
}

// Discard deletes previously stored attachments by public path. Failures are logged.
func (a *AttachmentService) Discard(ctx context.Context, paths []string) {
	for _, p := range paths {
		key, ok := KeyFromPath(p)
		if !ok {
			continue
		}
		if err := a.store.Delete(ctx, key); err != nil {
			log.Error().Err(err).Str("component", "attachments").Str("key", key).Msg("rollback delete failed")
		}
	}
}

// Open streams a stored attachment by its object key.
func (a *AttachmentService) Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	return a.store.Get(ctx, key)
}

// objectKey builds "<unix millis>-<random><ext>", keeping the original extension.
func (a *AttachmentService) objectKey(filename string) string {
	return fmt.Sprintf("%d-%d%s", a.now().UnixMilli(), a.randN(1e9), filepath.Ext(filename))
}

// KeyFromPath maps a public path back to its object key. Only flat keys under
// UploadPathPrefix are accepted.
func KeyFromPath(p string) (string, bool) {
	key, ok := strings.CutPrefix(p, UploadPathPrefix)
	if !ok {
		return "", false
	}
	return key, ValidKey(key)
}

// ValidKey reports whether key has the shape of an attachment key produced by
// Store. Anything else sharing the bucket or directory, such as a persisted
// listings document, is never reachable through it.
func ValidKey(key string) bool {
	return generatedKey.MatchString(key)
}
