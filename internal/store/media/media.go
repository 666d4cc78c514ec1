// Package media stores uploaded message attachments on the local filesystem.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hay-kot/classchat/internal/core/chat"
	"github.com/rs/zerolog"
)

// DefaultMaxBytes is the upload size limit used when none is configured.
const DefaultMaxBytes int64 = 50 * 1024 * 1024

const sniffLen = 512

// videoTypes covers video extensions missing from Go's builtin MIME table.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// Store implements chat.MediaStorage. Objects are written to
// <dir>/<class>/<channel>/<uuid>.<ext>.
type Store struct {
	dir      string
	baseURL  string
	maxBytes int64
	log      zerolog.Logger
}

// New creates a media store rooted at dir. An empty baseURL produces file://
// URLs.
func New(dir, baseURL string, maxBytes int64, log zerolog.Logger) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{
		dir:      dir,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		maxBytes: maxBytes,
		log:      log.With().Str("component", "media").Logger(),
	}
}

// Upload stores the contents of r as a new object for key. Only images and
// videos up to the size limit are accepted; anything else returns an error
// wrapping chat.ErrMediaRejected.
func (s *Store) Upload(ctx context.Context, key chat.Key, filename string, r io.Reader) (chat.Media, error) {
	if err := ctx.Err(); err != nil {
		return chat.Media{}, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return chat.Media{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return chat.Media{}, fmt.Errorf("%w: file is empty", chat.ErrMediaRejected)
	}

	contentType := detectContentType(filename, head)
	kind, ok := chat.MediaKindFromContentType(contentType)
	if !ok {
		return chat.Media{}, fmt.Errorf("%w: unsupported type %s, only images and videos are allowed", chat.ErrMediaRejected, contentType)
	}

	rel := path.Join(safeSegment(key.ClassID), safeSegment(key.ChannelID), uuid.NewString()+extension(filename, contentType))
	dst := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return chat.Media{}, fmt.Errorf("create media directory: %w", err)
	}

	written, err := s.write(dst, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		return chat.Media{}, err
	}

	s.log.Debug().
		Str("class_id", key.ClassID).
		Str("channel_id", key.ChannelID).
		Str("object", rel).
		Str("size", humanize.Bytes(uint64(written))).
		Msg("media stored")

	return chat.Media{URL: s.url(rel, dst), Kind: kind}, nil
}

// write copies at most maxBytes from r into dst via a temp file.
func (s *Store) write(dst string, r io.Reader) (int64, error) {
	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("write media: %w", err)
	case closeErr != nil:
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("close temp file: %w", closeErr)
	case written > s.maxBytes:
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("%w: file is larger than %s", chat.ErrMediaRejected, humanize.Bytes(uint64(s.maxBytes)))
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("rename temp file: %w", err)
	}
	return written, nil
}

func (s *Store) url(rel, dst string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + rel
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		abs = dst
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// detectContentType prefers the file extension and falls back to sniffing
// the leading bytes.
func detectContentType(filename string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil {
			return mediaType
		}
	}

	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	return mediaType
}

func extension(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func safeSegment(s string) string {
	r := strings.NewReplacer("/", "_", `\`, "_", "..", "_")
	return r.Replace(s)
}
