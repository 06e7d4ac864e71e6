package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Local stores objects under a directory on disk. Download URLs point at the
// API's /files route and carry an HMAC over the key and expiry.
type Local struct {
	root    string
	baseURL string
	secret  []byte
	now     func() time.Time
}

func NewLocal(root, baseURL, secret string) (*Local, error) {
	if secret == "" {
		return nil, errors.New("a signing secret is required for local storage")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/"), secret: []byte(secret), now: time.Now}, nil
}

func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

func (l *Local) Put(ctx context.Context, key string, r io.Reader, _ string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return f.Close()
}

func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *Local) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := l.path(key); err != nil {
		return "", err
	}
	expires := strconv.FormatInt(l.now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("signature", l.sign(key, expires))
	return l.baseURL + "/" + key + "?" + q.Encode(), nil
}

// Open verifies a download signature and opens the object for reading.
func (l *Local) Open(key, expires, signature string) (*os.File, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	if err := l.Verify(key, expires, signature); err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Verify checks the signature and expiry of a download URL.
func (l *Local) Verify(key, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if l.now().Unix() > exp {
		return ErrInvalidSignature
	}
	if !hmac.Equal([]byte(l.sign(key, expires)), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func (l *Local) sign(key, expires string) string {
	mac := hmac.New(sha256.New, l.secret)
	mac.Write([]byte(key + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}
