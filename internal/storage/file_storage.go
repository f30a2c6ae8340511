package storage

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Security errors
var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrFileNotFound  = errors.New("file not found")
	ErrFileTooLarge  = errors.New("file exceeds size limit")
	ErrBlockedExt    = errors.New("file extension is blocked")
)

// MaxFileSize is the maximum allowed file size (25 MB)
const MaxFileSize = 25 * 1024 * 1024

// BlockedExtensions contains file extensions that are not allowed
var BlockedExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true,
	".pif": true, ".scr": true, ".vbs": true, ".js": true,
	".jar": true, ".ps1": true, ".sh": true, ".bash": true,
	".msi": true, ".dll": true, ".sys": true,
}

// FileStorage is a blob store addressed by slash-separated relative keys
type FileStorage interface {
	Put(key string, content io.Reader) (int64, error)
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
	URL(key string) string
}

// localStorage implements FileStorage using local filesystem
type localStorage struct {
	basePath string
	baseURL  string
}

// NewLocalStorage creates a new localStorage instance. Blobs are served
// under baseURL, which is usually the attachment download route of the API.
func NewLocalStorage(basePath, baseURL string) (FileStorage, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &localStorage{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// validatePath ensures key resolves inside basePath (prevents traversal)
func (s *localStorage) validatePath(key string) (string, error) {
	if strings.Contains(key, "\\") || strings.Contains(key, "\x00") {
		return "", ErrPathTraversal
	}

	cleanPath := filepath.Clean(filepath.FromSlash(key))

	// Prevent absolute paths
	if filepath.IsAbs(cleanPath) || strings.HasPrefix(key, "/") {
		return "", ErrPathTraversal
	}

	// Prevent path traversal
	if strings.Contains(cleanPath, "..") {
		return "", ErrPathTraversal
	}

	fullPath := filepath.Join(s.basePath, cleanPath)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	// The key must name something below the base, never the base itself
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	return absPath, nil
}

// ValidateFile checks file extension and size
func ValidateFile(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))

	if BlockedExtensions[ext] {
		return ErrBlockedExt
	}

	if size > MaxFileSize {
		return ErrFileTooLarge
	}

	return nil
}

// Put writes content under key, replacing any previous blob, and returns
// the number of bytes written. The blob is written to a temporary file
// first so a failed write never leaves a truncated blob behind.
func (s *localStorage) Put(key string, content io.Reader) (int64, error) {
	fullPath, err := s.validatePath(key)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(tmp, io.LimitReader(content, MaxFileSize+1))
	closeErr := tmp.Close()
	if err == nil && written > MaxFileSize {
		err = ErrFileTooLarge
	}
	if err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		if errors.Is(err, ErrFileTooLarge) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to store file: %w", err)
	}

	return written, nil
}

// Get retrieves a blob by its key
func (s *localStorage) Get(key string) (io.ReadCloser, error) {
	fullPath, err := s.validatePath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes a blob by its key
func (s *localStorage) Delete(key string) error {
	fullPath, err := s.validatePath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			// File already doesn't exist, not an error
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// URL returns the retrieval location of key with every segment escaped
func (s *localStorage) URL(key string) string {
	segments := strings.Split(path.Clean("/" + key)[1:], "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}
