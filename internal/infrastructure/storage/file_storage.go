package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/port"
)

// ErrPathEscapesBase is returned for references that resolve outside the base directory
var ErrPathEscapesBase = errors.New("path escapes base directory")

// LocalDocumentStorage implements port.DocumentStorage on the local filesystem.
// References are slash separated paths relative to baseDir.
type LocalDocumentStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalDocumentStorage creates a new LocalDocumentStorage
func NewLocalDocumentStorage(baseDir string, logger *zap.Logger) *LocalDocumentStorage {
	return &LocalDocumentStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes content under ref. The file appears complete or not at all.
func (s *LocalDocumentStorage) Save(ctx context.Context, ref string, content []byte) error {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0o755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(parentDir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		s.logger.Error("Failed to write file", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		_ = os.Remove(tmpName)
		s.logger.Error("Failed to move file into place", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Document saved",
		zap.String("ref", ref),
		zap.Int("size", len(content)))
	return nil
}

// Read returns the content stored under ref
func (s *LocalDocumentStorage) Read(ctx context.Context, ref string) ([]byte, error) {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// Exists reports whether a regular file is stored under ref
func (s *LocalDocumentStorage) Exists(ctx context.Context, ref string) bool {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes ref. Deleting a missing file succeeds.
func (s *LocalDocumentStorage) Delete(ctx context.Context, ref string) error {
	fullPath, err := s.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// resolve maps ref to an absolute path inside baseDir
func (s *LocalDocumentStorage) resolve(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("empty document reference")
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(absBase, filepath.FromSlash(ref)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesBase, ref)
	}
	return absPath, nil
}

// Verify interface compliance
var _ port.DocumentStorage = (*LocalDocumentStorage)(nil)
