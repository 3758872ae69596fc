package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/crypto/blake2b"

	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

const (
	refPrefix = "files/"
	sniffLen  = 512
)

// allowedMIME типы результатов работы и доказательств по спору.
var allowedMIME = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"application/zip": true,
	"video/mp4":       true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

var refPattern = regexp.MustCompile(`^files/[0-9a-f]{64}\.[a-z0-9]{1,10}$`)

var (
	ErrUnsupportedType = apperror.New(apperror.ErrCodeValidation, "неподдерживаемый тип файла")
	ErrTooLarge        = apperror.New(apperror.ErrCodeValidation, "размер файла превышает лимит")
	ErrFileNotFound    = apperror.New(apperror.ErrCodeNotFound, "файл не найден")
)

// StoredFile сохранённый файл. Ref используется в заказах и спорах как
// ссылка на файл, Digest это blake2b-256 содержимого.
type StoredFile struct {
	Ref    string
	Digest string
	MIME   string
	Size   int64
}

// FileStore хранилище файлов с адресацией по содержимому: одинаковые
// файлы хранятся один раз.
type FileStore struct {
	rootPath       string
	maxUploadBytes int64
}

func NewFileStore(rootPath string, maxUploadMB int64) (*FileStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}
	return &FileStore{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save проверяет тип по сигнатуре, считает digest и сохраняет файл.
func (s *FileStore) Save(ctx context.Context, r io.Reader) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || !allowedMIME[kind.MIME.Value] {
		return nil, ErrUnsupportedType
	}

	tmp, err := os.CreateTemp(s.rootPath, "upload-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	tempPath := tmp.Name()
	defer func() {
		tmp.Close()
		_ = os.Remove(tempPath)
	}()

	hash, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	src := io.MultiReader(bytes.NewReader(head), r)
	limited := &io.LimitedReader{R: src, N: s.maxUploadBytes + 1}
	written, err := io.Copy(io.MultiWriter(tmp, hash), limited)
	if err != nil {
		return nil, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		return nil, ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	digest := hex.EncodeToString(hash.Sum(nil))
	ref := refPrefix + digest + "." + kind.Extension
	target := s.path(ref)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог: %w", err)
	}
	if _, err := os.Stat(target); err != nil {
		if err := os.Rename(tempPath, target); err != nil {
			return nil, fmt.Errorf("storage: не удалось сохранить файл: %w", err)
		}
	}

	return &StoredFile{Ref: ref, Digest: digest, MIME: kind.MIME.Value, Size: written}, nil
}

// Open открывает файл по ссылке. Ссылки не из хранилища не принимаются.
func (s *FileStore) Open(ctx context.Context, ref string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !IsRef(ref) {
		return nil, ErrFileNotFound
	}
	f, err := os.Open(s.path(ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось открыть файл: %w", err)
	}
	return f, nil
}

func (s *FileStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !IsRef(ref) {
		return ErrFileNotFound
	}
	if err := os.Remove(s.path(ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// IsRef ссылка вида files/<blake2b hex>.<ext>.
func IsRef(ref string) bool {
	return refPattern.MatchString(ref)
}

func (s *FileStore) path(ref string) string {
	name := strings.TrimPrefix(ref, refPrefix)
	return filepath.Join(s.rootPath, name[:2], name)
}
