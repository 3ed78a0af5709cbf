package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// MimeTypeXLSX is the content type used for every spreadsheet this service
// uploads or streams back to callers.
const MimeTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const mimeTypeFolder = "application/vnd.google-apps.folder"

// listPageSize caps ListChildren to a single page; callers must not assume
// completeness beyond it.
const listPageSize = 100

// ErrNotFound matches provider 404s (unknown file ID, already-deleted file).
var ErrNotFound = errors.New("file not found")

// Error wraps a Drive transport failure with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("drive %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Folder is a resolved folder reference in the Drive namespace.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// File is the id/name pair Drive returns for listed children.
type File struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Service is a thin wrapper around the Drive v3 API.
type Service struct {
	svc *drive.Service
	log *zap.Logger
}

// NewService creates a Drive service. Pass option.WithHTTPClient with an
// authenticated client from the auth package for production use.
func NewService(ctx context.Context, log *zap.Logger, opts ...option.ClientOption) (*Service, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Service{svc: svc, log: log}, nil
}

// FindFolder looks up a folder by exact name and returns the first match, or
// (nil, nil) when no folder has that name. Duplicate names are not an error.
func (s *Service) FindFolder(ctx context.Context, name string) (*Folder, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQueryValue(name), mimeTypeFolder)

	result, err := s.svc.Files.List().
		Q(query).
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, s.wrap("find folder", err)
	}

	if len(result.Files) == 0 {
		return nil, nil
	}

	first := result.Files[0]
	return &Folder{ID: first.Id, Name: first.Name}, nil
}

// ListChildren returns up to one page of files directly under folderID.
func (s *Service) ListChildren(ctx context.Context, folderID string) ([]File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQueryValue(folderID))

	result, err := s.svc.Files.List().
		Q(query).
		PageSize(listPageSize).
		Fields("nextPageToken, files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, s.wrap("list children", err)
	}

	files := make([]File, 0, len(result.Files))
	for _, f := range result.Files {
		files = append(files, File{ID: f.Id, Name: f.Name})
	}

	return files, nil
}

// Download fetches the file's display name and streams its content into an
// in-memory buffer.
func (s *Service) Download(ctx context.Context, fileID string) (string, []byte, error) {
	meta, err := s.svc.Files.Get(fileID).Fields("name").Context(ctx).Do()
	if err != nil {
		return "", nil, s.wrap("get metadata", err)
	}

	resp, err := s.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return "", nil, s.wrap("download", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return "", nil, s.wrap("download", err)
	}

	s.log.Info("downloaded file",
		zap.String("file_id", fileID),
		zap.String("name", meta.Name),
		zap.Int("bytes", buf.Len()))

	return meta.Name, buf.Bytes(), nil
}

// Upload sends the local file's bytes to Drive under the given name, placed
// in the parent folder. Returns the created file's ID. There is no retry.
func (s *Service) Upload(ctx context.Context, localPath, name, parentFolderID string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open local file: %w", err)
	}
	defer f.Close()

	metadata := &drive.File{
		Name:    name,
		Parents: []string{parentFolderID},
	}

	created, err := s.svc.Files.Create(metadata).
		Media(f, googleapi.ContentType(MimeTypeXLSX)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", s.wrap("upload", err)
	}

	s.log.Info("uploaded file",
		zap.String("file_id", created.Id),
		zap.String("name", name),
		zap.String("parent", parentFolderID))

	return created.Id, nil
}

// Delete removes the remote file. Unknown IDs match ErrNotFound.
func (s *Service) Delete(ctx context.Context, fileID string) error {
	if err := s.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return s.wrap("delete", err)
	}

	s.log.Info("deleted file", zap.String("file_id", fileID))
	return nil
}

func (s *Service) wrap(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		err = fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return &Error{Op: op, Err: err}
}

// escapeQueryValue escapes single quotes for interpolation into a Drive
// search query.
func escapeQueryValue(v string) string {
	return strings.ReplaceAll(v, "'", `\'`)
}
