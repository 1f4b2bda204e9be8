// Package documents tracks file attachments on projects. Metadata lives in
// PostgreSQL; the bytes live in object storage and move through presigned
// URLs so uploads and downloads never pass through the API server.
package documents

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studioops/studioops/internal/shared"
)

var (
	// ErrUnauthorized signals a missing tenant scope.
	ErrUnauthorized = errors.New("documents: unauthorized")
	// ErrNotFound signals the document does not exist within the tenant.
	ErrNotFound = errors.New("documents: not found")
	// ErrInvalidInput signals a rejected field value.
	ErrInvalidInput = errors.New("documents: invalid input")
)

// Document is the stored metadata for one attachment.
type Document struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"-"`
	ProjectID   uuid.UUID `json:"project_id"`
	UploadedBy  uuid.UUID `json:"uploaded_by"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	StorageKey  string    `json:"-"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// UploadTicket pairs a registered document with the presigned URL the caller
// PUTs the bytes to.
type UploadTicket struct {
	Document  *Document `json:"document"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ObjectStore is the subset of the blob store the service needs.
type ObjectStore interface {
	UploadURL(ctx context.Context, key, contentType string) (string, time.Time, error)
	DownloadURL(ctx context.Context, key string) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
}

// Repository persists document metadata.
type Repository interface {
	Insert(ctx context.Context, d *Document) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)
	ListByProject(ctx context.Context, tenantID, projectID uuid.UUID) ([]Document, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) Insert(ctx context.Context, d *Document) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO documents (id, company_id, project_id, uploaded_by, file_name, content_type, storage_key, size_bytes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.TenantID, d.ProjectID, d.UploadedBy, d.FileName, d.ContentType,
		d.StorageKey, d.SizeBytes, d.CreatedAt)
	return err
}

const documentCols = `id, company_id, project_id, uploaded_by, file_name, content_type, storage_key, size_bytes, created_at`

func (r *pgRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*Document, error) {
	var d Document
	err := r.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE company_id=$1 AND id=$2`, tenantID, id).
		Scan(&d.ID, &d.TenantID, &d.ProjectID, &d.UploadedBy, &d.FileName, &d.ContentType,
			&d.StorageKey, &d.SizeBytes, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *pgRepository) ListByProject(ctx context.Context, tenantID, projectID uuid.UUID) ([]Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+documentCols+` FROM documents WHERE company_id=$1 AND project_id=$2 ORDER BY created_at DESC`,
		tenantID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.TenantID, &d.ProjectID, &d.UploadedBy, &d.FileName,
			&d.ContentType, &d.StorageKey, &d.SizeBytes, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *pgRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM documents WHERE company_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Service coordinates metadata writes with presigned object storage URLs.
type Service struct {
	repo  Repository
	store ObjectStore
}

// NewService constructs a Service.
func NewService(repo Repository, store ObjectStore) *Service {
	return &Service{repo: repo, store: store}
}

// RegisterUpload records the document and returns a presigned PUT URL. The
// storage key is namespaced by tenant and project so keys never collide
// across tenants.
func (s *Service) RegisterUpload(ctx context.Context, identity *shared.Identity, projectID uuid.UUID, fileName, contentType string, sizeBytes int64) (*UploadTicket, error) {
	if identity == nil || identity.TenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	fileName = path.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if sizeBytes < 0 {
		return nil, fmt.Errorf("%w: size must not be negative", ErrInvalidInput)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := &Document{
		ID:          uuid.New(),
		TenantID:    identity.TenantID,
		ProjectID:   projectID,
		UploadedBy:  identity.UserID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		CreatedAt:   time.Now().UTC(),
	}
	doc.StorageKey = fmt.Sprintf("%s/%s/%s-%s", identity.TenantID, projectID, doc.ID, fileName)

	url, expires, err := s.store.UploadURL(ctx, doc.StorageKey, contentType)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, doc); err != nil {
		return nil, err
	}
	return &UploadTicket{Document: doc, UploadURL: url, ExpiresAt: expires}, nil
}

// DownloadURL returns a presigned GET URL for the document.
func (s *Service) DownloadURL(ctx context.Context, tenantID, id uuid.UUID) (string, time.Time, error) {
	if tenantID == uuid.Nil {
		return "", time.Time{}, ErrUnauthorized
	}
	doc, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.store.DownloadURL(ctx, doc.StorageKey)
}

// ListByProject returns the project's documents, newest first.
func (s *Service) ListByProject(ctx context.Context, tenantID, projectID uuid.UUID) ([]Document, error) {
	if tenantID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.repo.ListByProject(ctx, tenantID, projectID)
}

// Remove deletes the metadata and the stored object. The object delete runs
// first so a failure leaves the record visible for retry.
func (s *Service) Remove(ctx context.Context, tenantID, id uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrUnauthorized
	}
	doc, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
		return err
	}
	return s.repo.Delete(ctx, tenantID, id)
}
