package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nsmonitor/apiserver/types"
)

// AttachmentRepository handles persistence for attachment records. The
// stored objects themselves live in object storage under FilePath.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

const attachmentColumns = `
	a.id, a.project_id, a.project_update_id, a.uploaded_by, COALESCE(u.name, ''), a.filename,
	a.original_filename, a.file_path, a.file_size, a.mime_type, a.type, a.description, a.category,
	a.is_public, a.created_at, a.updated_at`

const attachmentFrom = `
	FROM project_attachments a
	LEFT JOIN users u ON u.id = a.uploaded_by`

func scanAttachment(row rowScanner) (types.ProjectAttachment, error) {
	var a types.ProjectAttachment
	err := row.Scan(
		&a.ID,
		&a.ProjectID,
		&a.ProjectUpdateID,
		&a.UploadedBy,
		&a.UploaderName,
		&a.Filename,
		&a.OriginalFilename,
		&a.FilePath,
		&a.FileSize,
		&a.MimeType,
		&a.Type,
		&a.Description,
		&a.Category,
		&a.IsPublic,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

// ListByProject returns a project's attachments, newest first. A non-empty
// attachmentType narrows the result.
func (r *AttachmentRepository) ListByProject(ctx context.Context, projectID int, attachmentType string) ([]types.ProjectAttachment, error) {
	var conds conditions
	conds.add("a.project_id = ?", projectID)
	if attachmentType != "" {
		conds.add("a.type = ?", attachmentType)
	}
	return r.list(ctx, conds)
}

func (r *AttachmentRepository) ListByUpdate(ctx context.Context, updateID int) ([]types.ProjectAttachment, error) {
	var conds conditions
	conds.add("a.project_update_id = ?", updateID)
	return r.list(ctx, conds)
}

func (r *AttachmentRepository) list(ctx context.Context, conds conditions) ([]types.ProjectAttachment, error) {
	query := `SELECT` + attachmentColumns + attachmentFrom + conds.where() + ` ORDER BY a.created_at DESC, a.id DESC`
	rows, err := r.db.QueryContext(ctx, query, conds.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := []types.ProjectAttachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

func (r *AttachmentRepository) Get(ctx context.Context, id int) (types.ProjectAttachment, error) {
	a, err := scanAttachment(r.db.QueryRowContext(ctx, `SELECT`+attachmentColumns+attachmentFrom+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ProjectAttachment{}, ErrNotFound
		}
		return types.ProjectAttachment{}, err
	}
	return a, nil
}

func (r *AttachmentRepository) Create(ctx context.Context, a types.ProjectAttachment) (types.ProjectAttachment, error) {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	const query = `
		INSERT INTO project_attachments (
			project_id, project_update_id, uploaded_by, filename, original_filename, file_path,
			file_size, mime_type, type, description, category, is_public, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		a.ProjectID,
		a.ProjectUpdateID,
		a.UploadedBy,
		a.Filename,
		a.OriginalFilename,
		a.FilePath,
		a.FileSize,
		a.MimeType,
		a.Type,
		a.Description,
		a.Category,
		a.IsPublic,
		a.CreatedAt,
		a.UpdatedAt,
	).Scan(&a.ID); err != nil {
		return types.ProjectAttachment{}, translate(err)
	}
	return a, nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM project_attachments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// FilePathsByProject returns the storage keys of every attachment under a
// project, including those attached to its updates.
func (r *AttachmentRepository) FilePathsByProject(ctx context.Context, projectID int) ([]string, error) {
	return r.filePaths(ctx, `SELECT file_path FROM project_attachments WHERE project_id = $1`, projectID)
}

func (r *AttachmentRepository) FilePathsByUpdate(ctx context.Context, updateID int) ([]string, error) {
	return r.filePaths(ctx, `SELECT file_path FROM project_attachments WHERE project_update_id = $1`, updateID)
}

func (r *AttachmentRepository) filePaths(ctx context.Context, query string, id int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
