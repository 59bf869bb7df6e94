package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/docast/internal/model"
	"github.com/xxxsen/docast/internal/pkg/dbutil"
	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

var registryColumns = []string{
	"content_hash", "document_id", "filename", "media_type", "size_bytes",
	"chunk_count", "text_ref", "doc_ref", "chunk_map_ref", "process_millis", "ctime",
}

// RegistryRepo maps content hashes to processed document identities.
// The primary key on content_hash is what enforces the one-entry-per-
// hash deduplication contract.
type RegistryRepo struct {
	db *sql.DB
}

func NewRegistryRepo(db *sql.DB) *RegistryRepo {
	return &RegistryRepo{db: db}
}

func (r *RegistryRepo) FindByHash(ctx context.Context, contentHash string) (*model.RegistryEntry, error) {
	where := map[string]interface{}{
		"content_hash": contentHash,
	}
	return r.findOne(ctx, where)
}

// FindByDocumentID resolves the registry entry owning a document
// identifier; used by retrieval and resync, which start from an id
// rather than content.
func (r *RegistryRepo) FindByDocumentID(ctx context.Context, documentID string) (*model.RegistryEntry, error) {
	where := map[string]interface{}{
		"document_id": documentID,
	}
	return r.findOne(ctx, where)
}

func (r *RegistryRepo) findOne(ctx context.Context, where map[string]interface{}) (*model.RegistryEntry, error) {
	sqlStr, args, err := builder.BuildSelect("document_registry", where, registryColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var entry model.RegistryEntry
	err = row.Scan(
		&entry.ContentHash,
		&entry.Document.ID,
		&entry.Document.Filename,
		&entry.Document.MediaType,
		&entry.Document.SizeBytes,
		&entry.Document.ChunkCount,
		&entry.Document.TextRef,
		&entry.DocRef,
		&entry.ChunkMapRef,
		&entry.ProcessMillis,
		&entry.Ctime,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	entry.Document.ContentHash = entry.ContentHash
	entry.Document.Ctime = entry.Ctime
	return &entry, nil
}

// Register inserts or overwrites the entry for its content hash.
func (r *RegistryRepo) Register(ctx context.Context, entry *model.RegistryEntry) error {
	const query = `
		INSERT INTO document_registry
			(content_hash, document_id, filename, media_type, size_bytes, chunk_count, text_ref, doc_ref, chunk_map_ref, process_millis, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (content_hash) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			filename = EXCLUDED.filename,
			media_type = EXCLUDED.media_type,
			size_bytes = EXCLUDED.size_bytes,
			chunk_count = EXCLUDED.chunk_count,
			text_ref = EXCLUDED.text_ref,
			doc_ref = EXCLUDED.doc_ref,
			chunk_map_ref = EXCLUDED.chunk_map_ref,
			process_millis = EXCLUDED.process_millis,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ContentHash,
		entry.Document.ID,
		entry.Document.Filename,
		entry.Document.MediaType,
		entry.Document.SizeBytes,
		entry.Document.ChunkCount,
		entry.Document.TextRef,
		entry.DocRef,
		entry.ChunkMapRef,
		entry.ProcessMillis,
		entry.Ctime,
	)
	if dbutil.IsConflict(err) {
		// Concurrent upserts on the same hash can still trip the unique
		// violation; surface it as a conflict rather than a raw pq error.
		return apperrors.ErrConflict
	}
	return err
}
