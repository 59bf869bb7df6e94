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

// ArtifactRepo persists podcast outputs, one row per document.
type ArtifactRepo struct {
	db *sql.DB
}

func NewArtifactRepo(db *sql.DB) *ArtifactRepo {
	return &ArtifactRepo{db: db}
}

func (r *ArtifactRepo) GetByDocumentID(ctx context.Context, documentID string) (*model.Artifact, error) {
	where := map[string]interface{}{
		"document_id": documentID,
	}
	columns := []string{"document_id", "title", "script", "audio_ref", "script_only", "ctime"}
	sqlStr, args, err := builder.BuildSelect("artifacts", where, columns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var item model.Artifact
	err = row.Scan(&item.DocumentID, &item.Title, &item.Script, &item.AudioRef, &item.ScriptOnly, &item.Ctime)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query artifact: %w", err)
	}
	return &item, nil
}

func (r *ArtifactRepo) Save(ctx context.Context, item *model.Artifact) error {
	const query = `
		INSERT INTO artifacts (document_id, title, script, audio_ref, script_only, ctime)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (document_id) DO UPDATE SET
			title = EXCLUDED.title,
			script = EXCLUDED.script,
			audio_ref = EXCLUDED.audio_ref,
			script_only = EXCLUDED.script_only,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		item.DocumentID,
		item.Title,
		item.Script,
		item.AudioRef,
		item.ScriptOnly,
		item.Ctime,
	)
	return err
}

func (r *ArtifactRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM artifacts WHERE ctime < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
