package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docast/internal/repo"
)

// ArtifactCleanupJob sweeps synthesis artifacts past the retention
// window. Disabled when keepDays is zero.
type ArtifactCleanupJob struct {
	repo     *repo.ArtifactRepo
	keepDays int
}

func NewArtifactCleanupJob(repo *repo.ArtifactRepo, keepDays int) *ArtifactCleanupJob {
	return &ArtifactCleanupJob{repo: repo, keepDays: keepDays}
}

func (j *ArtifactCleanupJob) Name() string {
	return "artifact_cleanup"
}

func (j *ArtifactCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil || j.keepDays <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-time.Duration(j.keepDays) * 24 * time.Hour).Unix()
	deleted, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("expired artifacts removed", zap.Int64("count", deleted))
	}
	return nil
}
