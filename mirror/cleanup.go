package mirror

import (
	"context"
	"time"

	"github.com/weavehub/weave/apperr"
)

type CleanupResult struct {
	AssistantsDeleted int64
	GraphsDeleted     int64
	SchemasDeleted    int64
}

// CleanupStaleMirrors deletes assistants whose last_seen_at is older than
// the grace horizon, graphs with no remaining assistants whose last_seen_at
// is also beyond grace, and orphan schemas. Rows newer than the grace
// horizon are never deleted regardless of other state.
func (s *Service) CleanupStaleMirrors(ctx context.Context, graceDays int) (*CleanupResult, error) {
	horizon := time.Now().AddDate(0, 0, -graceDays)
	result := &CleanupResult{}

	var staleIDs []string
	if err := s.db.WithContext(ctx).Model(&Assistant{}).
		Where("last_seen_at < ?", horizon).Pluck("id", &staleIDs).Error; err != nil {
		return nil, apperr.WrapInternal(err, "listing stale assistants")
	}

	staleAssistants := s.db.WithContext(ctx).
		Where("last_seen_at < ?", horizon).
		Delete(&Assistant{})
	if staleAssistants.Error != nil {
		return nil, apperr.WrapInternal(staleAssistants.Error, "deleting stale assistants")
	}
	result.AssistantsDeleted = staleAssistants.RowsAffected

	// Schemas and graph-membership edges live in separate stores keyed by
	// assistant id, so there is no foreign key to cascade on; clean up each
	// stale assistant's document and node explicitly.
	for _, id := range staleIDs {
		if s.schemas != nil {
			if err := s.schemas.Delete(ctx, id); err != nil {
				s.logger.WithError(err).WithField("assistant_id", id).Warn("failed to delete orphan schema document")
			} else {
				result.SchemasDeleted++
			}
		}
		if s.graphRepo != nil {
			if err := s.graphRepo.RemoveAssistant(ctx, id); err != nil {
				s.logger.WithError(err).WithField("assistant_id", id).Warn("failed to remove stale graph membership node")
			}
		}
	}

	staleGraphs := s.db.WithContext(ctx).Exec(`
		DELETE FROM mirror_graphs
		WHERE last_seen_at < ?
		AND id NOT IN (SELECT DISTINCT graph_id FROM mirror_assistants)
	`, horizon)
	if staleGraphs.Error != nil {
		return nil, apperr.WrapInternal(staleGraphs.Error, "deleting stale graphs")
	}
	result.GraphsDeleted = staleGraphs.RowsAffected

	return result, nil
}
