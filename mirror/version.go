package mirror

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"gorm.io/gorm"

	"github.com/weavehub/weave/apperr"
)

// VersionHistory merges locally persisted versions with any the upstream
// still knows about, deduped by version number.
func (s *Service) VersionHistory(ctx context.Context, assistantID string) ([]AssistantVersion, error) {
	var local []AssistantVersion
	if err := s.db.WithContext(ctx).
		Where("assistant_id = ?", assistantID).
		Order("version asc").
		Find(&local).Error; err != nil {
		return nil, apperr.WrapInternal(err, "loading local assistant versions")
	}

	current, err := s.engine.GetAssistant(ctx, assistantID)
	if err == nil {
		s.snapshotVersionIfNew(ctx, current)
		if !hasVersion(local, current.Version) {
			configJSON, _ := json.Marshal(current.Config)
			metaJSON, _ := json.Marshal(current.Metadata)
			local = append(local, AssistantVersion{
				AssistantID: current.ID, Version: current.Version, Name: current.Name,
				Description: current.Description, Config: string(configJSON), Metadata: string(metaJSON),
			})
		}
	}

	sort.Slice(local, func(i, j int) bool { return local[i].Version < local[j].Version })
	return local, nil
}

func hasVersion(versions []AssistantVersion, v int) bool {
	for _, av := range versions {
		if av.Version == v {
			return true
		}
	}
	return false
}

// Restore loads the target version's local snapshot, instructs upstream to
// apply it (producing a new upstream version), snapshots that new version
// locally, and targeted-syncs the assistant. It never uses a "set latest"
// primitive; every restore creates new history.
func (s *Service) Restore(ctx context.Context, assistantID string, targetVersion int, commitMessage string) (*AssistantVersion, error) {
	var target AssistantVersion
	err := s.db.WithContext(ctx).
		Where("assistant_id = ? AND version = ?", assistantID, targetVersion).
		First(&target).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewNotFound("version %d of assistant %s", targetVersion, assistantID)
	}
	if err != nil {
		return nil, apperr.WrapInternal(err, "loading target version")
	}

	if commitMessage == "" {
		commitMessage = restoreCommitMessage(targetVersion)
	}

	var config, metadata map[string]interface{}
	_ = json.Unmarshal([]byte(target.Config), &config)
	_ = json.Unmarshal([]byte(target.Metadata), &metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	var tags []string
	_ = json.Unmarshal([]byte(target.Tags), &tags)
	metadata = withTags(metadata, tags)

	newVersion, err := s.engine.ApplyAssistantUpdate(ctx, assistantID, target.Name, target.Description, config, metadata)
	if err != nil {
		return nil, apperr.WrapUpstream(err, "applying restore to upstream assistant %s", assistantID)
	}

	snapshot := AssistantVersion{
		AssistantID:   assistantID,
		Version:       newVersion,
		Name:          target.Name,
		Description:   target.Description,
		Config:        target.Config,
		Metadata:      target.Metadata,
		Tags:          target.Tags,
		CommitMessage: commitMessage,
	}
	if err := s.db.WithContext(ctx).Create(&snapshot).Error; err != nil {
		return nil, apperr.WrapInternal(err, "snapshotting restored version")
	}

	if _, err := s.SyncAssistant(ctx, assistantID); err != nil {
		return &snapshot, apperr.WrapInternal(err, "targeted sync after restore")
	}
	return &snapshot, nil
}

func restoreCommitMessage(target int) string {
	return "Restored from version " + strconv.Itoa(target)
}
