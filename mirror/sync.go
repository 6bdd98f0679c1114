package mirror

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"gorm.io/gorm"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/common"
	"github.com/weavehub/weave/db"
)

type Service struct {
	db        *gorm.DB
	engine    EngineClient
	schemas   db.SchemaStore
	graphRepo GraphMembershipStore
	logger    *common.ContextLogger
}

// NewService wires the mirror's relational store, upstream engine client,
// document schema store, and graph-membership store. graphRepo may be nil,
// in which case graph-membership queries fall back to the relational
// mirror_assistants table.
func NewService(gormDB *gorm.DB, engine EngineClient, schemas db.SchemaStore, graphRepo GraphMembershipStore, logger *common.ContextLogger) *Service {
	return &Service{db: gormDB, engine: engine, schemas: schemas, graphRepo: graphRepo, logger: logger}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Graph{}, &Assistant{}, &AssistantVersion{}, &CacheState{})
}

// SyncAssistant fetches one upstream assistant, upserts it if its hash
// changed, refreshes its parent graph's aggregates, and syncs its schemas.
func (s *Service) SyncAssistant(ctx context.Context, id string) (SyncStats, error) {
	upstream, err := s.engine.GetAssistant(ctx, id)
	if err != nil {
		return SyncStats{Errors: []string{err.Error()}}, nil
	}
	stats := s.upsertAssistant(ctx, upstream)
	s.touchGraph(ctx, upstream.GraphID)
	s.syncSchemas(ctx, id, &stats)
	return stats, nil
}

// SyncIncremental pages upstream assistants/search, diffing by hash.
func (s *Service) SyncIncremental(ctx context.Context, limit int) (SyncStats, error) {
	return s.sync(ctx, "", limit)
}

// SyncFull runs the same sweep as incremental, then marks graphs with zero
// recently-seen assistants as inactive and stamps last_synced_at.
func (s *Service) SyncFull(ctx context.Context, limit int) (SyncStats, error) {
	stats, err := s.sync(ctx, "", limit)
	if err != nil {
		return stats, err
	}
	if err := s.markInactiveGraphs(ctx); err != nil {
		stats.Errors = append(stats.Errors, err.Error())
	}
	now := time.Now()
	s.db.WithContext(ctx).Model(&Graph{}).Where("1 = 1").Update("last_synced_at", now)
	return stats, nil
}

// SyncGraph pages upstream assistants/search filtered to graphID.
func (s *Service) SyncGraph(ctx context.Context, graphID string, limit int) (SyncStats, error) {
	return s.sync(ctx, graphID, limit)
}

func (s *Service) sync(ctx context.Context, graphID string, limit int) (SyncStats, error) {
	var total SyncStats
	cursor := ""
	touchedGraphs := make(map[string]bool)

	for {
		page, err := s.engine.SearchAssistants(ctx, graphID, cursor, limit)
		if err != nil {
			total.Errors = append(total.Errors, err.Error())
			break
		}
		if len(page.Assistants) == 0 {
			break
		}

		for _, a := range page.Assistants {
			upstream := a
			stats := s.upsertAssistant(ctx, &upstream)
			total.merge(stats)
			touchedGraphs[upstream.GraphID] = true
			if stats.New > 0 || stats.Updated > 0 {
				s.syncSchemas(ctx, upstream.ID, &total)
			}
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	for gid := range touchedGraphs {
		s.touchGraph(ctx, gid)
	}
	return total, nil
}

// upsertAssistant writes a into the mirror iff its hash changed from
// stored, bumping assistants_version on any write; otherwise it only
// touches last_seen_at.
func (s *Service) upsertAssistant(ctx context.Context, a *UpstreamAssistant) SyncStats {
	hash := assistantHash(a)
	configJSON, _ := json.Marshal(a.Config)
	metaJSON, _ := json.Marshal(a.Metadata)
	tagsJSON, _ := json.Marshal(extractTags(a.Metadata))

	var existing Assistant
	err := s.db.WithContext(ctx).First(&existing, "id = ?", a.ID).Error

	now := time.Now()
	if err == gorm.ErrRecordNotFound {
		row := Assistant{
			ID: a.ID, GraphID: a.GraphID, Name: a.Name, Config: string(configJSON),
			Metadata: string(metaJSON), Description: a.Description, Context: a.Context,
			Version: a.Version, Tags: string(tagsJSON), Hash: hash,
			IsTemplate: isTemplate(a.Metadata), LastSeenAt: now,
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return SyncStats{Errors: []string{err.Error()}}
		}
		s.bumpVersion(ctx, "assistants_version")
		s.snapshotVersionIfNew(ctx, a)
		s.writeGraphEdge(ctx, a.GraphID, a.ID)
		return SyncStats{New: 1}
	}
	if err != nil {
		return SyncStats{Errors: []string{err.Error()}}
	}

	if existing.Hash == hash {
		s.db.WithContext(ctx).Model(&existing).Update("last_seen_at", now)
		return SyncStats{Unchanged: 1}
	}

	s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"graph_id": a.GraphID, "name": a.Name, "config": string(configJSON),
		"metadata": string(metaJSON), "description": a.Description, "context": a.Context,
		"version": a.Version, "tags": string(tagsJSON), "hash": hash,
		"is_template": isTemplate(a.Metadata), "last_seen_at": now,
	})
	s.writeGraphEdge(ctx, a.GraphID, a.ID)
	s.bumpVersion(ctx, "assistants_version")
	s.snapshotVersionIfNew(ctx, a)
	return SyncStats{Updated: 1}
}

// writeGraphEdge keeps the Neo4j membership graph current. It is a no-op
// when no GraphMembershipStore is configured.
func (s *Service) writeGraphEdge(ctx context.Context, graphID, assistantID string) {
	if s.graphRepo == nil || graphID == "" {
		return
	}
	if err := s.graphRepo.UpsertEdge(ctx, graphID, assistantID); err != nil {
		s.logger.WithError(err).WithField("assistant_id", assistantID).Warn("failed to update graph membership edge")
	}
}

// snapshotVersionIfNew ensures the live version is present in assistant
// version history, auto-saving on first observation.
func (s *Service) snapshotVersionIfNew(ctx context.Context, a *UpstreamAssistant) {
	var count int64
	s.db.WithContext(ctx).Model(&AssistantVersion{}).
		Where("assistant_id = ? AND version = ?", a.ID, a.Version).Count(&count)
	if count > 0 {
		return
	}
	configJSON, _ := json.Marshal(a.Config)
	metaJSON, _ := json.Marshal(a.Metadata)
	tagsJSON, _ := json.Marshal(extractTags(a.Metadata))
	v := AssistantVersion{
		AssistantID: a.ID, Version: a.Version, Name: a.Name, Description: a.Description,
		Config: string(configJSON), Metadata: string(metaJSON), Tags: string(tagsJSON),
	}
	s.db.WithContext(ctx).Create(&v)
}

// syncSchemas mirrors an assistant's input/config/state schemas into the
// document store. Schemas are pure JSON addressed by assistant id, so unlike
// the relational rows above there is no hash column to diff against — the
// existing document (if any) is fetched and compared field by field.
func (s *Service) syncSchemas(ctx context.Context, assistantID string, stats *SyncStats) {
	if s.schemas == nil {
		return
	}
	schemas, err := s.engine.GetSchemas(ctx, assistantID)
	if err != nil {
		stats.Errors = append(stats.Errors, err.Error())
		return
	}

	existing, err := s.schemas.Get(ctx, assistantID)
	if err != nil {
		stats.Errors = append(stats.Errors, err.Error())
		return
	}
	if existing != nil &&
		reflect.DeepEqual(existing.InputSchema, schemas.InputSchema) &&
		reflect.DeepEqual(existing.ConfigSchema, schemas.ConfigSchema) &&
		reflect.DeepEqual(existing.StateSchema, schemas.StateSchema) {
		return
	}

	doc := db.AssistantSchemas{
		ID: assistantID, AssistantID: assistantID,
		InputSchema: schemas.InputSchema, ConfigSchema: schemas.ConfigSchema, StateSchema: schemas.StateSchema,
	}
	if existing != nil {
		doc.Rev = existing.Rev
	}
	if err := s.schemas.Save(ctx, doc); err != nil {
		stats.Errors = append(stats.Errors, err.Error())
		return
	}
	stats.SchemaUpdates++
	s.bumpVersion(ctx, "schemas_version")
}

func (s *Service) touchGraph(ctx context.Context, graphID string) {
	if graphID == "" {
		return
	}
	now := time.Now()
	var g Graph
	err := s.db.WithContext(ctx).First(&g, "id = ?", graphID).Error
	if err == gorm.ErrRecordNotFound {
		s.db.WithContext(ctx).Create(&Graph{ID: graphID, Active: true, LastSeenAt: now})
		s.bumpVersion(ctx, "graphs_version")
		return
	}
	s.db.WithContext(ctx).Model(&g).Updates(map[string]interface{}{"last_seen_at": now, "active": true})
}

func (s *Service) markInactiveGraphs(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec(`
		UPDATE mirror_graphs SET active = false
		WHERE id NOT IN (
			SELECT DISTINCT graph_id FROM mirror_assistants WHERE last_seen_at > now() - interval '1 day'
		)
	`).Error
}

func (s *Service) bumpVersion(ctx context.Context, column string) {
	var count int64
	s.db.WithContext(ctx).Model(&CacheState{}).Count(&count)
	if count == 0 {
		s.db.WithContext(ctx).Create(&CacheState{})
	}
	s.db.WithContext(ctx).Exec(
		"UPDATE cache_state SET "+column+" = "+column+" + 1, updated_at = ?", time.Now(),
	)
}

// BumpThreadsVersion increments the threads_version counter. It implements
// summarizer.CacheVersionBumper so the summarizer sweeper can signal clients
// to refetch thread listings without owning the cache_state table itself.
func (s *Service) BumpThreadsVersion(ctx context.Context) {
	s.bumpVersion(ctx, "threads_version")
}

func (s *Service) GetCacheState(ctx context.Context) (*CacheState, error) {
	var cs CacheState
	if err := s.db.WithContext(ctx).First(&cs).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &CacheState{}, nil
		}
		return nil, apperr.WrapInternal(err, "loading cache state")
	}
	return &cs, nil
}

// ListAssistantIDsByGraph implements permission.GraphAssistantLister, which
// drives the "revoke public graph permission cascades to its assistants"
// query. When a GraphMembershipStore is configured it answers from the
// membership graph; otherwise it falls back to the relational mirror.
func (s *Service) ListAssistantIDsByGraph(ctx context.Context, graphID string) ([]string, error) {
	if s.graphRepo != nil {
		ids, err := s.graphRepo.AssistantIDsByGraph(ctx, graphID)
		if err != nil {
			return nil, apperr.WrapInternal(err, "listing assistants by graph")
		}
		return ids, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&Assistant{}).Where("graph_id = ?", graphID).Pluck("id", &ids).Error
	if err != nil {
		return nil, apperr.WrapInternal(err, "listing assistants by graph")
	}
	return ids, nil
}

// GetSchemas returns the mirrored input/config/state schemas for an
// assistant, or nil if it has never been synced.
func (s *Service) GetSchemas(ctx context.Context, assistantID string) (*db.AssistantSchemas, error) {
	if s.schemas == nil {
		return nil, nil
	}
	doc, err := s.schemas.Get(ctx, assistantID)
	if err != nil {
		return nil, apperr.WrapInternal(err, "loading assistant schemas")
	}
	return doc, nil
}

// AssistantGraphID implements notification.AssistantGraphResolver.
func (s *Service) AssistantGraphID(ctx context.Context, assistantID string) (string, error) {
	var a Assistant
	if err := s.db.WithContext(ctx).Select("graph_id").First(&a, "id = ?", assistantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", apperr.NewNotFound("assistant %s", assistantID)
		}
		return "", apperr.WrapInternal(err, "resolving graph for assistant")
	}
	return a.GraphID, nil
}
