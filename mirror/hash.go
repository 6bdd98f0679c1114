package mirror

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// assistantHash computes sha256(name || config || metadata || description ||
// context || version || created_at || updated_at). The mirror row is
// updated iff this differs from the stored hash.
func assistantHash(a *UpstreamAssistant) string {
	configJSON, _ := json.Marshal(a.Config)
	metaJSON, _ := json.Marshal(a.Metadata)
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%d|%s|%s",
		a.Name, configJSON, metaJSON, a.Description, a.Context, a.Version,
		a.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
		a.UpdatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
	)
	return hex.EncodeToString(h.Sum(nil))
}

func isTemplate(meta map[string]interface{}) bool {
	createdBy, _ := meta["created_by"].(string)
	return createdBy == "system"
}

// oapTagsKey is the reserved metadata key the upstream engine uses to carry
// tags, since it has no native tags field.
const oapTagsKey = "_x_oap_tags"

// extractTags pulls the tags workaround key out of assistant metadata.
func extractTags(meta map[string]interface{}) []string {
	raw, ok := meta[oapTagsKey]
	if !ok {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

// withTags returns a copy of meta with the reserved tags key set, so writes
// can keep the column and the metadata workaround consistent.
func withTags(meta map[string]interface{}, tags []string) map[string]interface{} {
	out := make(map[string]interface{}, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	items := make([]interface{}, len(tags))
	for i, t := range tags {
		items[i] = t
	}
	out[oapTagsKey] = items
	return out
}
