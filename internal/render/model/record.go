// internal/render/model/record.go
package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Record is a snapshot of a content record's fields as returned by the
// record store. The orchestrator only reads snapshots and proposes updates.
type Record struct {
	ID     string
	Fields map[string]any
	// Schema lists every field name the store knows about, populated or not.
	// Nil means the store cannot describe its schema.
	Schema []string
}

// Has reports whether the field exists in the record's schema.
func (r Record) Has(field string) bool {
	if r.Schema == nil {
		_, ok := r.Fields[field]
		return ok
	}
	for _, name := range r.Schema {
		if name == field {
			return true
		}
	}
	return false
}

// String returns the field rendered as a trimmed string, or "" when absent.
func (r Record) String(field string) string {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		// Attachment-style fields: use the first element.
		if len(val) == 0 {
			return ""
		}
		return Record{Fields: map[string]any{field: val[0]}}.String(field)
	case map[string]any:
		if u, ok := val["url"].(string); ok {
			return strings.TrimSpace(u)
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Present reports whether the field holds a non-blank value.
func (r Record) Present(field string) bool {
	return r.String(field) != ""
}

// FieldNames returns the populated field names in sorted order.
func (r Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Field name builders for the content record schema. Item slot 1 is the
// best-ranked item.

func ItemField(slot int, suffix string) string {
	return fmt.Sprintf("ProductNo%d%s", slot, suffix)
}

const (
	SuffixTitle        = "Title"
	SuffixDescription  = "Description"
	SuffixPrice        = "Price"
	SuffixRating       = "Rating"
	SuffixReviews      = "Reviews"
	SuffixPhoto        = "Photo"
	SuffixAffiliate    = "AffiliateLink"
	SuffixNarration    = "Narration"
	SuffixScript       = "Script"
	SuffixTimingStatus = "TimingStatus"
)

const (
	FieldVideoTitle         = "VideoTitle"
	FieldVideoDescription   = "VideoDescription"
	FieldIntroHook          = "IntroHook"
	FieldIntroNarration     = "IntroNarration"
	FieldIntroPhoto         = "IntroPhoto"
	FieldIntroTimingStatus  = "IntroTimingStatus"
	FieldOutroScript        = "OutroScript"
	FieldOutroNarration     = "OutroNarration"
	FieldOutroPhoto         = "OutroPhoto"
	FieldOutroTimingStatus  = "OutroTimingStatus"
	FieldYouTubeTitle       = "YouTubeTitle"
	FieldYouTubeDescription = "YouTubeDescription"
	FieldTikTokTitle        = "TikTokTitle"
	FieldTikTokDescription  = "TikTokDescription"
	FieldInstagramTitle     = "InstagramTitle"
	FieldInstagramCaption   = "InstagramCaption"
	FieldKeywords           = "Keywords"
	FieldHashtags           = "Hashtags"
	FieldNarrationStatus    = "NarrationStatus"

	FieldReadinessStatus     = "ReadinessStatus"
	FieldReadinessReason     = "ReadinessReason"
	FieldRenderStatus        = "RenderStatus"
	FieldRenderJobID         = "RenderJobID"
	FieldVideoURL            = "VideoURL"
	FieldRenderAttempts      = "RenderAttempts"
	FieldRenderErrorCategory = "RenderErrorCategory"
	FieldRenderReason        = "RenderReason"
	FieldRenderFailureLog    = "RenderFailureLog"
	FieldRenderUpdatedAt     = "RenderUpdatedAt"
)

// Readiness enum values for prerequisite fields.
const (
	ValueApproved = "Approved"
	ValuePending  = "Pending"
	ValueRejected = "Rejected"
)

// Values written to ReadinessStatus.
const (
	ReadinessReady    = "Ready"
	ReadinessNotReady = "NotReady"
)
