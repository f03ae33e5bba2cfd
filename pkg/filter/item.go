package filter

import (
	"context"
	"math"

	"github.com/harun/moltguard/pkg/audit"
)

// BlockedAuthorMarker replaces every user-controllable field of content
// from a blocked author.
const BlockedAuthorMarker = "[REDACTED — blocked author]"

// SecurityKey is the metadata field attached to filtered items. It is
// for the audit trail and dashboard only and must be stripped before
// content reaches the downstream reasoning consumer.
const SecurityKey = "_security"

// userFields are the user-controllable text fields of a post or
// comment, in scan order.
var userFields = []string{"title", "content", "name", "description", "author_name", "submolt_name"}

// envelopeKeys are the response-envelope list fields the upstream API
// uses interchangeably.
var envelopeKeys = []string{"posts", "data", "results", "items", "comments"}

// FilterItem scans and sanitises one content item in place and returns
// it. Items from blocked authors are fully redacted without any text
// scanning; otherwise every user-controllable string field is scanned
// and flagged fields get their sanitised form. Non-map values pass
// through untouched.
func (s *Service) FilterItem(ctx context.Context, item map[string]any) map[string]any {
	if item == nil {
		return nil
	}

	author := ExtractAuthor(item)

	// Layer 0: author blocklist pre-check. Terminal state; nothing from
	// a blocked author is worth scanning.
	if s.tracker.IsBlocked(author.Name) {
		for _, field := range userFields {
			if _, ok := item[field]; ok {
				item[field] = BlockedAuthorMarker
			}
		}
		item[SecurityKey] = map[string]any{
			"blocked_author": true,
			"author":         author.Name,
			"filtered":       true,
		}
		s.logAudit(audit.Event{
			Event: audit.EventBlockedAuthorContent,
			Fields: map[string]any{
				"post_id": stringField(item, "id"),
				"author":  author.Name,
				"submolt": submoltOf(item),
			},
		})
		return item
	}

	// Layers 1 and 2: scan every user-controllable field, tracking the
	// maximum risk and the union of flags across fields.
	var flags []string
	maxRisk := 0.0
	var affected []string

	for _, field := range userFields {
		value, ok := item[field].(string)
		if !ok {
			continue
		}
		affected = append(affected, field)
		result := s.ScanText(ctx, value)
		if result.RiskScore > maxRisk {
			maxRisk = result.RiskScore
		}
		if !result.Clean {
			flags = append(flags, result.Flags...)
			item[field] = result.Sanitised
		}
	}

	if len(flags) == 0 {
		return item
	}

	s.tracker.RecordFlag(author.Name, flags)
	item[SecurityKey] = map[string]any{
		"flags":      flags,
		"risk_score": round4(maxRisk),
		"filtered":   true,
	}
	s.logAudit(audit.Event{
		Event: audit.EventContentFlagged,
		Fields: map[string]any{
			"post_id":         stringField(item, "id"),
			"author":          author.Name,
			"submolt":         submoltOf(item),
			"risk_score":      round4(maxRisk),
			"flags":           flags,
			"fields_affected": affected,
		},
	})
	return item
}

// FilterItems filters a list of items or a response envelope containing
// one. Anything else passes through unchanged.
func (s *Service) FilterItems(ctx context.Context, v any) any {
	switch vv := v.(type) {
	case []any:
		for i, item := range vv {
			if m, ok := item.(map[string]any); ok {
				vv[i] = s.FilterItem(ctx, m)
			}
		}
		return vv
	case []map[string]any:
		for i, item := range vv {
			vv[i] = s.FilterItem(ctx, item)
		}
		return vv
	case map[string]any:
		for _, key := range envelopeKeys {
			if list, ok := vv[key].([]any); ok {
				vv[key] = s.FilterItems(ctx, list)
			}
		}
		return vv
	default:
		return v
	}
}

// StripSecurityMetadata removes the internal _security metadata from an
// item tree before it crosses the trust boundary. The downstream
// consumer must never learn which rule fired, or it could adapt around
// the filter.
func StripSecurityMetadata(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		delete(vv, SecurityKey)
		for k, child := range vv {
			vv[k] = StripSecurityMetadata(child)
		}
		return vv
	case []any:
		for i, child := range vv {
			vv[i] = StripSecurityMetadata(child)
		}
		return vv
	default:
		return v
	}
}

func (s *Service) logAudit(ev audit.Event) {
	s.sink.Log(ev)
	if s.metrics != nil {
		s.metrics.AuditEventsTotal.WithLabelValues(ev.Event).Inc()
	}
}

func stringField(item map[string]any, key string) string {
	if v, ok := item[key].(string); ok && v != "" {
		return v
	}
	return "unknown"
}

func submoltOf(item map[string]any) string {
	if v, ok := item["submolt"].(string); ok && v != "" {
		return v
	}
	return stringField(item, "submolt_name")
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
