// internal/render/readiness/gate.go
package readiness

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"render-workers/internal/common/logger"
	"render-workers/internal/render/model"
)

// Config controls which fields the gate requires.
type Config struct {
	ItemCount      int
	PlatformFields []string
	SEOFields      []string
}

func DefaultConfig() *Config {
	return &Config{
		ItemCount: 5,
		PlatformFields: []string{
			model.FieldVideoTitle,
			model.FieldVideoDescription,
			model.FieldYouTubeTitle,
			model.FieldYouTubeDescription,
			model.FieldTikTokTitle,
			model.FieldTikTokDescription,
			model.FieldInstagramTitle,
			model.FieldInstagramCaption,
		},
		SEOFields: []string{model.FieldKeywords, model.FieldHashtags},
	}
}

type checkKind int

const (
	kindPresent checkKind = iota
	kindURL
	kindApproved
)

type check struct {
	field string
	kind  checkKind
}

// Gate decides whether a record snapshot may proceed to rendering. It has no
// side effects; Evaluate may be called concurrently.
type Gate struct {
	config *Config
	logger logger.Logger
}

func NewGate(config *Config, log logger.Logger) *Gate {
	if config == nil {
		config = DefaultConfig()
	}
	return &Gate{
		config: config,
		logger: log.WithFields(map[string]interface{}{"component": "readiness-gate"}),
	}
}

// Evaluate runs every check against the snapshot. Each check passes or fails
// independently; the record is ready only when all of them pass.
func (g *Gate) Evaluate(rec model.Record) model.ReadinessReport {
	checks, warnings := g.plan(rec)

	b := newReportBuilder()
	for _, c := range checks {
		b.apply(rec, c)
	}
	report := b.build(warnings)

	g.logger.Debug("readiness evaluated", map[string]interface{}{
		"recordId": rec.ID,
		"ready":    report.Ready,
		"missing":  len(report.Missing),
		"pending":  len(report.Pending),
		"rejected": len(report.Rejected),
	})
	return report
}

func (g *Gate) plan(rec model.Record) ([]check, []string) {
	var checks []check
	var warnings []string

	for _, f := range g.config.PlatformFields {
		checks = append(checks, check{f, kindPresent})
	}
	for _, f := range g.config.SEOFields {
		checks = append(checks, check{f, kindPresent})
	}

	for i := 1; i <= g.config.ItemCount; i++ {
		checks = append(checks,
			check{model.ItemField(i, model.SuffixTitle), kindPresent},
			check{model.ItemField(i, model.SuffixDescription), kindPresent},
			check{model.ItemField(i, model.SuffixPrice), kindPresent},
			check{model.ItemField(i, model.SuffixRating), kindPresent},
			check{model.ItemField(i, model.SuffixReviews), kindPresent},
			check{model.ItemField(i, model.SuffixPhoto), kindURL},
			check{model.ItemField(i, model.SuffixAffiliate), kindURL},
			check{model.ItemField(i, model.SuffixTimingStatus), kindApproved},
		)
	}
	checks = append(checks,
		check{model.FieldIntroTimingStatus, kindApproved},
		check{model.FieldOutroTimingStatus, kindApproved},
	)

	var absent []string
	for _, c := range g.narrationCapabilities() {
		if len(c.fields) == 0 {
			continue
		}
		if !g.anyInSchema(rec, c.fields) {
			absent = append(absent, c.name)
			continue
		}
		for _, f := range c.fields {
			checks = append(checks, check{f, kindURL})
		}
	}
	if len(absent) > 0 {
		checks = append(checks, check{model.FieldNarrationStatus, kindApproved})
		warnings = append(warnings, fmt.Sprintf(
			"degraded check: no %s narration fields in schema, used %s instead",
			strings.Join(absent, ", "), model.FieldNarrationStatus))
	}

	return checks, warnings
}

// capability is a group of fields that a schema either has or lacks as a whole.
type capability struct {
	name   string
	fields []string
}

func (g *Gate) narrationCapabilities() []capability {
	items := capability{name: "per-item"}
	for i := 1; i <= g.config.ItemCount; i++ {
		items.fields = append(items.fields, model.ItemField(i, model.SuffixNarration))
	}
	return []capability{
		{name: "intro", fields: []string{model.FieldIntroNarration}},
		items,
		{name: "outro", fields: []string{model.FieldOutroNarration}},
	}
}

func (g *Gate) anyInSchema(rec model.Record, fields []string) bool {
	for _, f := range fields {
		if rec.Has(f) {
			return true
		}
	}
	return false
}

type reportBuilder struct {
	passed   map[string]struct{}
	missing  map[string]struct{}
	pending  map[string]struct{}
	rejected map[string]struct{}
}

func newReportBuilder() *reportBuilder {
	return &reportBuilder{
		passed:   map[string]struct{}{},
		missing:  map[string]struct{}{},
		pending:  map[string]struct{}{},
		rejected: map[string]struct{}{},
	}
}

func (b *reportBuilder) apply(rec model.Record, c check) {
	value := rec.String(c.field)
	if value == "" {
		b.missing[c.field] = struct{}{}
		return
	}

	switch c.kind {
	case kindPresent:
		b.passed[c.field] = struct{}{}
	case kindURL:
		if isHTTPURL(value) {
			b.passed[c.field] = struct{}{}
		} else {
			b.rejected[c.field] = struct{}{}
		}
	case kindApproved:
		switch value {
		case model.ValueApproved:
			b.passed[c.field] = struct{}{}
		case model.ValuePending:
			b.pending[c.field] = struct{}{}
		default:
			// "Rejected" and anything unrecognised
			b.rejected[c.field] = struct{}{}
		}
	}
}

func (b *reportBuilder) build(warnings []string) model.ReadinessReport {
	report := model.ReadinessReport{
		Passed:   sortedKeys(b.passed),
		Missing:  sortedKeys(b.missing),
		Pending:  sortedKeys(b.pending),
		Rejected: sortedKeys(b.rejected),
		Warnings: append([]string(nil), warnings...),
	}
	report.Ready = len(report.Missing) == 0 && len(report.Pending) == 0 && len(report.Rejected) == 0
	return report
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
