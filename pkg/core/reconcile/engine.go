package reconcile

import (
	"context"
	"strings"
	"time"

	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/matcher"
	"catalog_agent/pkg/core/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Journal receives one entry per committed write.
type Journal interface {
	Record(ctx context.Context, e store.JournalEntry) error
}

type Options struct {
	Threshold float64
	// AllowList names the fields a document may propose to overwrite on an
	// existing entry.
	AllowList []string
	Kinds     catalog.Kinds
	Journal   Journal
	Logger    *zap.Logger
}

// Engine builds proposals from snapshots and applies confirmed ones to the
// cache's store.
type Engine struct {
	cache   *catalog.Cache
	matcher *matcher.Matcher
	allow   []string
	kinds   catalog.Kinds
	journal Journal
	logger  *zap.Logger
	now     func() time.Time
}

func NewEngine(cache *catalog.Cache, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		cache:   cache,
		matcher: matcher.New(opts.Threshold),
		allow:   append([]string(nil), opts.AllowList...),
		kinds:   opts.Kinds,
		journal: opts.Journal,
		logger:  opts.Logger,
		now:     time.Now,
	}
}

// AllowList returns the configured document update allow-list.
func (e *Engine) AllowList() []string {
	return append([]string(nil), e.allow...)
}

// Matcher exposes the name matcher used by Reconcile.
func (e *Engine) Matcher() *matcher.Matcher {
	return e.matcher
}

func (e *Engine) allowed(field string) bool {
	for _, f := range e.allow {
		if f == field {
			return true
		}
	}
	return false
}

func (e *Engine) newProposal(kind Kind, origin Origin, schema catalog.Schema) *Proposal {
	return &Proposal{
		ID:        uuid.NewString(),
		Kind:      kind,
		Origin:    origin,
		Schema:    append(catalog.Schema(nil), schema...),
		CreatedAt: e.now(),
	}
}

// Reconcile matches the extracted identity against snap and proposes either a
// new entry or an allow-listed update of the matched one.
func (e *Engine) Reconcile(extraction catalog.Extraction, snap *catalog.Snapshot) *Proposal {
	schema := snap.Schema
	decision := e.matcher.Match(extraction.Identity(schema), snap.Identities())

	if !decision.Matched {
		p := e.newProposal(KindCreate, OriginDocument, schema)
		p.Match = decision
		p.Identity = decision.Candidate
		p.Fields = make(map[string]string, len(schema))
		for _, field := range schema {
			v, ok := extraction[field]
			if !ok || v.Missing {
				p.Fields[field] = ""
				if field != schema.Identity() {
					p.Missing = append(p.Missing, field)
				}
				continue
			}
			p.Fields[field] = strings.TrimSpace(v.Text)
		}
		p.Fields[schema.Identity()] = p.Identity
		return p
	}

	row, _ := snap.Lookup(decision.Identity)
	p := e.newProposal(KindUpdate, OriginDocument, schema)
	p.Match = decision
	p.Identity = decision.Identity
	p.Changes = make(map[string]Change)
	for _, field := range schema.Attributes() {
		if !e.allowed(field) {
			continue
		}
		old := row.Values[field]
		next := old
		// An absent value keeps the stored one; the operator can still edit it.
		if v, ok := extraction[field]; ok && !v.Missing {
			next = strings.TrimSpace(v.Text)
		}
		p.Changes[field] = Change{Old: old, New: next}
	}
	e.logger.Info("document matched existing entry",
		zap.String("candidate", decision.Candidate),
		zap.String("identity", decision.Identity),
		zap.Float64("score", decision.Score),
		zap.Int("changed", len(p.ChangedFields())))
	return p
}

// ManualUpdate proposes the fields of form that differ from the stored row.
func (e *Engine) ManualUpdate(identity string, form map[string]string, snap *catalog.Snapshot) (*Proposal, error) {
	row, ok := snap.Lookup(identity)
	if !ok {
		return nil, catalog.ErrIdentityNotFound
	}

	var errs ValidationErrors
	p := e.newProposal(KindUpdate, OriginManual, snap.Schema)
	p.Identity = identity
	p.Changes = make(map[string]Change)
	for field, value := range form {
		switch {
		case !snap.Schema.Has(field):
			errs.add(field, ErrUnknownField)
		case field == snap.Schema.Identity():
			if !sameValue(value, identity) {
				errs.add(field, ErrIdentityChange)
			}
		default:
			old := row.Values[field]
			if !sameValue(old, value) {
				p.Changes[field] = Change{Old: old, New: strings.TrimSpace(value)}
			}
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return p, nil
}

// ManualCreate proposes a new entry from form values.
func (e *Engine) ManualCreate(form map[string]string, snap *catalog.Snapshot) *Proposal {
	p := e.newProposal(KindCreate, OriginManual, snap.Schema)
	p.Fields = make(map[string]string, len(snap.Schema))
	for _, field := range snap.Schema {
		p.Fields[field] = strings.TrimSpace(form[field])
	}
	p.Identity = p.Fields[snap.Schema.Identity()]
	return p
}
