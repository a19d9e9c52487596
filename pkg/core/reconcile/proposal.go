// Package reconcile turns extracted or hand-edited values into proposals
// against the catalog and applies them once the operator confirms.
package reconcile

import (
	"strings"
	"time"

	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/matcher"
)

type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
)

// Origin records what produced a proposal. Document updates are restricted to
// the allow-list; manual updates are not.
type Origin string

const (
	OriginDocument Origin = "document"
	OriginManual   Origin = "manual"
)

// Change pairs the stored value of a field with its proposed replacement.
type Change struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Proposal is an unconfirmed catalog mutation.
type Proposal struct {
	ID       string         `json:"id"`
	Kind     Kind           `json:"kind"`
	Origin   Origin         `json:"origin"`
	Schema   catalog.Schema `json:"schema"`
	Identity string         `json:"identity"`

	// Create: one value per schema field, identity included.
	Fields map[string]string `json:"fields,omitempty"`
	// Create: fields the document did not provide.
	Missing []string `json:"missing,omitempty"`

	// Update: changed fields only.
	Changes map[string]Change `json:"changes,omitempty"`

	Match     matcher.Decision `json:"match"`
	CreatedAt time.Time        `json:"created_at"`
}

// Confirmation is the explicit operator approval required by Apply.
// Edits override proposed values before the write.
type Confirmation struct {
	ProposalID string            `json:"proposal_id"`
	Confirmed  bool              `json:"confirmed"`
	Edits      map[string]string `json:"edits,omitempty"`
}

// Confirm approves p as is.
func Confirm(p *Proposal) Confirmation {
	return Confirmation{ProposalID: p.ID, Confirmed: true}
}

func (p *Proposal) Clone() *Proposal {
	out := *p
	out.Schema = append(catalog.Schema(nil), p.Schema...)
	out.Missing = append([]string(nil), p.Missing...)
	if p.Fields != nil {
		out.Fields = make(map[string]string, len(p.Fields))
		for k, v := range p.Fields {
			out.Fields[k] = v
		}
	}
	if p.Changes != nil {
		out.Changes = make(map[string]Change, len(p.Changes))
		for k, v := range p.Changes {
			out.Changes[k] = v
		}
	}
	return &out
}

// Row returns a Create proposal's values in schema order, identity first.
func (p *Proposal) Row() []string {
	row := make([]string, len(p.Schema))
	for i, field := range p.Schema {
		row[i] = p.Fields[field]
	}
	if len(row) > 0 {
		row[0] = p.Identity
	}
	return row
}

// ChangedFields lists update fields whose new value differs from the old one,
// in schema order.
func (p *Proposal) ChangedFields() []string {
	var out []string
	for _, field := range p.Schema {
		c, ok := p.Changes[field]
		if ok && !sameValue(c.Old, c.New) {
			out = append(out, field)
		}
	}
	return out
}

// WithEdits returns a copy of p with the operator's edits applied.
func (p *Proposal) WithEdits(edits map[string]string) (*Proposal, error) {
	out := p.Clone()
	if len(edits) == 0 {
		return out, nil
	}

	var errs ValidationErrors
	idField := p.Schema.Identity()
	for field, value := range edits {
		if !p.Schema.Has(field) {
			errs.add(field, ErrUnknownField)
			continue
		}
		switch p.Kind {
		case KindCreate:
			out.Fields[field] = strings.TrimSpace(value)
			if field == idField {
				out.Identity = strings.TrimSpace(value)
			}
		case KindUpdate:
			c, ok := out.Changes[field]
			if !ok {
				if field == idField {
					errs.add(field, ErrIdentityChange)
				} else {
					errs.add(field, ErrNotAllowed)
				}
				continue
			}
			c.New = strings.TrimSpace(value)
			out.Changes[field] = c
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func sameValue(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
