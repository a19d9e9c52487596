package reconcile

import (
	"catalog_agent/pkg/core/catalog"
)

// Validate checks p against snap without writing anything. The result is nil
// or a ValidationErrors.
func (e *Engine) Validate(p *Proposal, snap *catalog.Snapshot) error {
	_, errs := e.normalize(p, snap)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// normalize validates p and returns a copy whose values are in canonical form.
func (e *Engine) normalize(p *Proposal, snap *catalog.Snapshot) (*Proposal, ValidationErrors) {
	var errs ValidationErrors
	out := p.Clone()
	schema := snap.Schema
	idField := schema.Identity()

	switch p.Kind {
	case KindCreate:
		if out.Fields == nil {
			out.Fields = make(map[string]string, len(p.Schema))
		}
		switch {
		case p.Identity == "":
			errs.add(idField, ErrIdentityRequired)
		case snap.Contains(p.Identity):
			errs.add(idField, ErrDuplicateIdentity)
		}
		for _, field := range p.Schema {
			if field == idField {
				continue
			}
			if !schema.Has(field) {
				errs.add(field, ErrUnknownField)
				continue
			}
			v, err := e.kinds.Of(field).Normalize(p.Fields[field])
			if err != nil {
				errs.add(field, err)
				continue
			}
			out.Fields[field] = v
		}
		out.Fields[idField] = p.Identity

	case KindUpdate:
		if !snap.Contains(p.Identity) {
			errs.add(idField, catalog.ErrIdentityNotFound)
		}
		for _, field := range p.Schema {
			c, ok := p.Changes[field]
			if !ok {
				continue
			}
			switch {
			case !schema.Has(field):
				errs.add(field, ErrUnknownField)
				continue
			case field == idField:
				errs.add(field, ErrIdentityChange)
				continue
			case p.Origin == OriginDocument && !e.allowed(field):
				errs.add(field, ErrNotAllowed)
				continue
			}
			v, err := e.kinds.Of(field).Normalize(c.New)
			if err != nil {
				errs.add(field, err)
				continue
			}
			c.New = v
			out.Changes[field] = c
		}
		// Changes keyed by a field missing from the proposal schema.
		for field := range p.Changes {
			if !p.Schema.Has(field) {
				errs.add(field, ErrUnknownField)
			}
		}
	}
	return out, errs
}
