package reconcile

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Segment is one run of a character diff.
type Segment struct {
	Op   string `json:"op"` // "equal", "insert" or "delete"
	Text string `json:"text"`
}

// FieldDiff shows the operator what confirming a proposal would change.
type FieldDiff struct {
	Field    string    `json:"field"`
	Old      string    `json:"old"`
	New      string    `json:"new"`
	Changed  bool      `json:"changed"`
	Segments []Segment `json:"segments,omitempty"`
}

// Review lays out a proposal field by field in schema order. It never writes.
func Review(p *Proposal) []FieldDiff {
	dmp := diffmatchpatch.New()
	var out []FieldDiff

	add := func(field, old, next string) {
		fd := FieldDiff{Field: field, Old: old, New: next, Changed: !sameValue(old, next)}
		if fd.Changed {
			diffs := dmp.DiffMain(old, next, false)
			diffs = dmp.DiffCleanupSemantic(diffs)
			for _, d := range diffs {
				fd.Segments = append(fd.Segments, Segment{Op: opName(d.Type), Text: d.Text})
			}
		}
		out = append(out, fd)
	}

	for i, field := range p.Schema {
		switch p.Kind {
		case KindCreate:
			v := p.Fields[field]
			if i == 0 {
				v = p.Identity
			}
			add(field, "", v)
		case KindUpdate:
			if c, ok := p.Changes[field]; ok {
				add(field, c.Old, c.New)
			}
		}
	}
	return out
}

func opName(op diffmatchpatch.Operation) string {
	switch op {
	case diffmatchpatch.DiffInsert:
		return "insert"
	case diffmatchpatch.DiffDelete:
		return "delete"
	}
	return "equal"
}
