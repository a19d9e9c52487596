package reconcile

import (
	"context"
	"fmt"
	"strings"

	"catalog_agent/pkg/core/catalog"
	"catalog_agent/pkg/core/store"

	"go.uber.org/zap"
)

// Apply writes a confirmed proposal and returns the number of fields written.
//
// The live catalog is read again before anything is written, so duplicates
// created elsewhere since the proposal was built are still rejected. Updates
// resolve each cell from a fresh grid scan right before writing it and skip
// cells that already hold the new value; applying the same proposal twice
// writes nothing the second time.
func (e *Engine) Apply(ctx context.Context, p *Proposal, conf Confirmation) (int, error) {
	if !conf.Confirmed || conf.ProposalID != p.ID {
		return 0, ErrNotConfirmed
	}

	edited, err := p.WithEdits(conf.Edits)
	if err != nil {
		return 0, err
	}

	snap, err := e.cache.Fresh(ctx)
	if err != nil {
		return 0, err
	}

	ready, errs := e.normalize(edited, snap)
	if len(errs) > 0 {
		return 0, errs
	}

	switch ready.Kind {
	case KindCreate:
		return e.applyCreate(ctx, ready)
	case KindUpdate:
		return e.applyUpdate(ctx, ready)
	}
	return 0, fmt.Errorf("unknown proposal kind %q", ready.Kind)
}

func (e *Engine) applyCreate(ctx context.Context, p *Proposal) (int, error) {
	row := p.Row()
	if err := e.cache.Store().AppendRow(ctx, row); err != nil {
		return 0, fmt.Errorf("append %q: %w", p.Identity, err)
	}
	e.cache.Invalidate()

	written := 0
	for _, v := range row {
		if v != "" {
			written++
		}
	}
	e.logger.Info("catalog entry created",
		zap.String("proposal", p.ID),
		zap.String("identity", p.Identity),
		zap.String("origin", string(p.Origin)),
		zap.Int("fields", written))
	e.record(ctx, store.JournalEntry{
		ProposalID: p.ID,
		Action:     string(KindCreate),
		Identity:   p.Identity,
		NewValue:   strings.Join(row, " | "),
	})
	return written, nil
}

func (e *Engine) applyUpdate(ctx context.Context, p *Proposal) (written int, err error) {
	st := e.cache.Store()
	defer func() {
		if written > 0 {
			e.cache.Invalidate()
		}
	}()

	for _, field := range p.Schema {
		c, ok := p.Changes[field]
		if !ok || sameValue(c.Old, c.New) {
			continue
		}

		grid, err := st.ReadRawGrid(ctx)
		if err != nil {
			return written, &PartialWriteError{Written: written, Field: field, Err: err}
		}
		row, col, err := catalog.LocateCell(grid, p.Identity, field)
		if err != nil {
			return written, &PartialWriteError{Written: written, Field: field, Err: err}
		}

		live := cellAt(grid, row, col)
		if sameValue(live, c.New) {
			continue
		}
		if !sameValue(live, c.Old) {
			e.logger.Warn("stored value changed since the proposal was built",
				zap.String("identity", p.Identity),
				zap.String("field", field))
		}

		if err := st.WriteCell(ctx, row, col, c.New); err != nil {
			return written, &PartialWriteError{Written: written, Field: field, Err: err}
		}
		written++
		e.record(ctx, store.JournalEntry{
			ProposalID: p.ID,
			Action:     string(KindUpdate),
			Identity:   p.Identity,
			Field:      field,
			OldValue:   live,
			NewValue:   c.New,
		})
	}

	e.logger.Info("catalog entry updated",
		zap.String("proposal", p.ID),
		zap.String("identity", p.Identity),
		zap.String("origin", string(p.Origin)),
		zap.Int("written", written))
	return written, nil
}

// record writes to the journal when one is configured. Journal failures do not
// undo or fail a committed catalog write.
func (e *Engine) record(ctx context.Context, entry store.JournalEntry) {
	if e.journal == nil {
		return
	}
	entry.AppliedAt = e.now()
	if err := e.journal.Record(ctx, entry); err != nil {
		e.logger.Warn("journal write failed", zap.String("proposal", entry.ProposalID), zap.Error(err))
	}
}

// cellAt reads a 1-based cell, treating cells past the end of a row as empty.
func cellAt(grid [][]string, row, col int) string {
	if row < 1 || row > len(grid) {
		return ""
	}
	cells := grid[row-1]
	if col < 1 || col > len(cells) {
		return ""
	}
	return cells[col-1]
}
