package syncplan

import (
	"context"
	"path/filepath"

	"fansync.io/fansync/pkg/pathindex"
)

// Plan is the materialized outcome of classifying every scanned entry
// against every destination root.
type Plan struct {
	// Tasks lists the copies to perform, in discovery order: all destinations
	// for one entry before the next entry.
	Tasks []CopyTask

	// ParentDirs holds the deduplicated set of destination parent directories
	// the tasks will write into. Creation is idempotent, so the set is an
	// optimization for reporting, not a correctness requirement.
	ParentDirs []string
}

// Planner builds copy plans for a fixed list of destination roots.
type Planner struct {
	destinations []string
}

// NewPlanner creates a Planner for the given destination roots.
func NewPlanner(destinations []string) *Planner {
	return &Planner{destinations: destinations}
}

// Add classifies one scanned entry against every destination and appends a
// CopyTask per stale destination. Each destination is judged on its own
// merits: a file fresh in one destination may still be stale in another.
// The context is polled between destination iterations.
func (p *Planner) Add(ctx context.Context, plan *Plan, entry pathindex.Entry, seenDirs map[string]struct{}) error {
	for _, dest := range p.destinations {
		if err := ctx.Err(); err != nil {
			return err
		}

		dstAbsPath := filepath.Join(dest, entry.RelPath)
		if !NeedsCopy(entry.ModTime, dstAbsPath) {
			continue
		}

		parent := filepath.Dir(dstAbsPath)
		if _, ok := seenDirs[parent]; !ok {
			seenDirs[parent] = struct{}{}
			plan.ParentDirs = append(plan.ParentDirs, parent)
		}

		plan.Tasks = append(plan.Tasks, CopyTask{
			RelPath:    entry.RelPath,
			SrcAbsPath: entry.AbsPath,
			DstAbsPath: dstAbsPath,
			SrcModTime: entry.ModTime,
			SrcMode:    entry.Mode,
			SrcSize:    entry.Size,
		})
	}
	return nil
}

// Build walks the provided entries and produces the full plan. It is the
// convenience path used by tests and by callers that already hold a
// materialized entry list.
func (p *Planner) Build(ctx context.Context, entries []pathindex.Entry) (*Plan, error) {
	plan := &Plan{}
	seenDirs := make(map[string]struct{})
	for _, entry := range entries {
		if err := p.Add(ctx, plan, entry, seenDirs); err != nil {
			return nil, err
		}
	}
	return plan, nil
}
