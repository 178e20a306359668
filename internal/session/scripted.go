package session

import (
	"context"

	"formloom/internal/form"
	"formloom/internal/inspect"
	"formloom/internal/patch"
)

// ScriptedAgent replays a fixed sequence of patch batches, one batch per
// turn, then proposes nothing. Useful for command-driven actors and tests.
type ScriptedAgent struct {
	Batches [][]patch.Patch
	next    int
}

func (s *ScriptedAgent) Propose(ctx context.Context, doc *form.Document, issues []inspect.Issue) ([]patch.Patch, error) {
	if s.next >= len(s.Batches) {
		return nil, nil
	}
	batch := s.Batches[s.next]
	s.next++
	return batch, nil
}
