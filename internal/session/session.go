// Package session drives a form to completion turn by turn: inspect the
// document for one actor's open issues, ask that actor's agent for a patch
// batch, apply it, and repeat until the form completes, the turn budget
// runs out, or nobody can make progress. The engine packages stay pure;
// all looping and budgeting lives here.

package session

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"formloom/internal/form"
	"formloom/internal/inspect"
	"formloom/internal/logbook"
	"formloom/internal/patch"
	"formloom/internal/plan"
)

// ErrNoActors is returned when a session is started with an empty roster.
var ErrNoActors = errors.New("session: roster has no actors")

// Agent proposes a patch batch for the open issues handed to it. The
// document passed in is a private clone; mutating it has no effect on the
// session.
type Agent interface {
	Propose(ctx context.Context, doc *form.Document, issues []inspect.Issue) ([]patch.Patch, error)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, doc *form.Document, issues []inspect.Issue) ([]patch.Patch, error)

func (f AgentFunc) Propose(ctx context.Context, doc *form.Document, issues []inspect.Issue) ([]patch.Patch, error) {
	return f(ctx, doc, issues)
}

// Roster maps roles to the agents answering for them. An entry under
// form.RoleAny acts as a fallback for roles with no dedicated agent.
type Roster map[form.Role]Agent

// StopReason records why a session ended.
type StopReason string

const (
	// StopComplete means no open issues remain; the form is filled as far
	// as inspection can ask for, required and recommended alike.
	StopComplete StopReason = "complete"
	// StopTurnLimit means the turn budget ran out first.
	StopTurnLimit StopReason = "turn-limit"
	// StopStalled means no actor with ready issues could make progress.
	StopStalled StopReason = "stalled"
	// StopAgentError means an agent returned an error.
	StopAgentError StopReason = "agent-error"
	// StopCanceled means the context was canceled mid-session.
	StopCanceled StopReason = "canceled"
)

// Turn is the record of one completed turn.
type Turn struct {
	Number        int
	Role          form.Role
	IssuesOffered int
	Proposed      int
	Status        patch.Status
	Problems      []patch.Problem
	// Remaining counts open issues across the whole form after the turn.
	Remaining int
	State     inspect.FormState
}

// Transcript is the full record of a session.
type Transcript struct {
	SessionID string
	Turns     []Turn
	Final     inspect.FormState
	Stopped   StopReason
}

// Runner runs sessions against a roster under harness limits. Zero limits
// mean unlimited. Log is optional.
type Runner struct {
	Roster Roster
	Limits form.Limits
	Log    *logbook.Logbook
}

// Run drives the document until a stop condition holds. The input document
// is never mutated; the completed (or best-effort) document is returned
// alongside the transcript. The transcript is valid even when an error is
// returned.
func (r *Runner) Run(ctx context.Context, doc *form.Document) (*form.Document, *Transcript, error) {
	if len(r.Roster) == 0 {
		return doc, nil, ErrNoActors
	}
	cur := doc.Clone()
	tr := &Transcript{SessionID: uuid.NewString()}
	r.Log.Info("session %s started", tr.SessionID)

	rep := inspect.Inspect(cur, inspect.Options{})
	if len(rep.Issues) == 0 {
		tr.Final = rep.State
		tr.Stopped = StopComplete
		return cur, tr, nil
	}

	// Roles that failed to move the form forward since the last applied
	// patch. Cleared whenever the open issue count drops.
	stalled := map[form.Role]bool{}
	lastOpen := len(rep.Issues)

	for turn := 1; r.Limits.MaxTurns <= 0 || turn <= r.Limits.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			tr.Final = rep.State
			tr.Stopped = StopCanceled
			return cur, tr, err
		}

		role, agent, issues, ok := r.pick(cur, stalled)
		if !ok {
			tr.Final = rep.State
			tr.Stopped = StopStalled
			r.Log.Warn("session %s stalled after %d turn(s)", tr.SessionID, len(tr.Turns))
			return cur, tr, nil
		}

		proposed, err := agent.Propose(ctx, cur.Clone(), issues)
		if err != nil {
			tr.Final = rep.State
			tr.Stopped = StopAgentError
			r.Log.Error("session %s: %s agent failed: %v", tr.SessionID, role, err)
			return cur, tr, fmt.Errorf("session: %s agent: %w", role, err)
		}
		if max := r.Limits.MaxPatchesPerTurn; max > 0 && len(proposed) > max {
			proposed = proposed[:max]
		}

		res := patch.Apply(cur, proposed)
		if res.Status != patch.StatusRejected {
			cur = res.Document
		}
		rep = inspect.Inspect(cur, inspect.Options{})

		record := Turn{
			Number:        turn,
			Role:          role,
			IssuesOffered: len(issues),
			Proposed:      len(proposed),
			Status:        res.Status,
			Problems:      res.Problems,
			Remaining:     len(rep.Issues),
			State:         rep.State,
		}
		tr.Turns = append(tr.Turns, record)
		r.Log.Turn(turn, string(role), record.Proposed, string(record.Status), record.Remaining)

		if len(rep.Issues) == 0 {
			tr.Final = rep.State
			tr.Stopped = StopComplete
			r.Log.Info("session %s complete in %d turn(s)", tr.SessionID, len(tr.Turns))
			return cur, tr, nil
		}
		if len(rep.Issues) < lastOpen {
			lastOpen = len(rep.Issues)
			stalled = map[form.Role]bool{}
		} else {
			stalled[role] = true
		}
	}

	tr.Final = rep.State
	tr.Stopped = StopTurnLimit
	r.Log.Warn("session %s hit the turn limit", tr.SessionID)
	return cur, tr, nil
}

// pick chooses the next actor: the first role in plan order that has an
// agent, has ready issues, and has not stalled since the last progress.
func (r *Runner) pick(doc *form.Document, stalled map[form.Role]bool) (form.Role, Agent, []inspect.Issue, bool) {
	for _, role := range rolesInPlanOrder(doc) {
		if stalled[role] {
			continue
		}
		agent, ok := r.agentFor(role)
		if !ok {
			continue
		}
		issues := inspect.Inspect(doc, inspect.Options{
			TargetRoles: []form.Role{role},
			ReadyOnly:   true,
			MaxIssues:   r.Limits.MaxIssuesPerTurn,
		}).Issues
		if len(issues) == 0 {
			continue
		}
		return role, agent, issues, true
	}
	return "", nil, nil, false
}

func (r *Runner) agentFor(role form.Role) (Agent, bool) {
	if role == form.RoleAny {
		for _, candidate := range rosterRoles(r.Roster) {
			if candidate != form.RoleAny {
				return r.Roster[candidate], true
			}
		}
		if a, ok := r.Roster[form.RoleAny]; ok {
			return a, true
		}
		return nil, false
	}
	if a, ok := r.Roster[role]; ok {
		return a, true
	}
	if a, ok := r.Roster[form.RoleAny]; ok {
		return a, true
	}
	return nil, false
}

func rosterRoles(roster Roster) []form.Role {
	out := make([]form.Role, 0, len(roster))
	for role := range roster {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// rolesInPlanOrder walks the execution plan level by level, serial steps
// before parallel batches, and returns the distinct roles in first-seen
// order.
func rolesInPlanOrder(doc *form.Document) []form.Role {
	p := plan.Compute(doc)
	var out []form.Role
	seen := map[form.Role]bool{}
	add := func(role form.Role) {
		if !seen[role] {
			seen[role] = true
			out = append(out, role)
		}
	}
	for _, level := range p.Levels {
		for _, item := range level.LooseSerial {
			add(item.Role)
		}
		for _, batch := range level.ParallelBatches {
			for _, item := range batch.Items {
				add(item.Role)
			}
		}
	}
	return out
}
