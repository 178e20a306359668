// Package plan computes the execution plan for a document's remaining work:
// which fields to tackle in what order, partitioned into serial steps and
// batches that disjoint actors can work in parallel. The plan is a logical
// scheduling recommendation; the engine never executes anything itself.

package plan

import (
	"sort"

	"formloom/internal/form"
	"formloom/internal/inspect"
)

// Item is one unit of work: the remaining fields of a single group that
// share a grouping key at one order level.
type Item struct {
	GroupID string
	Role    form.Role
	// Key is the batch grouping key: the declared parallel tag when one
	// exists, otherwise the role.
	Key      string
	FieldIDs []string
	// Level is the order level the item belongs to.
	Level int

	seq    int
	serial bool
}

// Batch is a set of items one actor can take while other batches at the
// same level run in parallel.
type Batch struct {
	Key   string
	Level int
	Items []Item
}

// Level is all the planned work at one order level, visited ascending.
type Level struct {
	Order           int
	LooseSerial     []Item
	ParallelBatches []Batch
}

// Plan is the full execution plan. LooseSerial and ParallelBatches flatten
// the per-level slices in level order for callers that only need the
// sequence.
type Plan struct {
	Levels          []Level
	LooseSerial     []Item
	ParallelBatches []Batch
}

// Empty reports whether no work remains.
func (p Plan) Empty() bool {
	return len(p.Levels) == 0
}

// RemainingFields counts every field the plan still covers.
func (p Plan) RemainingFields() int {
	n := 0
	for _, item := range p.LooseSerial {
		n += len(item.FieldIDs)
	}
	for _, batch := range p.ParallelBatches {
		for _, item := range batch.Items {
			n += len(item.FieldIDs)
		}
	}
	return n
}

// Compute derives the execution plan for a document's remaining fields. The
// document must already have passed structural validation; Compute does not
// re-validate. For a fixed document the plan is fully deterministic, and
// recomputing after fields are answered yields a strictly smaller plan.
func Compute(doc *form.Document) Plan {
	remaining := remainingFields(doc)
	if len(remaining) == 0 {
		return Plan{}
	}
	levels := effectiveLevels(remaining)
	items := buildItems(doc, remaining, levels)
	markSerialConflicts(items, remaining, levels)
	return assemble(items)
}

// effectiveLevels assigns each remaining field its scheduling level: the
// declared order, lifted to the prerequisite's level when a dependency
// points at a later one, so a field is never planned before the field it
// waits on. Chains are followed; a cycle falls back to declared order.
func effectiveLevels(remaining map[string]form.Field) map[string]int {
	levels := make(map[string]int, len(remaining))
	var visit func(id string, path map[string]bool) int
	visit = func(id string, path map[string]bool) int {
		if lvl, ok := levels[id]; ok {
			return lvl
		}
		f := remaining[id]
		lvl := f.Order
		if dep, ok := remaining[f.DependsOn]; ok && !path[id] {
			path[id] = true
			if dl := visit(dep.ID, path); dl > lvl {
				lvl = dl
			}
		}
		levels[id] = lvl
		return lvl
	}
	for id := range remaining {
		visit(id, map[string]bool{})
	}
	return levels
}

// remainingFields maps field id to its schema entry for every field the
// inspection engine still reports an issue for, blocked ones included.
func remainingFields(doc *form.Document) map[string]form.Field {
	report := inspect.Inspect(doc, inspect.Options{})
	out := make(map[string]form.Field, len(report.Issues))
	for _, issue := range report.Issues {
		if issue.Scope != inspect.ScopeField {
			continue
		}
		if f, _, ok := doc.Schema.Field(issue.Ref); ok {
			out[f.ID] = f
		}
	}
	return out
}

// buildItems folds remaining fields into items in declaration order: one
// item per (group, level, key) run.
func buildItems(doc *form.Document, remaining map[string]form.Field, levels map[string]int) []*Item {
	type itemKey struct {
		group string
		key   string
		level int
	}
	var items []*Item
	index := map[itemKey]*Item{}
	for _, g := range doc.Schema.Groups {
		for _, f := range g.Fields {
			if _, ok := remaining[f.ID]; !ok {
				continue
			}
			key := groupingKey(g, f)
			level := levels[f.ID]
			if f.Serial {
				// An explicitly non-parallelizable field is its own
				// one-at-a-time item.
				items = append(items, &Item{
					GroupID:  g.ID,
					Role:     f.Role,
					Key:      key,
					Level:    level,
					FieldIDs: []string{f.ID},
					seq:      f.Seq,
					serial:   true,
				})
				continue
			}
			id := itemKey{group: g.ID, key: key, level: level}
			item, ok := index[id]
			if !ok {
				item = &Item{
					GroupID: g.ID,
					Role:    f.Role,
					Key:     key,
					Level:   level,
					seq:     f.Seq,
					serial:  g.Serial,
				}
				index[id] = item
				items = append(items, item)
			}
			item.FieldIDs = append(item.FieldIDs, f.ID)
		}
	}
	return items
}

func groupingKey(g form.Group, f form.Field) string {
	if f.ParallelTag != "" {
		return f.ParallelTag
	}
	if g.ParallelTag != "" {
		return g.ParallelTag
	}
	return string(f.Role)
}

// markSerialConflicts serializes items linked by a dependency chain that
// lands inside one level, level lifting included. Dependencies crossing
// distinct levels are already sequenced by the level ordering itself.
func markSerialConflicts(items []*Item, remaining map[string]form.Field, levels map[string]int) {
	owner := map[string]*Item{}
	for _, item := range items {
		for _, id := range item.FieldIDs {
			owner[id] = item
		}
	}
	for _, f := range remaining {
		if f.DependsOn == "" {
			continue
		}
		dep, ok := remaining[f.DependsOn]
		if !ok || levels[dep.ID] != levels[f.ID] {
			continue
		}
		from, to := owner[f.ID], owner[dep.ID]
		if from == nil || to == nil || from == to {
			continue
		}
		from.serial = true
		to.serial = true
	}
}

// assemble orders items into levels. Within a level, serial items go to
// LooseSerial in declaration order; the rest form one parallel batch per
// grouping key. A level with a single key stays loose-serial: one actor
// works alone, one field at a time.
func assemble(items []*Item) Plan {
	byLevel := map[int][]*Item{}
	var orders []int
	for _, item := range items {
		if _, ok := byLevel[item.Level]; !ok {
			orders = append(orders, item.Level)
		}
		byLevel[item.Level] = append(byLevel[item.Level], item)
	}
	sort.Ints(orders)
	var plan Plan
	for _, order := range orders {
		levelItems := byLevel[order]
		sort.SliceStable(levelItems, func(i, j int) bool {
			return levelItems[i].seq < levelItems[j].seq
		})
		level := Level{Order: order}
		var parallel []*Item
		keys := map[string]struct{}{}
		for _, item := range levelItems {
			if item.serial {
				level.LooseSerial = append(level.LooseSerial, *item)
				continue
			}
			parallel = append(parallel, item)
			keys[item.Key] = struct{}{}
		}
		if len(keys) < 2 {
			// No disjoint actors to fan out to.
			for _, item := range parallel {
				level.LooseSerial = append(level.LooseSerial, *item)
			}
			sort.SliceStable(level.LooseSerial, func(i, j int) bool {
				return level.LooseSerial[i].seq < level.LooseSerial[j].seq
			})
		} else {
			batchIndex := map[string]int{}
			for _, item := range parallel {
				idx, ok := batchIndex[item.Key]
				if !ok {
					idx = len(level.ParallelBatches)
					batchIndex[item.Key] = idx
					level.ParallelBatches = append(level.ParallelBatches, Batch{Key: item.Key, Level: order})
				}
				level.ParallelBatches[idx].Items = append(level.ParallelBatches[idx].Items, *item)
			}
		}
		plan.Levels = append(plan.Levels, level)
		plan.LooseSerial = append(plan.LooseSerial, level.LooseSerial...)
		plan.ParallelBatches = append(plan.ParallelBatches, level.ParallelBatches...)
	}
	return plan
}
