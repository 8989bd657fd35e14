package graph

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ─── Inputs ──────────────────────────────────────────────────────────────────

// ObjectiveInput creates an objective. Nil scores and empty enums take
// their defaults.
type ObjectiveInput struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Urgency     *int   `json:"urgency" validate:"omitempty,min=0,max=100"`
	Deadline    string `json:"deadline"`
	Impact      string `json:"impact" validate:"omitempty,oneof=low medium high critical"`
}

// DeliverableInput creates a deliverable under an objective.
type DeliverableInput struct {
	Title          string `json:"title" validate:"required"`
	ObjectiveID    string `json:"objectiveId" validate:"required"`
	Description    string `json:"description"`
	Feasibility    *int   `json:"feasibility" validate:"omitempty,min=0,max=100"`
	Complexity     string `json:"complexity" validate:"omitempty,oneof=low medium high"`
	Relationship   string `json:"relationship"`
	AvailableAfter string `json:"available_after"`
	DueBefore      string `json:"due_before"`
}

// ObjectivePatch updates an objective. String fields apply only when
// non-empty; Urgency applies whenever it is set, including to 0.
type ObjectivePatch struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Urgency     *int   `json:"urgency" validate:"omitempty,min=0,max=100"`
	Deadline    string `json:"deadline"`
	Impact      string `json:"impact" validate:"omitempty,oneof=low medium high critical"`
}

// DeliverablePatch updates a deliverable with the same rule as
// ObjectivePatch; Feasibility is the score that applies when set.
type DeliverablePatch struct {
	ID             string `json:"id" validate:"required"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Feasibility    *int   `json:"feasibility" validate:"omitempty,min=0,max=100"`
	Complexity     string `json:"complexity" validate:"omitempty,oneof=low medium high"`
	AvailableAfter string `json:"available_after"`
	DueBefore      string `json:"due_before"`
}

// LinkInput connects an existing objective and deliverable.
type LinkInput struct {
	ObjectiveID   string `json:"objectiveId" validate:"required"`
	DeliverableID string `json:"deliverableId" validate:"required"`
	Relationship  string `json:"relationship"`
}

// DeleteResult reports what Delete removed.
type DeleteResult struct {
	ID                   string `json:"id"`
	Kind                 string `json:"kind,omitempty"` // "objective", "deliverable" or "" for unknown prefixes
	Removed              bool   `json:"removed"`
	RelationshipsRemoved int    `json:"relationshipsRemoved"`
}

// ─── Operations ──────────────────────────────────────────────────────────────

// Replace overwrites g wholesale with the decoded document. Anything that
// is not a JSON object becomes the empty graph. Id high-water marks never
// move backwards, so ids used before the replace stay retired.
func Replace(g *Graph, raw json.RawMessage) *Graph {
	next, err := Decode(raw)
	if err != nil {
		next = Empty()
	}
	prev := counters(g)
	cur := counters(next)
	next.IDCounters = &IDCounters{
		Objectives:   max(prev.Objectives, cur.Objectives),
		Deliverables: max(prev.Deliverables, cur.Deliverables),
	}
	stamp(next)
	return next
}

// AddObjective appends a new objective and returns a copy of it.
func AddObjective(g *Graph, in ObjectiveInput) Objective {
	o := Objective{
		ID:                 allocateObjectiveID(g),
		Title:              in.Title,
		Description:        in.Description,
		Urgency:            scoreOr(in.Urgency),
		Deadline:           in.Deadline,
		Impact:             stringOr(in.Impact, DefaultImpact),
		LinkedDeliverables: []string{},
	}
	g.Objectives = append(g.Objectives, o)
	stamp(g)
	return o
}

// AddDeliverable appends a new deliverable linked to in.ObjectiveID. The
// objective does not have to exist: the forward link is stored either way
// and the back-link is only written when there is something to write it to.
func AddDeliverable(g *Graph, in DeliverableInput) Deliverable {
	d := Deliverable{
		ID:               allocateDeliverableID(g),
		Title:            in.Title,
		Description:      in.Description,
		Feasibility:      scoreOr(in.Feasibility),
		Complexity:       stringOr(in.Complexity, DefaultComplexity),
		Blockers:         []string{},
		LinkedObjectives: []string{in.ObjectiveID},
		AvailableAfter:   in.AvailableAfter,
		DueBefore:        in.DueBefore,
	}
	g.Deliverables = append(g.Deliverables, d)

	if o := g.FindObjective(in.ObjectiveID); o != nil {
		o.LinkedDeliverables = append(o.LinkedDeliverables, d.ID)
	}
	if in.Relationship != "" {
		g.Relationships[RelationshipKey(in.ObjectiveID, d.ID)] = in.Relationship
	}
	stamp(g)
	return d
}

// UpdateObjective merges p into the objective with id p.ID.
func UpdateObjective(g *Graph, p ObjectivePatch) (Objective, error) {
	o := g.FindObjective(p.ID)
	if o == nil {
		return Objective{}, fmt.Errorf("objective %q: %w", p.ID, ErrNotFound)
	}
	setString(&o.Title, p.Title)
	setString(&o.Description, p.Description)
	setString(&o.Deadline, p.Deadline)
	setString(&o.Impact, p.Impact)
	if p.Urgency != nil {
		o.Urgency = *p.Urgency
	}
	stamp(g)
	return *o, nil
}

// UpdateDeliverable merges p into the deliverable with id p.ID.
func UpdateDeliverable(g *Graph, p DeliverablePatch) (Deliverable, error) {
	d := g.FindDeliverable(p.ID)
	if d == nil {
		return Deliverable{}, fmt.Errorf("deliverable %q: %w", p.ID, ErrNotFound)
	}
	setString(&d.Title, p.Title)
	setString(&d.Description, p.Description)
	setString(&d.Complexity, p.Complexity)
	setString(&d.AvailableAfter, p.AvailableAfter)
	setString(&d.DueBefore, p.DueBefore)
	if p.Feasibility != nil {
		d.Feasibility = *p.Feasibility
	}
	stamp(g)
	return *d, nil
}

// Delete removes the entity with the given id and every edge that touches
// it. Ids without a known prefix, and ids that are not present, only
// refresh the timestamp.
func Delete(g *Graph, id string) DeleteResult {
	res := DeleteResult{ID: id}
	switch {
	case strings.HasPrefix(id, ObjectivePrefix):
		res.Kind = "objective"
		before := len(g.Objectives)
		g.Objectives = slices.DeleteFunc(g.Objectives, func(o Objective) bool { return o.ID == id })
		res.Removed = len(g.Objectives) != before
		for i := range g.Deliverables {
			g.Deliverables[i].LinkedObjectives = without(g.Deliverables[i].LinkedObjectives, id)
		}
		res.RelationshipsRemoved = dropRelationships(g, func(objID, _ string) bool { return objID == id })

	case strings.HasPrefix(id, DeliverablePrefix):
		res.Kind = "deliverable"
		before := len(g.Deliverables)
		g.Deliverables = slices.DeleteFunc(g.Deliverables, func(d Deliverable) bool { return d.ID == id })
		res.Removed = len(g.Deliverables) != before
		for i := range g.Objectives {
			g.Objectives[i].LinkedDeliverables = without(g.Objectives[i].LinkedDeliverables, id)
		}
		res.RelationshipsRemoved = dropRelationships(g, func(_, delID string) bool { return delID == id })
	}
	stamp(g)
	return res
}

// Link records an edge between an existing objective and deliverable. Back
// references already present are left alone; a non-empty relationship
// overwrites the stored text.
func Link(g *Graph, in LinkInput) error {
	o, d, err := endpoints(g, in.ObjectiveID, in.DeliverableID)
	if err != nil {
		return err
	}
	if !slices.Contains(o.LinkedDeliverables, d.ID) {
		o.LinkedDeliverables = append(o.LinkedDeliverables, d.ID)
	}
	if !slices.Contains(d.LinkedObjectives, o.ID) {
		d.LinkedObjectives = append(d.LinkedObjectives, o.ID)
	}
	if in.Relationship != "" {
		g.Relationships[RelationshipKey(o.ID, d.ID)] = in.Relationship
	}
	stamp(g)
	return nil
}

// Unlink removes the edge between an objective and a deliverable, including
// its relationship text.
func Unlink(g *Graph, objectiveID, deliverableID string) error {
	o, d, err := endpoints(g, objectiveID, deliverableID)
	if err != nil {
		return err
	}
	o.LinkedDeliverables = without(o.LinkedDeliverables, d.ID)
	d.LinkedObjectives = without(d.LinkedObjectives, o.ID)
	delete(g.Relationships, RelationshipKey(o.ID, d.ID))
	stamp(g)
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func endpoints(g *Graph, objectiveID, deliverableID string) (*Objective, *Deliverable, error) {
	o := g.FindObjective(objectiveID)
	if o == nil {
		return nil, nil, fmt.Errorf("objective %q: %w", objectiveID, ErrNotFound)
	}
	d := g.FindDeliverable(deliverableID)
	if d == nil {
		return nil, nil, fmt.Errorf("deliverable %q: %w", deliverableID, ErrNotFound)
	}
	return o, d, nil
}

func allocateObjectiveID(g *Graph) string {
	c := counters(g)
	n := c.Objectives
	for _, o := range g.Objectives {
		n = max(n, suffix(o.ID, ObjectivePrefix))
	}
	n++
	c.Objectives = n
	g.IDCounters = &c
	return ObjectivePrefix + strconv.Itoa(n)
}

func allocateDeliverableID(g *Graph) string {
	c := counters(g)
	n := c.Deliverables
	for _, d := range g.Deliverables {
		n = max(n, suffix(d.ID, DeliverablePrefix))
	}
	n++
	c.Deliverables = n
	g.IDCounters = &c
	return DeliverablePrefix + strconv.Itoa(n)
}

func counters(g *Graph) IDCounters {
	if g.IDCounters == nil {
		return IDCounters{}
	}
	return *g.IDCounters
}

// suffix returns the numeric part of id, or 0 when id is not of the form
// prefix + positive integer.
func suffix(id, prefix string) int {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func dropRelationships(g *Graph, match func(objectiveID, deliverableID string) bool) int {
	removed := 0
	for key := range g.Relationships {
		objID, delID, _ := strings.Cut(key, ":")
		if match(objID, delID) {
			delete(g.Relationships, key)
			removed++
		}
	}
	return removed
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(s string) bool { return s == id })
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func scoreOr(v *int) int {
	if v == nil {
		return DefaultScore
	}
	return *v
}
