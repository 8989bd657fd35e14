// Package graph holds the objective/deliverable graph and the mutation
// engine that keeps it consistent.
//
// The engine is pure and synchronous: every operation takes a fully
// materialized *Graph, edits it in place and stamps LastUpdated. Loading
// and persisting the graph is the caller's job (see package codec).
package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Default values applied to new entities and to entities decoded from a
// document that omits them.
const (
	DefaultScore      = 50
	DefaultImpact     = "medium"
	DefaultComplexity = "medium"

	ObjectivePrefix   = "obj-"
	DeliverablePrefix = "del-"
)

// ErrNotFound is returned when an operation targets an id that is not in
// the graph.
var ErrNotFound = errors.New("graph: not found")

// ─── Types ───────────────────────────────────────────────────────────────────

// Objective is a goal the user wants to reach.
type Objective struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Urgency            int      `json:"urgency"`
	Deadline           string   `json:"deadline"`
	Impact             string   `json:"impact"`
	LinkedDeliverables []string `json:"linkedDeliverables"`
}

// Deliverable is a concrete action that moves one or more objectives forward.
type Deliverable struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Feasibility      int      `json:"feasibility"`
	Complexity       string   `json:"complexity"`
	Blockers         []string `json:"blockers"`
	LinkedObjectives []string `json:"linkedObjectives"`
	AvailableAfter   string   `json:"available_after,omitempty"`
	DueBefore        string   `json:"due_before,omitempty"`
}

// IDCounters are the highest numeric suffixes ever allocated. They only grow,
// so an id freed by a delete is never handed out again.
type IDCounters struct {
	Objectives   int `json:"obj"`
	Deliverables int `json:"del"`
}

// Graph is one user's whole document.
type Graph struct {
	Objectives    []Objective       `json:"objectives"`
	Deliverables  []Deliverable     `json:"deliverables"`
	Relationships map[string]string `json:"relationships"`
	LastUpdated   string            `json:"lastUpdated"`
	IDCounters    *IDCounters       `json:"idCounters,omitempty"`
}

// Empty returns the canonical empty graph.
func Empty() *Graph {
	return &Graph{
		Objectives:    []Objective{},
		Deliverables:  []Deliverable{},
		Relationships: map[string]string{},
	}
}

// RelationshipKey builds the relationships map key for an edge.
func RelationshipKey(objectiveID, deliverableID string) string {
	return objectiveID + ":" + deliverableID
}

// FindObjective returns a pointer into g.Objectives, or nil.
func (g *Graph) FindObjective(id string) *Objective {
	for i := range g.Objectives {
		if g.Objectives[i].ID == id {
			return &g.Objectives[i]
		}
	}
	return nil
}

// FindDeliverable returns a pointer into g.Deliverables, or nil.
func (g *Graph) FindDeliverable(id string) *Deliverable {
	for i := range g.Deliverables {
		if g.Deliverables[i].ID == id {
			return &g.Deliverables[i]
		}
	}
	return nil
}

// Normalize replaces nil collections with empty ones so the graph always
// serializes with [] and {} rather than null.
func (g *Graph) Normalize() {
	if g.Objectives == nil {
		g.Objectives = []Objective{}
	}
	if g.Deliverables == nil {
		g.Deliverables = []Deliverable{}
	}
	if g.Relationships == nil {
		g.Relationships = map[string]string{}
	}
	for i := range g.Objectives {
		if g.Objectives[i].LinkedDeliverables == nil {
			g.Objectives[i].LinkedDeliverables = []string{}
		}
	}
	for i := range g.Deliverables {
		d := &g.Deliverables[i]
		if d.LinkedObjectives == nil {
			d.LinkedObjectives = []string{}
		}
		if d.Blockers == nil {
			d.Blockers = []string{}
		}
	}
}

// ─── Decoding ────────────────────────────────────────────────────────────────

// Decode parses a graph document leniently. The document must be a JSON
// object. Every other shape problem is repaired rather than rejected: a
// malformed top-level key takes its default, an entity field of the wrong
// type takes that field's default, and relationship or link entries that
// are not strings are skipped. Entities are only dropped when the element
// is not an object at all.
func Decode(raw []byte) (*Graph, error) {
	raw = bytes.TrimSpace(raw)
	var doc fields
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("graph: decode: %w", err)
	}
	if doc == nil {
		return nil, errors.New("graph: decode: document is null")
	}

	g := Empty()
	for _, f := range doc.objects("objectives") {
		g.Objectives = append(g.Objectives, decodeObjective(f))
	}
	for _, f := range doc.objects("deliverables") {
		g.Deliverables = append(g.Deliverables, decodeDeliverable(f))
	}
	if rel, ok := doc.object("relationships"); ok {
		for key := range rel {
			var text string
			if rel.str(key, &text) {
				g.Relationships[key] = text
			}
		}
	}
	doc.str("lastUpdated", &g.LastUpdated)
	if c, ok := doc.object("idCounters"); ok {
		var counters IDCounters
		c.integer("obj", &counters.Objectives)
		c.integer("del", &counters.Deliverables)
		if counters.Objectives > 0 || counters.Deliverables > 0 {
			g.IDCounters = &counters
		}
	}
	g.Normalize()
	return g, nil
}

func decodeObjective(f fields) Objective {
	o := Objective{Urgency: DefaultScore, Impact: DefaultImpact}
	f.str("id", &o.ID)
	f.str("title", &o.Title)
	f.str("description", &o.Description)
	f.integer("urgency", &o.Urgency)
	f.str("deadline", &o.Deadline)
	f.str("impact", &o.Impact)
	o.LinkedDeliverables = f.strings("linkedDeliverables")
	return o
}

func decodeDeliverable(f fields) Deliverable {
	d := Deliverable{Feasibility: DefaultScore, Complexity: DefaultComplexity}
	f.str("id", &d.ID)
	f.str("title", &d.Title)
	f.str("description", &d.Description)
	f.integer("feasibility", &d.Feasibility)
	f.str("complexity", &d.Complexity)
	d.Blockers = f.strings("blockers")
	d.LinkedObjectives = f.strings("linkedObjectives")
	f.str("available_after", &d.AvailableAfter)
	f.str("due_before", &d.DueBefore)
	return d
}

// fields is one JSON object with its values left undecoded. Each accessor
// writes to dst only when the value has the expected type.
type fields map[string]json.RawMessage

func (f fields) str(key string, dst *string) bool {
	v, ok := f[key]
	if !ok {
		return false
	}
	var s string
	if json.Unmarshal(v, &s) != nil || isNull(v) {
		return false
	}
	*dst = s
	return true
}

// integer accepts any JSON number with no fractional part.
func (f fields) integer(key string, dst *int) {
	v, ok := f[key]
	if !ok {
		return
	}
	var n float64
	if json.Unmarshal(v, &n) != nil || isNull(v) {
		return
	}
	if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
		return
	}
	*dst = int(n)
}

func (f fields) strings(key string) []string {
	var elems []json.RawMessage
	if v, ok := f[key]; !ok || json.Unmarshal(v, &elems) != nil {
		return []string{}
	}
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		var s string
		if !isNull(e) && json.Unmarshal(e, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

func (f fields) object(key string) (fields, bool) {
	v, ok := f[key]
	if !ok {
		return nil, false
	}
	var obj fields
	if json.Unmarshal(v, &obj) != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func (f fields) objects(key string) []fields {
	var elems []json.RawMessage
	if v, ok := f[key]; !ok || json.Unmarshal(v, &elems) != nil {
		return nil
	}
	out := make([]fields, 0, len(elems))
	for _, e := range elems {
		var obj fields
		if json.Unmarshal(e, &obj) == nil && obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
