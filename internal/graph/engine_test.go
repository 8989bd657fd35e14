package graph

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frozen = time.Date(2026, 3, 1, 9, 30, 0, 123_000_000, time.UTC)

func init() {
	// Freeze time for deterministic tests.
	timeNow = func() time.Time { return frozen }
}

func intp(n int) *int { return &n }

// withClock runs fn with timeNow pinned to t.
func withClock(tb testing.TB, t time.Time) {
	tb.Helper()
	prev := timeNow
	timeNow = func() time.Time { return t }
	tb.Cleanup(func() { timeNow = prev })
}

// seeded returns obj-1 linked to del-1 with relationship "obj-1:del-1".
func seeded(t *testing.T) *Graph {
	t.Helper()
	g := Empty()
	AddObjective(g, ObjectiveInput{Title: "Get healthy", Urgency: intp(70)})
	AddDeliverable(g, DeliverableInput{Title: "Schedule checkup", ObjectiveID: "obj-1", Relationship: "Baseline metrics"})
	return g
}

// ─── Empty / Decode ─────────────────────────────────────────────────────────

func TestEmpty_CanonicalJSON(t *testing.T) {
	b, err := json.Marshal(Empty())
	require.NoError(t, err)
	assert.JSONEq(t, `{"objectives":[],"deliverables":[],"relationships":{},"lastUpdated":""}`, string(b))
}

func TestDecode_RejectsNonObjects(t *testing.T) {
	for _, in := range []string{``, `null`, `[]`, `"x"`, `42`, `{broken`} {
		_, err := Decode([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestDecode_DefaultsMissingFields(t *testing.T) {
	g, err := Decode([]byte(`{
		"objectives":[{"id":"obj-3","title":"A"}],
		"deliverables":[{"id":"del-2","title":"B"}]
	}`))
	require.NoError(t, err)

	require.Len(t, g.Objectives, 1)
	o := g.Objectives[0]
	assert.Equal(t, DefaultScore, o.Urgency)
	assert.Equal(t, DefaultImpact, o.Impact)
	assert.Equal(t, []string{}, o.LinkedDeliverables)

	require.Len(t, g.Deliverables, 1)
	d := g.Deliverables[0]
	assert.Equal(t, DefaultScore, d.Feasibility)
	assert.Equal(t, DefaultComplexity, d.Complexity)
	assert.Equal(t, []string{}, d.Blockers)
	assert.Equal(t, []string{}, d.LinkedObjectives)

	assert.Equal(t, map[string]string{}, g.Relationships)
	assert.Nil(t, g.IDCounters)
}

func TestDecode_RepairsMalformedFields(t *testing.T) {
	g, err := Decode([]byte(`{
		"objectives":[
			{"id":"obj-1","title":"Keep me","urgency":"70","linkedDeliverables":["del-1",3,null]},
			{"id":"obj-2","title":"Fractional","urgency":70.5,"impact":5},
			{"id":"obj-3","title":"Whole","urgency":40.0},
			null,
			"stray"
		],
		"deliverables":[{"id":"del-1","title":"Still here","feasibility":true,"blockers":"none","due_before":9}],
		"relationships":{"obj-1:del-1":"x","bad":1},
		"lastUpdated":7,
		"idCounters":{"obj":"many","del":4},
		"extra":true
	}`))
	require.NoError(t, err)

	require.Len(t, g.Objectives, 3)
	o := g.Objectives[0]
	assert.Equal(t, "obj-1", o.ID)
	assert.Equal(t, "Keep me", o.Title)
	assert.Equal(t, DefaultScore, o.Urgency)
	assert.Equal(t, []string{"del-1"}, o.LinkedDeliverables)

	assert.Equal(t, DefaultScore, g.Objectives[1].Urgency)
	assert.Equal(t, DefaultImpact, g.Objectives[1].Impact)
	assert.Equal(t, 40, g.Objectives[2].Urgency)

	require.Len(t, g.Deliverables, 1)
	d := g.Deliverables[0]
	assert.Equal(t, "Still here", d.Title)
	assert.Equal(t, DefaultScore, d.Feasibility)
	assert.Equal(t, []string{}, d.Blockers)
	assert.Equal(t, "", d.DueBefore)

	assert.Equal(t, map[string]string{"obj-1:del-1": "x"}, g.Relationships)
	assert.Equal(t, "", g.LastUpdated)
	assert.Equal(t, &IDCounters{Deliverables: 4}, g.IDCounters)
}

func TestDecode_MalformedTopLevelKeys(t *testing.T) {
	g, err := Decode([]byte(`{"objectives":{},"deliverables":"nope","relationships":[],"idCounters":3}`))
	require.NoError(t, err)
	assert.Equal(t, Empty(), g)
}

func TestDecode_RepairedEntitiesKeepTheirIDs(t *testing.T) {
	g, err := Decode([]byte(`{"objectives":[{"id":"obj-1","title":"Old goal","urgency":"high"}]}`))
	require.NoError(t, err)
	require.Len(t, g.Objectives, 1)

	o := AddObjective(g, ObjectiveInput{Title: "New goal"})
	assert.Equal(t, "obj-2", o.ID)
	assert.Equal(t, "Old goal", g.Objectives[0].Title)
}

// ─── AddObjective ───────────────────────────────────────────────────────────

func TestAddObjective_EmptyGraph(t *testing.T) {
	g := Empty()
	o := AddObjective(g, ObjectiveInput{Title: "Get healthy", Urgency: intp(70)})

	assert.Equal(t, Objective{
		ID:                 "obj-1",
		Title:              "Get healthy",
		Urgency:            70,
		Deadline:           "",
		Impact:             "medium",
		LinkedDeliverables: []string{},
	}, o)
	assert.Equal(t, []Objective{o}, g.Objectives)
	assert.Equal(t, "2026-03-01T09:30:00.123Z", g.LastUpdated)
}

func TestAddObjective_Defaults(t *testing.T) {
	g := Empty()
	o := AddObjective(g, ObjectiveInput{Title: "Defaults"})
	assert.Equal(t, DefaultScore, o.Urgency)
	assert.Equal(t, DefaultImpact, o.Impact)
	assert.Equal(t, "", o.Description)

	o2 := AddObjective(g, ObjectiveInput{Title: "Zero", Urgency: intp(0), Impact: "critical", Deadline: "2026-12-31"})
	assert.Equal(t, 0, o2.Urgency)
	assert.Equal(t, "critical", o2.Impact)
	assert.Equal(t, "2026-12-31", o2.Deadline)
}

func TestAddObjective_IDsMonotonic(t *testing.T) {
	g := Empty()
	for i := 1; i <= 5; i++ {
		o := AddObjective(g, ObjectiveInput{Title: fmt.Sprintf("o%d", i)})
		assert.Equal(t, fmt.Sprintf("obj-%d", i), o.ID)

		// Unrelated deliverable churn must not disturb the objective sequence.
		d := AddDeliverable(g, DeliverableInput{Title: "d", ObjectiveID: "obj-999"})
		_, err := UpdateDeliverable(g, DeliverablePatch{ID: d.ID, Title: "renamed"})
		require.NoError(t, err)
		Delete(g, d.ID)
	}
}

func TestAddObjective_NeverReusesDeletedIDs(t *testing.T) {
	g := Empty()
	AddObjective(g, ObjectiveInput{Title: "a"})
	AddObjective(g, ObjectiveInput{Title: "b"})
	Delete(g, "obj-2")

	o := AddObjective(g, ObjectiveInput{Title: "c"})
	assert.Equal(t, "obj-3", o.ID)
	assert.Equal(t, &IDCounters{Objectives: 3}, g.IDCounters)
}

func TestAddObjective_LegacyGraphFallsBackToMaxSuffix(t *testing.T) {
	g, err := Decode([]byte(`{"objectives":[{"id":"obj-7","title":"x"},{"id":"obj-weird","title":"y"},{"id":"goal-99","title":"z"}]}`))
	require.NoError(t, err)

	o := AddObjective(g, ObjectiveInput{Title: "next"})
	assert.Equal(t, "obj-8", o.ID)
}

func TestSuffix(t *testing.T) {
	tests := []struct {
		id   string
		want int
	}{
		{"obj-1", 1},
		{"obj-42", 42},
		{"obj-", 0},
		{"obj-abc", 0},
		{"obj--3", 0},
		{"del-5", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, suffix(tt.id, ObjectivePrefix), tt.id)
	}
}

// ─── AddDeliverable ─────────────────────────────────────────────────────────

func TestAddDeliverable_LinksBothSides(t *testing.T) {
	g := seeded(t)

	d := g.Deliverables[0]
	assert.Equal(t, "del-1", d.ID)
	assert.Equal(t, []string{"obj-1"}, d.LinkedObjectives)
	assert.Equal(t, []string{}, d.Blockers)
	assert.Equal(t, DefaultScore, d.Feasibility)
	assert.Equal(t, DefaultComplexity, d.Complexity)
	assert.Equal(t, []string{"del-1"}, g.Objectives[0].LinkedDeliverables)
	assert.Equal(t, "Baseline metrics", g.Relationships["obj-1:del-1"])
}

func TestAddDeliverable_DanglingObjectiveTolerated(t *testing.T) {
	g := Empty()
	d := AddDeliverable(g, DeliverableInput{Title: "orphan", ObjectiveID: "obj-9", Relationship: "why"})

	assert.Equal(t, "del-1", d.ID)
	assert.Equal(t, []string{"obj-9"}, d.LinkedObjectives)
	assert.Empty(t, g.Objectives)
	assert.Equal(t, "why", g.Relationships["obj-9:del-1"])
}

func TestAddDeliverable_OptionalDates(t *testing.T) {
	g := Empty()
	plain := AddDeliverable(g, DeliverableInput{Title: "a", ObjectiveID: "obj-1"})
	dated := AddDeliverable(g, DeliverableInput{Title: "b", ObjectiveID: "obj-1", AvailableAfter: "2026-04-01", DueBefore: "2026-05-01"})

	b, err := json.Marshal(plain)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "available_after")
	assert.NotContains(t, string(b), "due_before")

	b, err = json.Marshal(dated)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"available_after":"2026-04-01"`)
	assert.Contains(t, string(b), `"due_before":"2026-05-01"`)
}

func TestAddDeliverable_NoRelationshipWhenEmpty(t *testing.T) {
	g := Empty()
	AddObjective(g, ObjectiveInput{Title: "o"})
	AddDeliverable(g, DeliverableInput{Title: "d", ObjectiveID: "obj-1"})
	assert.Empty(t, g.Relationships)
}

// ─── Update ─────────────────────────────────────────────────────────────────

func TestUpdateDeliverable_ZeroFeasibilityApplies(t *testing.T) {
	g := seeded(t)
	d, err := UpdateDeliverable(g, DeliverablePatch{ID: "del-1", Feasibility: intp(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, d.Feasibility)
	assert.Equal(t, 0, g.Deliverables[0].Feasibility)
	assert.Equal(t, "Schedule checkup", d.Title)
}

func TestUpdateObjective_MergeRules(t *testing.T) {
	g := seeded(t)
	o, err := UpdateObjective(g, ObjectivePatch{ID: "obj-1", Urgency: intp(0), Impact: "high"})
	require.NoError(t, err)
	assert.Equal(t, 0, o.Urgency)
	assert.Equal(t, "high", o.Impact)
	assert.Equal(t, "Get healthy", o.Title, "empty title must not overwrite")
	assert.Equal(t, []string{"del-1"}, o.LinkedDeliverables)

	o, err = UpdateObjective(g, ObjectivePatch{ID: "obj-1", Title: "Stay healthy", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, "Stay healthy", o.Title)
	assert.Equal(t, "d", o.Description)
	assert.Equal(t, 0, o.Urgency, "absent urgency must not reset")
}

func TestUpdate_NotFound(t *testing.T) {
	g := seeded(t)
	withClock(t, frozen.Add(time.Hour))

	_, err := UpdateObjective(g, ObjectivePatch{ID: "obj-2", Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = UpdateDeliverable(g, DeliverablePatch{ID: "del-9", Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "2026-03-01T09:30:00.123Z", g.LastUpdated, "failed updates must not stamp")
}

// ─── Delete ─────────────────────────────────────────────────────────────────

func TestDelete_ObjectiveCascades(t *testing.T) {
	g := seeded(t)
	res := Delete(g, "obj-1")

	assert.Equal(t, DeleteResult{ID: "obj-1", Kind: "objective", Removed: true, RelationshipsRemoved: 1}, res)
	assert.Empty(t, g.Objectives)
	require.Len(t, g.Deliverables, 1)
	assert.Equal(t, "del-1", g.Deliverables[0].ID)
	assert.NotContains(t, g.Deliverables[0].LinkedObjectives, "obj-1")
	assert.NotContains(t, g.Relationships, "obj-1:del-1")
}

func TestDelete_DeliverableCascades(t *testing.T) {
	g := seeded(t)
	AddObjective(g, ObjectiveInput{Title: "second"})
	require.NoError(t, Link(g, LinkInput{ObjectiveID: "obj-2", DeliverableID: "del-1", Relationship: "also"}))

	res := Delete(g, "del-1")
	assert.True(t, res.Removed)
	assert.Equal(t, 2, res.RelationshipsRemoved)
	assert.Empty(t, g.Deliverables)
	for _, o := range g.Objectives {
		assert.Empty(t, o.LinkedDeliverables, o.ID)
	}
	assert.Empty(t, g.Relationships)
}

func TestDelete_UnknownPrefixOnlyStamps(t *testing.T) {
	g := seeded(t)
	before, err := json.Marshal(g)
	require.NoError(t, err)

	later := frozen.Add(time.Minute)
	withClock(t, later)
	res := Delete(g, "task-1")
	assert.Equal(t, DeleteResult{ID: "task-1"}, res)

	assert.Equal(t, later.Format(TimestampLayout), g.LastUpdated)
	g.LastUpdated = frozen.Format(TimestampLayout)
	after, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestDelete_MissingIDIsNotAnError(t *testing.T) {
	g := seeded(t)
	res := Delete(g, "obj-42")
	assert.Equal(t, "objective", res.Kind)
	assert.False(t, res.Removed)
	assert.Len(t, g.Objectives, 1)
	assert.Equal(t, "Baseline metrics", g.Relationships["obj-1:del-1"])
}

// ─── Link / Unlink ──────────────────────────────────────────────────────────

func TestLink_AddsMissingBackReferencesOnce(t *testing.T) {
	g := seeded(t)
	AddDeliverable(g, DeliverableInput{Title: "second", ObjectiveID: "obj-7"})

	in := LinkInput{ObjectiveID: "obj-1", DeliverableID: "del-2", Relationship: "supports"}
	require.NoError(t, Link(g, in))
	require.NoError(t, Link(g, in))

	assert.Equal(t, []string{"del-1", "del-2"}, g.Objectives[0].LinkedDeliverables)
	assert.Equal(t, []string{"obj-7", "obj-1"}, g.Deliverables[1].LinkedObjectives)
	assert.Equal(t, "supports", g.Relationships["obj-1:del-2"])
}

func TestLink_KeepsTextWhenRelationshipEmpty(t *testing.T) {
	g := seeded(t)
	require.NoError(t, Link(g, LinkInput{ObjectiveID: "obj-1", DeliverableID: "del-1"}))
	assert.Equal(t, "Baseline metrics", g.Relationships["obj-1:del-1"])
}

func TestLinkUnlink_NotFound(t *testing.T) {
	g := seeded(t)
	assert.ErrorIs(t, Link(g, LinkInput{ObjectiveID: "obj-2", DeliverableID: "del-1"}), ErrNotFound)
	assert.ErrorIs(t, Link(g, LinkInput{ObjectiveID: "obj-1", DeliverableID: "del-2"}), ErrNotFound)
	assert.ErrorIs(t, Unlink(g, "obj-2", "del-1"), ErrNotFound)
	assert.ErrorIs(t, Unlink(g, "obj-1", "del-2"), ErrNotFound)
}

func TestUnlink_RemovesEdgeAndText(t *testing.T) {
	g := seeded(t)
	require.NoError(t, Unlink(g, "obj-1", "del-1"))

	assert.Empty(t, g.Objectives[0].LinkedDeliverables)
	assert.Empty(t, g.Deliverables[0].LinkedObjectives)
	assert.Empty(t, g.Relationships)
	assert.Len(t, g.Deliverables, 1, "unlink must not delete entities")
}

// ─── Replace ────────────────────────────────────────────────────────────────

func TestReplace_OverwritesAndStamps(t *testing.T) {
	g := seeded(t)
	later := frozen.Add(2 * time.Hour)
	withClock(t, later)

	next := Replace(g, json.RawMessage(`{"objectives":[{"id":"obj-1","title":"fresh"}],"lastUpdated":"ignored"}`))
	require.Len(t, next.Objectives, 1)
	assert.Equal(t, "fresh", next.Objectives[0].Title)
	assert.Empty(t, next.Deliverables)
	assert.Empty(t, next.Relationships)
	assert.Equal(t, later.Format(TimestampLayout), next.LastUpdated)
}

func TestReplace_KeepsHighWaterMarks(t *testing.T) {
	g := seeded(t)
	AddObjective(g, ObjectiveInput{Title: "two"})

	next := Replace(g, json.RawMessage(`{"objectives":[]}`))
	assert.Equal(t, &IDCounters{Objectives: 2, Deliverables: 1}, next.IDCounters)

	o := AddObjective(next, ObjectiveInput{Title: "after replace"})
	assert.Equal(t, "obj-3", o.ID)
	d := AddDeliverable(next, DeliverableInput{Title: "d", ObjectiveID: o.ID})
	assert.Equal(t, "del-2", d.ID)
}

func TestReplace_AnyShapeAccepted(t *testing.T) {
	g := seeded(t)
	for _, raw := range []string{`[]`, `"text"`, `null`, `{"objectives":"bad"}`} {
		next := Replace(g, json.RawMessage(raw))
		assert.Empty(t, next.Objectives, raw)
		assert.NotNil(t, next.Relationships, raw)
	}
}

// ─── Get ────────────────────────────────────────────────────────────────────

func TestGet_NoMutation(t *testing.T) {
	g := seeded(t)
	before, err := json.Marshal(g)
	require.NoError(t, err)

	withClock(t, frozen.Add(time.Hour))
	for range 2 {
		after, err := json.Marshal(g)
		require.NoError(t, err)
		assert.JSONEq(t, string(before), string(after))
	}
}
