package graph

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAssemble_Defaults(t *testing.T) {
	g, err := Assemble(
		[]NodeRecord{{ID: "1", Name: "Pole 1"}, {ID: "2"}},
		[]EdgeRecord{{SourceID: "1", TargetID: "2", Polarity: 0.4}},
	)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	n1, ok := g.Node("1")
	if !ok {
		t.Fatal("node 1 missing")
	}
	if n1.Maturity != DefaultMaturity {
		t.Errorf("maturity = %v, want %v", n1.Maturity, DefaultMaturity)
	}
	if n1.EgoState != EgoAdult {
		t.Errorf("ego state = %v, want Adult", n1.EgoState)
	}
	if n1.Role != RoleNone {
		t.Errorf("role = %q, want empty", n1.Role)
	}
	if n1.Metacognition {
		t.Error("metacognition should default to false")
	}
	if len(n1.History) != 0 {
		t.Errorf("history = %v, want empty", n1.History)
	}

	n2, _ := g.Node("2")
	if n2.Name != "2" {
		t.Errorf("unnamed node should fall back to its id, got %q", n2.Name)
	}

	e := g.Edges()[0]
	if e.LightShadow != Light {
		t.Errorf("light_shadow = %q, want light", e.LightShadow)
	}
	if e.Role != "" || e.Consent || e.Description != "" {
		t.Errorf("unexpected edge defaults: %+v", e)
	}
}

func TestAssemble_Clamping(t *testing.T) {
	tests := []struct {
		name         string
		maturity     float64
		polarity     float64
		wantMaturity float64
		wantPolarity float64
	}{
		{"in range", 2.5, 0.3, 2.5, 0.3},
		{"maturity too low", -4, 0, 1, 0},
		{"maturity too high", 11, 0, 5, 0},
		{"polarity too low", 3, -2.5, 3, -1},
		{"polarity too high", 3, 7, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Assemble(
				[]NodeRecord{{ID: "a", Maturity: Float64(tt.maturity)}, {ID: "b"}},
				[]EdgeRecord{{SourceID: "a", TargetID: "b", Polarity: tt.polarity}},
			)
			if err != nil {
				t.Fatalf("Assemble() error = %v", err)
			}
			a, _ := g.Node("a")
			if a.Maturity != tt.wantMaturity {
				t.Errorf("maturity = %v, want %v", a.Maturity, tt.wantMaturity)
			}
			if got := g.Edges()[0].Polarity; got != tt.wantPolarity {
				t.Errorf("polarity = %v, want %v", got, tt.wantPolarity)
			}
		})
	}
}

func TestAssemble_DanglingEdge(t *testing.T) {
	_, err := Assemble(
		[]NodeRecord{{ID: "1"}},
		[]EdgeRecord{{SourceID: "1", TargetID: "99", Polarity: 0.5}},
	)
	if err == nil {
		t.Fatal("expected error for dangling edge")
	}

	var dangling *DanglingEdgeError
	if !errors.As(err, &dangling) {
		t.Fatalf("expected *DanglingEdgeError, got %T: %v", err, err)
	}
	if dangling.Missing != "99" {
		t.Errorf("Missing = %q, want 99", dangling.Missing)
	}
}

func TestAssemble_LastWriteWins(t *testing.T) {
	g, err := Assemble(
		[]NodeRecord{
			{ID: "1", Name: "first"},
			{ID: "2", Name: "other"},
			{ID: "1", Name: "second", Role: "Coach"},
		},
		nil,
	)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if g.NodeCount() != 2 {
		t.Fatalf("NodeCount() = %d, want 2", g.NodeCount())
	}

	nodes := g.Nodes()
	if nodes[0].ID != "1" || nodes[0].Name != "second" || nodes[0].Role != RoleCoach {
		t.Errorf("expected node 1 first with last record's values, got %+v", nodes[0])
	}
}

func TestAssemble_InvalidRecords(t *testing.T) {
	tests := []struct {
		name  string
		nodes []NodeRecord
		edges []EdgeRecord
		kind  string
	}{
		{
			name:  "missing node id",
			nodes: []NodeRecord{{Name: "nobody"}},
			kind:  "node",
		},
		{
			name:  "unknown ego state",
			nodes: []NodeRecord{{ID: "1", EgoState: "Inner Critic"}},
			kind:  "node",
		},
		{
			name:  "unknown role",
			nodes: []NodeRecord{{ID: "1", Role: "Bystander"}},
			kind:  "node",
		},
		{
			name:  "self loop",
			nodes: []NodeRecord{{ID: "1"}},
			edges: []EdgeRecord{{SourceID: "1", TargetID: "1"}},
			kind:  "edge",
		},
		{
			name:  "unknown light_shadow",
			nodes: []NodeRecord{{ID: "1"}, {ID: "2"}},
			edges: []EdgeRecord{{SourceID: "1", TargetID: "2", LightShadow: "dusk"}},
			kind:  "edge",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.nodes, tt.edges)
			var invalid *InvalidRecordError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected *InvalidRecordError, got %v", err)
			}
			if invalid.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", invalid.Kind, tt.kind)
			}
		})
	}
}

func TestAssemble_NeighborsAreSymmetric(t *testing.T) {
	g, err := Assemble(
		[]NodeRecord{{ID: "u"}, {ID: "v"}, {ID: "w"}},
		[]EdgeRecord{
			{SourceID: "u", TargetID: "v"},
			{SourceID: "w", TargetID: "u"},
			{SourceID: "v", TargetID: "u"}, // parallel edge, no duplicate neighbor
		},
	)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if g.EdgeCount() != 3 {
		t.Errorf("EdgeCount() = %d, want 3", g.EdgeCount())
	}
	got := g.Neighbors("u")
	if len(got) != 2 || got[0] != "v" || got[1] != "w" {
		t.Errorf("Neighbors(u) = %v, want [v w]", got)
	}
	if got := g.Neighbors("w"); len(got) != 1 || got[0] != "u" {
		t.Errorf("Neighbors(w) = %v, want [u]", got)
	}
}

func TestRecords_RoundTrip(t *testing.T) {
	nodes := []NodeRecord{
		{ID: "1", Name: "Alex", Maturity: Float64(2), EgoState: "Nurturing Parent", Role: "Rescuer", Metacognition: true, History: "Adult→Rescuer; Adult→Victim"},
		{ID: "2", Name: "Sam", EgoState: "free child", Role: "victim"},
	}
	edges := []EdgeRecord{{SourceID: "1", TargetID: "2", Polarity: -0.3, LightShadow: "Shadow", Role: EdgeRoleVictimRescuer, Consent: true, Description: "caretaking"}}

	g, err := Assemble(nodes, edges)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	gotNodes, gotEdges := g.Records()
	if gotNodes[0].History != "Adult→Rescuer; Adult→Victim" {
		t.Errorf("history = %q", gotNodes[0].History)
	}
	if gotNodes[1].EgoState != "Free Child" || gotNodes[1].Role != "Victim" {
		t.Errorf("enums not canonicalized: %+v", gotNodes[1])
	}
	if gotEdges[0].LightShadow != "shadow" {
		t.Errorf("light_shadow = %q, want shadow", gotEdges[0].LightShadow)
	}

	again, err := Assemble(gotNodes, gotEdges)
	if err != nil {
		t.Fatalf("re-Assemble() error = %v", err)
	}
	n, _ := again.Node("1")
	if len(n.History) != 2 || n.Maturity != 2 || n.EgoState != EgoNurturingParent {
		t.Errorf("round trip lost data: %+v", n)
	}
}

func TestClone_IsDeep(t *testing.T) {
	g, err := Assemble(
		[]NodeRecord{{ID: "1", History: "Adult→Victim"}, {ID: "2"}},
		[]EdgeRecord{{SourceID: "1", TargetID: "2", Description: "x"}},
	)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	c := g.Clone()
	cn, _ := c.Node("1")
	cn.Maturity = 5
	cn.AppendHistory("Adult", "Coach")
	c.Edges()[0].Description += "y"

	n, _ := g.Node("1")
	if n.Maturity != DefaultMaturity || len(n.History) != 1 {
		t.Errorf("clone mutation leaked into original node: %+v", n)
	}
	if g.Edges()[0].Description != "x" {
		t.Errorf("clone mutation leaked into original edge: %q", g.Edges()[0].Description)
	}
}

func TestID_JSON(t *testing.T) {
	var rec EdgeRecord
	if err := json.Unmarshal([]byte(`{"source_id": 1, "target_id": "b", "polarity": 0.2}`), &rec); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if rec.SourceID != "1" || rec.TargetID != "b" {
		t.Errorf("ids = %q, %q", rec.SourceID, rec.TargetID)
	}

	out, err := json.Marshal(NodeRecord{ID: "42", Name: "n"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `{"id":42,"name":"n"}` {
		t.Errorf("Marshal() = %s", out)
	}

	tests := []struct {
		id   ID
		want string
	}{
		{"7", `7`},
		{"-3", `-3`},
		{"007", `"007"`},
		{"+5", `"+5"`},
		{"-0", `"-0"`},
		{"99999999999999999999", `"99999999999999999999"`},
		{"x", `"x"`},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.id)
		if err != nil {
			t.Errorf("Marshal(%q) error = %v", tt.id, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("Marshal(%q) = %s, want %s", tt.id, got, tt.want)
		}
		var back ID
		if err := json.Unmarshal(got, &back); err != nil || back != tt.id {
			t.Errorf("round trip %q = %q, %v", tt.id, back, err)
		}
	}
}

func TestRecords_LeadingZeroIDsMarshal(t *testing.T) {
	for _, id := range []ID{"007", "+5"} {
		g, err := Assemble(
			[]NodeRecord{{ID: id}, {ID: "x"}},
			[]EdgeRecord{{SourceID: id, TargetID: "x", Polarity: 0.2}},
		)
		if err != nil {
			t.Fatalf("Assemble(%q) error = %v", id, err)
		}
		nodes, edges := g.Records()
		out, err := json.Marshal(map[string]any{"nodes": nodes, "edges": edges})
		if err != nil {
			t.Fatalf("Marshal records with id %q: %v", id, err)
		}
		if !json.Valid(out) {
			t.Errorf("invalid JSON for id %q: %s", id, out)
		}
	}
}

func TestEgoStateParsing(t *testing.T) {
	tests := []struct {
		in   string
		want EgoState
	}{
		{"", EgoAdult},
		{"Adult", EgoAdult},
		{"controlling_parent", EgoControllingParent},
		{"adapted-child", EgoAdaptedChild},
		{"  FREE   child ", EgoFreeChild},
	}
	for _, tt := range tests {
		got, err := ParseEgoState(tt.in)
		if err != nil {
			t.Errorf("ParseEgoState(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEgoState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseEgoState("Parent"); err == nil {
		t.Error("expected error for ambiguous ego state")
	}
}

func TestRoleTables(t *testing.T) {
	if RoleVictim.Empowered() != RoleCreator || RoleRescuer.Empowered() != RoleCoach || RolePersecutor.Empowered() != RoleChallenger {
		t.Error("empowerment map is wrong")
	}
	if RoleCoach.Empowered() != RoleCoach || RoleNone.Empowered() != RoleNone {
		t.Error("roles outside the triangle must not change")
	}
	if RoleRescuer.Weight() != 0 || RoleNone.Weight() != 0 || RolePersecutor.Weight() != -1 || RoleChallenger.Weight() != 1 {
		t.Error("role weights are wrong")
	}
	if Light.Toggle() != Shadow || Shadow.Toggle() != Light {
		t.Error("Toggle is wrong")
	}
}
