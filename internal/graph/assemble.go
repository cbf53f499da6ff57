package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DanglingEdgeError reports an edge whose endpoint is not in the node set.
type DanglingEdgeError struct {
	Index    int // position of the edge record in the input
	SourceID ID
	TargetID ID
	Missing  ID
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("edge %d (%s -> %s) references unknown node %s", e.Index, e.SourceID, e.TargetID, e.Missing)
}

// InvalidRecordError reports a record that fails structural validation.
type InvalidRecordError struct {
	Kind   string // "node" or "edge"
	Index  int
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid %s record %d: %s", e.Kind, e.Index, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("egostate", func(fl validator.FieldLevel) bool {
		_, err := ParseEgoState(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("noderole", func(fl validator.FieldLevel) bool {
		_, err := ParseRole(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("lightshadow", func(fl validator.FieldLevel) bool {
		_, err := ParseLightShadow(fl.Field().String())
		return err == nil
	})
	return v
}

// validationReason flattens validator errors into one readable line.
func validationReason(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "nefield":
			msgs = append(msgs, field+" must differ from "+strings.ToLower(fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "egostate", "noderole", "lightshadow":
			msgs = append(msgs, fmt.Sprintf("%s has unknown value %q", field, fe.Value()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// NewNode materializes every default for a node record. The record must
// already have passed validation.
func NewNode(r NodeRecord) *Node {
	maturity := DefaultMaturity
	if r.Maturity != nil {
		maturity = *r.Maturity
	}
	ego, _ := ParseEgoState(r.EgoState)
	role, _ := ParseRole(r.Role)
	name := r.Name
	if name == "" {
		name = string(r.ID)
	}
	return &Node{
		ID:            r.ID,
		Name:          name,
		Maturity:      ClampMaturity(maturity),
		EgoState:      ego,
		Role:          role,
		Metacognition: r.Metacognition,
		History:       parseHistory(r.History),
	}
}

// NewEdge materializes every default for an edge record. The record must
// already have passed validation.
func NewEdge(r EdgeRecord) *Edge {
	ls, _ := ParseLightShadow(r.LightShadow)
	return &Edge{
		SourceID:    r.SourceID,
		TargetID:    r.TargetID,
		Polarity:    ClampPolarity(r.Polarity),
		LightShadow: ls,
		Role:        r.Role,
		Consent:     r.Consent,
		Description: r.Description,
	}
}

// Assemble builds a graph from flat node and edge records.
//
// Nodes are deduplicated by id; when two records share an id the later one
// wins but the node keeps the position of its first appearance. Every edge
// record becomes exactly one edge. Assemble never creates nodes implicitly:
// an edge naming an unknown node yields a *DanglingEdgeError.
func Assemble(nodes []NodeRecord, edges []EdgeRecord) (*Graph, error) {
	g := newGraph()

	for i, r := range nodes {
		if err := validate.Struct(r); err != nil {
			return nil, &InvalidRecordError{Kind: "node", Index: i, Reason: validationReason(err)}
		}
		n := NewNode(r)
		if _, exists := g.nodes[n.ID]; !exists {
			g.order = append(g.order, n.ID)
		}
		g.nodes[n.ID] = n
	}

	for i, r := range edges {
		if err := validate.Struct(r); err != nil {
			return nil, &InvalidRecordError{Kind: "edge", Index: i, Reason: validationReason(err)}
		}
		for _, end := range []ID{r.SourceID, r.TargetID} {
			if _, ok := g.nodes[end]; !ok {
				return nil, &DanglingEdgeError{Index: i, SourceID: r.SourceID, TargetID: r.TargetID, Missing: end}
			}
		}
		e := NewEdge(r)
		g.edges = append(g.edges, e)
		g.connect(e.SourceID, e.TargetID)
	}

	return g, nil
}
