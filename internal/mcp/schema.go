package mcp

// TangoAddInput defines the input for the tango_add tool.
type TangoAddInput struct {
	Prompt     string `json:"prompt" jsonschema:"A statement about a relationship, e.g. 'My inner critic attacks my creative side'"`
	Iterations *int   `json:"iterations,omitempty" jsonschema:"Interaction passes to run after adding (default: configured iterations)"`
}

// PoleSummary describes one pole as interpreted.
type PoleSummary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Role     string   `json:"role,omitempty"`
	EgoState string   `json:"ego_state,omitempty"`
	Maturity *float64 `json:"maturity,omitempty"`
}

// TangoAddOutput defines the output for the tango_add tool.
type TangoAddOutput struct {
	PromptID    string      `json:"prompt_id" jsonschema:"ID of the recorded prompt"`
	Interpreter string      `json:"interpreter" jsonschema:"Backend that interpreted the prompt"`
	Source      PoleSummary `json:"source" jsonschema:"The acting pole"`
	Target      PoleSummary `json:"target" jsonschema:"The receiving pole"`
	Polarity    float64     `json:"polarity" jsonschema:"Relation polarity in [-1, 1]"`
	LightShadow string      `json:"light_shadow" jsonschema:"light or shadow"`
	NodeCount   int         `json:"node_count" jsonschema:"Nodes in the graph after simulation"`
	EdgeCount   int         `json:"edge_count" jsonschema:"Edges in the graph after simulation"`
	Message     string      `json:"message" jsonschema:"Human-readable result message"`
}

// TangoSimulateInput defines the input for the tango_simulate tool.
type TangoSimulateInput struct {
	Iterations *int `json:"iterations,omitempty" jsonschema:"Interaction passes to run (default: configured iterations)"`
	DryRun     bool `json:"dry_run,omitempty" jsonschema:"Return per-pass snapshots without saving (default: false)"`
}

// NodeState is a node's state after simulation.
type NodeState struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Maturity      float64  `json:"maturity"`
	EgoState      string   `json:"ego_state"`
	Role          string   `json:"role,omitempty"`
	Metacognition bool     `json:"metacognition,omitempty"`
	History       []string `json:"history,omitempty"`
}

// StepSummary is one engine pass in a dry run.
type StepSummary struct {
	Iteration int         `json:"iteration"`
	Nodes     []NodeState `json:"nodes"`
}

// TangoSimulateOutput defines the output for the tango_simulate tool.
type TangoSimulateOutput struct {
	Iterations int           `json:"iterations" jsonschema:"Passes that were run"`
	Saved      bool          `json:"saved" jsonschema:"Whether the result was stored"`
	Nodes      []NodeState   `json:"nodes" jsonschema:"Node states after the last pass"`
	Steps      []StepSummary `json:"steps,omitempty" jsonschema:"Per-pass snapshots (dry run only)"`
	EdgeCount  int           `json:"edge_count" jsonschema:"Edges in the graph"`
}

// TangoGraphInput defines the input for the tango_graph tool.
type TangoGraphInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: json (default), dot or html"`
}

// TangoGraphOutput defines the output for the tango_graph tool.
type TangoGraphOutput struct {
	Format    string      `json:"format" jsonschema:"Format of the graph field"`
	Graph     interface{} `json:"graph" jsonschema:"The rendered graph"`
	NodeCount int         `json:"node_count" jsonschema:"Number of nodes"`
	EdgeCount int         `json:"edge_count" jsonschema:"Number of edges"`
}

// TangoPromptsInput defines the input for the tango_prompts tool.
type TangoPromptsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum prompts to return, newest first (default: 20)"`
}

// PromptSummary is one recorded prompt.
type PromptSummary struct {
	ID        string   `json:"id"`
	Prompt    string   `json:"prompt"`
	Poles     []string `json:"poles"`
	CreatedAt string   `json:"created_at"` // RFC 3339
}

// TangoPromptsOutput defines the output for the tango_prompts tool.
type TangoPromptsOutput struct {
	Prompts []PromptSummary `json:"prompts" jsonschema:"Recorded prompts"`
	Count   int             `json:"count" jsonschema:"Number of prompts returned"`
}

// TangoResetInput defines the input for the tango_reset tool.
type TangoResetInput struct{}

// TangoResetOutput defines the output for the tango_reset tool.
type TangoResetOutput struct {
	Status string `json:"status" jsonschema:"Result message"`
}
