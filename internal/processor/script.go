package processor

import (
	"context"
	"encoding/json"

	"reelforge/backend/features/job"
	"reelforge/backend/features/project"
)

type ScriptInput struct {
	Script string `json:"script"`
}

// ScriptAnalysis breaks a script into scenes, shots and narration cues. The
// analyzer's output is stored verbatim as the job result; downstream jobs
// (image, audio) are spawned from it by the application layer as sub-jobs.
type ScriptAnalysis struct {
	analyzer ScriptAnalyzer
	projects project.Repository
}

func NewScriptAnalysis(a ScriptAnalyzer, p project.Repository) *ScriptAnalysis {
	return &ScriptAnalysis{analyzer: a, projects: p}
}

func (sa *ScriptAnalysis) Type() job.Type { return job.TypeScriptAnalysis }

func (sa *ScriptAnalysis) Validate(input json.RawMessage) error {
	var in ScriptInput
	if err := json.Unmarshal(input, &in); err != nil {
		return &ValidationError{Field: "input_data", Reason: "is not a valid script_analysis payload"}
	}
	if in.Script == "" {
		return &ValidationError{Field: "script", Reason: "is required"}
	}
	return nil
}

func (sa *ScriptAnalysis) Authorize(ctx context.Context, j *job.Job) error {
	return authorizeProject(ctx, sa.projects, j)
}

func (sa *ScriptAnalysis) Process(ctx context.Context, j *job.Job, report ProgressFunc) (json.RawMessage, error) {
	var in ScriptInput
	if err := json.Unmarshal(j.InputData, &in); err != nil {
		return nil, err
	}

	if err := report(ctx, job.Progress{Percent: 10, Message: "analysing script"}); err != nil {
		return nil, err
	}

	result, err := sa.analyzer.Analyze(ctx, in.Script)
	if err != nil {
		return nil, err
	}

	if err := report(ctx, job.Progress{Percent: 95, Message: "finalising analysis"}); err != nil {
		return nil, err
	}

	return result, nil
}
