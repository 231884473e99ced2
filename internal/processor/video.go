package processor

import (
	"context"
	"encoding/json"

	"reelforge/backend/features/asset"
	"reelforge/backend/features/job"
	"reelforge/backend/features/project"
)

type VideoInput struct {
	Prompt          string   `json:"prompt"`
	AssetVersionID  string   `json:"asset_version_id"`
	SourceImageIDs  []string `json:"source_image_ids,omitempty"`
	DurationSeconds float64  `json:"duration_seconds"`
}

type VideoResult struct {
	AssetVersionID string `json:"asset_version_id"`
	URL            string `json:"url"`
}

// VideoGen animates a clip from source images that are themselves produced
// by sibling image jobs, so the dependency wait is the common path here.
type VideoGen struct {
	generator MediaGenerator
	deps      *DependencyChecker
	assets    asset.Repository
	projects  project.Repository
}

func NewVideoGen(g MediaGenerator, d *DependencyChecker, a asset.Repository, p project.Repository) *VideoGen {
	return &VideoGen{generator: g, deps: d, assets: a, projects: p}
}

func (vg *VideoGen) Type() job.Type { return job.TypeVideoGen }

func (vg *VideoGen) Validate(input json.RawMessage) error {
	var in VideoInput
	if err := json.Unmarshal(input, &in); err != nil {
		return &ValidationError{Field: "input_data", Reason: "is not a valid video_gen payload"}
	}
	if in.Prompt == "" {
		return &ValidationError{Field: "prompt", Reason: "is required"}
	}
	if in.AssetVersionID == "" {
		return &ValidationError{Field: "asset_version_id", Reason: "is required"}
	}
	if in.DurationSeconds <= 0 || in.DurationSeconds > 60 {
		return &ValidationError{Field: "duration_seconds", Reason: "must be between 0 and 60"}
	}
	return nil
}

func (vg *VideoGen) Authorize(ctx context.Context, j *job.Job) error {
	return authorizeProject(ctx, vg.projects, j)
}

func (vg *VideoGen) Process(ctx context.Context, j *job.Job, report ProgressFunc) (json.RawMessage, error) {
	var in VideoInput
	if err := json.Unmarshal(j.InputData, &in); err != nil {
		return nil, err
	}

	if err := vg.deps.Require(ctx, in.SourceImageIDs); err != nil {
		return nil, err
	}

	if err := report(ctx, job.Progress{Percent: 5, Message: "rendering video", CurrentStep: 1, TotalSteps: 2}); err != nil {
		return nil, err
	}

	res, err := vg.generator.Generate(ctx, MediaRequest{
		Kind:            "video",
		Prompt:          in.Prompt,
		ReferenceIDs:    in.SourceImageIDs,
		DurationSeconds: in.DurationSeconds,
	})
	if err != nil {
		return nil, err
	}

	if err := report(ctx, job.Progress{Percent: 90, Message: "storing result", CurrentStep: 2, TotalSteps: 2}); err != nil {
		return nil, err
	}

	if err := vg.assets.MarkReady(ctx, in.AssetVersionID, res.URL); err != nil {
		return nil, err
	}

	return json.Marshal(VideoResult{AssetVersionID: in.AssetVersionID, URL: res.URL})
}
