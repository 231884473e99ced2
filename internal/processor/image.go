package processor

import (
	"context"
	"encoding/json"

	"reelforge/backend/features/asset"
	"reelforge/backend/features/job"
	"reelforge/backend/features/project"
)

type ImageInput struct {
	Prompt         string   `json:"prompt"`
	AssetVersionID string   `json:"asset_version_id"`
	ReferenceIDs   []string `json:"reference_ids,omitempty"`
	Style          string   `json:"style,omitempty"`
}

type ImageResult struct {
	AssetVersionID string `json:"asset_version_id"`
	URL            string `json:"url"`
}

// ImageGen synthesises a single image for an asset version. Reference
// images (e.g. a character sheet from a sibling job) are dependencies that
// may still be generating when this job is claimed.
type ImageGen struct {
	generator MediaGenerator
	deps      *DependencyChecker
	assets    asset.Repository
	projects  project.Repository
}

func NewImageGen(g MediaGenerator, d *DependencyChecker, a asset.Repository, p project.Repository) *ImageGen {
	return &ImageGen{generator: g, deps: d, assets: a, projects: p}
}

func (ig *ImageGen) Type() job.Type { return job.TypeImageGen }

func (ig *ImageGen) Validate(input json.RawMessage) error {
	var in ImageInput
	if err := json.Unmarshal(input, &in); err != nil {
		return &ValidationError{Field: "input_data", Reason: "is not a valid image_gen payload"}
	}
	if in.Prompt == "" {
		return &ValidationError{Field: "prompt", Reason: "is required"}
	}
	if in.AssetVersionID == "" {
		return &ValidationError{Field: "asset_version_id", Reason: "is required"}
	}
	return nil
}

func (ig *ImageGen) Authorize(ctx context.Context, j *job.Job) error {
	return authorizeProject(ctx, ig.projects, j)
}

func (ig *ImageGen) Process(ctx context.Context, j *job.Job, report ProgressFunc) (json.RawMessage, error) {
	var in ImageInput
	if err := json.Unmarshal(j.InputData, &in); err != nil {
		return nil, err
	}

	if err := ig.deps.Require(ctx, in.ReferenceIDs); err != nil {
		return nil, err
	}

	if err := report(ctx, job.Progress{Percent: 10, Message: "generating image"}); err != nil {
		return nil, err
	}

	res, err := ig.generator.Generate(ctx, MediaRequest{
		Kind:         "image",
		Prompt:       in.Prompt,
		ReferenceIDs: in.ReferenceIDs,
	})
	if err != nil {
		return nil, err
	}

	if err := report(ctx, job.Progress{Percent: 90, Message: "storing result"}); err != nil {
		return nil, err
	}

	if err := ig.assets.MarkReady(ctx, in.AssetVersionID, res.URL); err != nil {
		return nil, err
	}

	return json.Marshal(ImageResult{AssetVersionID: in.AssetVersionID, URL: res.URL})
}
