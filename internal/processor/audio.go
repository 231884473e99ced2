package processor

import (
	"context"
	"encoding/json"

	"reelforge/backend/features/asset"
	"reelforge/backend/features/job"
	"reelforge/backend/features/project"
)

type AudioInput struct {
	Text           string `json:"text"`
	Voice          string `json:"voice"`
	AssetVersionID string `json:"asset_version_id"`
}

type AudioResult struct {
	AssetVersionID string `json:"asset_version_id"`
	URL            string `json:"url"`
}

// AudioGen synthesises a voice-over track. No cross-job dependencies: the
// narration text is carried inline in the payload.
type AudioGen struct {
	generator MediaGenerator
	assets    asset.Repository
	projects  project.Repository
}

func NewAudioGen(g MediaGenerator, a asset.Repository, p project.Repository) *AudioGen {
	return &AudioGen{generator: g, assets: a, projects: p}
}

func (ag *AudioGen) Type() job.Type { return job.TypeAudioGen }

func (ag *AudioGen) Validate(input json.RawMessage) error {
	var in AudioInput
	if err := json.Unmarshal(input, &in); err != nil {
		return &ValidationError{Field: "input_data", Reason: "is not a valid audio_gen payload"}
	}
	if in.Text == "" {
		return &ValidationError{Field: "text", Reason: "is required"}
	}
	if in.AssetVersionID == "" {
		return &ValidationError{Field: "asset_version_id", Reason: "is required"}
	}
	return nil
}

func (ag *AudioGen) Authorize(ctx context.Context, j *job.Job) error {
	return authorizeProject(ctx, ag.projects, j)
}

func (ag *AudioGen) Process(ctx context.Context, j *job.Job, report ProgressFunc) (json.RawMessage, error) {
	var in AudioInput
	if err := json.Unmarshal(j.InputData, &in); err != nil {
		return nil, err
	}

	if err := report(ctx, job.Progress{Percent: 10, Message: "synthesising audio"}); err != nil {
		return nil, err
	}

	res, err := ag.generator.Generate(ctx, MediaRequest{
		Kind:   "audio",
		Prompt: in.Text,
		Voice:  in.Voice,
	})
	if err != nil {
		return nil, err
	}

	if err := report(ctx, job.Progress{Percent: 90, Message: "storing result"}); err != nil {
		return nil, err
	}

	if err := ag.assets.MarkReady(ctx, in.AssetVersionID, res.URL); err != nil {
		return nil, err
	}

	return json.Marshal(AudioResult{AssetVersionID: in.AssetVersionID, URL: res.URL})
}
