package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/vidsmith/internal/models"
	"github.com/ternarybob/vidsmith/internal/pipeline"
	"github.com/ternarybob/vidsmith/internal/subtitle"
)

// Scene limits. A scene never exceeds 15 seconds of audio or 100 weighted
// characters of text, where wide (CJK) runes count double.
const (
	maxSceneDurationMS = 15_000
	maxSceneWeight     = 100
)

// SplitStep groups subtitle entries into scenes, derives an image prompt per
// scene, and persists the boundaries to workspace/splits.json. The database
// mirror is best-effort; the file is authoritative for this execution.
type SplitStep struct {
	pipeline.BaseStep
	deps Deps
}

func NewSplitStep(deps Deps) *SplitStep {
	return &SplitStep{deps: deps}
}

func (s *SplitStep) Name() string { return pipeline.StepSplit }

func (s *SplitStep) Description() string {
	return "Group subtitles into scenes and derive image prompts"
}

func (s *SplitStep) Validate(ctx context.Context, pctx *pipeline.Context) error {
	return nil
}

func (s *SplitStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	sub, _ := pctx.Results.Subtitle()
	entries, err := subtitle.ParseFile(sub.SRTPath)
	if err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: err}
	}
	if len(entries) == 0 {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: fmt.Errorf("subtitle file has no entries")}
	}

	splits := buildSplits(pctx.Job, pctx.Topic, entries)

	if s.deps.LLM != nil && pctx.Job.ExtraBool("llm_scene_prompts") {
		s.enrichPrompts(ctx, pctx, splits)
	}

	splitPath := filepath.Join(pctx.Workspace, "splits.json")
	if err := models.WriteSplitFile(splitPath, splits); err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: err}
	}

	if s.deps.Splits != nil {
		if err := s.deps.Splits.ReplaceSplits(ctx, pctx.Job.ID, splits); err != nil {
			s.deps.Logger.Warn().Err(err).Str("job_id", pctx.Job.ID).Msg("Failed to mirror splits to database")
		}
	}

	s.deps.Logger.Info().
		Str("job_id", pctx.Job.ID).
		Int("scenes", len(splits)).
		Int("subtitles", len(entries)).
		Msg("Script split into scenes")

	return pipeline.SplitResult{Splits: splits, SplitFilePath: splitPath}, nil
}

// enrichPrompts rewrites scene prompts with model-generated visual
// descriptions. Enrichment is best-effort: the first failure keeps the
// remaining plain prompts. Responses are cached by (prompt, model) so broker
// retries replay identical descriptions.
func (s *SplitStep) enrichPrompts(ctx context.Context, pctx *pipeline.Context, splits []models.JobSplit) {
	prefix := ""
	cover := ""
	if pctx.Topic != nil {
		prefix = pctx.Topic.ImagePrefix
		cover = pctx.Topic.CoverPrompt
	}
	model := pctx.TopicExtraString("llm_model")

	for i := range splits {
		if i == 0 && cover != "" {
			continue
		}
		request := "Describe a single still image illustrating this narration. Answer with one sentence of visual detail only: " + splits[i].Text
		description, err := s.deps.LLM.Chat(ctx, request, model)
		if err != nil {
			s.deps.Logger.Warn().Err(err).Int("scene", i).Msg("Prompt enrichment failed, keeping plain prompts")
			return
		}
		splits[i].Prompt = strings.TrimSpace(prefix + " " + strings.TrimSpace(description))
	}
}

// buildSplits groups entries into scenes and attaches prompts. Scene 0 uses
// the topic cover prompt when one is configured.
func buildSplits(job *models.Job, topic *models.Topic, entries []subtitle.Entry) []models.JobSplit {
	groups := groupEntries(entries, maxSceneDurationMS, maxSceneWeight)

	prefix := ""
	cover := ""
	if topic != nil {
		prefix = topic.ImagePrefix
		cover = topic.CoverPrompt
	}

	now := time.Now()
	splits := make([]models.JobSplit, 0, len(groups))
	for i, group := range groups {
		texts := make([]string, 0, len(group))
		for _, e := range group {
			texts = append(texts, e.Text)
		}
		text := strings.Join(texts, " ")

		prompt := strings.TrimSpace(prefix + " " + text)
		if i == 0 && cover != "" {
			prompt = cover
		}

		splits = append(splits, models.JobSplit{
			JobID:     job.ID,
			Index:     i,
			StartMS:   group[0].StartMS,
			EndMS:     group[len(group)-1].EndMS,
			Text:      text,
			Prompt:    prompt,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return splits
}

// groupEntries packs consecutive subtitle entries into scenes without
// exceeding the duration or weighted-length caps. An entry that alone exceeds
// a cap still forms its own scene.
func groupEntries(entries []subtitle.Entry, maxDurationMS int64, maxWeight int) [][]subtitle.Entry {
	var groups [][]subtitle.Entry
	var current []subtitle.Entry
	var currentWeight int

	for _, entry := range entries {
		weight := subtitle.WeightedLength(entry.Text)
		if len(current) > 0 {
			duration := entry.EndMS - current[0].StartMS
			if duration > maxDurationMS || currentWeight+weight > maxWeight {
				groups = append(groups, current)
				current = nil
				currentWeight = 0
			}
		}
		current = append(current, entry)
		currentWeight += weight
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}
