package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/docast/internal/ai"
	"github.com/xxxsen/docast/internal/model"
	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
	"github.com/xxxsen/docast/internal/pkg/timeutil"
)

const leadQuestion = "What is this document about, and why does it matter?"

var baselineQuestions = []string{
	leadQuestion,
	"What are the key ideas or arguments presented?",
	"What evidence or examples support the main points?",
	"What conclusions or recommendations does it reach?",
	"What questions does it leave open?",
}

const failedAnswerPlaceholder = "(no answer could be produced for this question)"

const questionSystemPrompt = `You generate interview questions for a narrated summary of a document. Return a JSON array of strings only. No extra text.`

const scriptSystemPrompt = `You write a spoken monologue summarizing a document for an audio briefing. First person, conversational, no headings, no markdown, no stage directions. Weave the answers into one flowing narration.`

// ArtifactStore persists finished synthesis results.
type ArtifactStore interface {
	GetByDocumentID(ctx context.Context, documentID string) (*model.Artifact, error)
	Save(ctx context.Context, artifact *model.Artifact) error
}

type PodcastConfig struct {
	QuestionCount  int
	MinScriptChars int
	JobTimeout     time.Duration
	RetrieveTopK   int
	Concurrency    int
	ContextPreview int
}

func (c *PodcastConfig) fill() {
	if c.QuestionCount <= 0 {
		c.QuestionCount = len(baselineQuestions)
	}
	if c.MinScriptChars <= 0 {
		c.MinScriptChars = 200
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 5 * time.Minute
	}
	if c.RetrieveTopK <= 0 {
		c.RetrieveTopK = 4
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.ContextPreview <= 0 {
		c.ContextPreview = 4000
	}
}

// PodcastService runs the synthesis workflow: questions, per-question
// retrieval and answering, script synthesis, optional speech, then
// persistence. Each stage reads and advances the job; a stage failure
// marks the job failed without panicking mid-pipeline.
type PodcastService struct {
	registry  Registry
	store     ObjectStore
	retriever Retriever
	artifacts ArtifactStore
	generator ai.IGenerator
	speaker   ai.ISpeaker
	cfg       PodcastConfig
}

func NewPodcastService(registry Registry, store ObjectStore, retriever Retriever, artifacts ArtifactStore, generator ai.IGenerator, speaker ai.ISpeaker, cfg PodcastConfig) *PodcastService {
	cfg.fill()
	return &PodcastService{
		registry:  registry,
		store:     store,
		retriever: retriever,
		artifacts: artifacts,
		generator: generator,
		speaker:   speaker,
		cfg:       cfg,
	}
}

// GetArtifact returns the stored synthesis result for a document.
func (s *PodcastService) GetArtifact(ctx context.Context, documentID string) (*model.Artifact, error) {
	return s.artifacts.GetByDocumentID(ctx, documentID)
}

// Generate produces (or returns the already stored) synthesis artifact
// for a document. A second call for the same document is answered from
// storage without touching the models again; a script-only request is
// satisfied by any existing artifact, audio-bearing or not.
func (s *PodcastService) Generate(ctx context.Context, documentID string, scriptOnly bool) (*model.Artifact, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("synthesis: %w", apperrors.ErrUnavailable)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", documentID))

	existing, err := s.artifacts.GetByDocumentID(ctx, documentID)
	if err == nil && s.satisfies(existing, scriptOnly) {
		logger.Info("reusing stored artifact")
		return existing, nil
	}
	if err != nil && !apperrors.IsNotFound(err) {
		logger.Warn("artifact lookup failed, regenerating", zap.Error(err))
	}

	entry, err := s.registry.FindByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	preview, err := s.loadPreview(ctx, entry)
	if err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	job := &model.SynthesisJob{
		DocumentID: documentID,
		Context:    preview,
		ScriptOnly: scriptOnly,
	}
	stages := []func(context.Context, *model.SynthesisJob){
		s.stageQuestions,
		s.stageAnswers,
		s.stageScript,
		s.stageAudio,
	}
	for _, stage := range stages {
		stage(jobCtx, job)
		if job.Err != nil {
			failedAt := job.Stage
			job.Stage = model.StageFailed
			logger.Error("synthesis failed", zap.String("stage", string(failedAt)), zap.Error(job.Err))
			return nil, job.Err
		}
	}

	artifact := &model.Artifact{
		DocumentID: documentID,
		Title:      deriveTitle(preview, entry.Document.Filename),
		Script:     job.Script,
		AudioRef:   job.AudioRef,
		ScriptOnly: scriptOnly,
		Ctime:      timeutil.NowUnix(),
	}
	job.Stage = model.StagePersisting
	if err := s.artifacts.Save(ctx, artifact); err != nil {
		// The caller still gets the result; only durability is lost.
		logger.Error("artifact save failed", zap.Error(err))
	}
	job.Stage = model.StageDone
	logger.Info("synthesis done",
		zap.Int("questions", len(job.Questions)),
		zap.Bool("has_audio", artifact.AudioRef != ""))
	return artifact, nil
}

func (s *PodcastService) satisfies(artifact *model.Artifact, scriptOnly bool) bool {
	if artifact == nil || artifact.Script == "" {
		return false
	}
	if scriptOnly {
		return true
	}
	if artifact.AudioRef != "" {
		return true
	}
	// Audio was requested but the stored artifact has none. When no
	// speaker is configured a rerun cannot do better, so reuse anyway.
	return s.speaker == nil
}

func (s *PodcastService) loadPreview(ctx context.Context, entry *model.RegistryEntry) (string, error) {
	raw, err := s.store.Get(ctx, entry.Document.TextRef)
	if err != nil {
		return "", fmt.Errorf("load document text: %w", err)
	}
	return truncateRunes(string(raw), s.cfg.ContextPreview), nil
}

func (s *PodcastService) stageQuestions(ctx context.Context, job *model.SynthesisJob) {
	job.Stage = model.StageGeneratingQuestions
	generated := s.generateQuestions(ctx, job.Context)
	job.Questions = selectQuestions(generated, s.cfg.QuestionCount)
}

// generateQuestions asks the model for document-specific questions.
// Any failure here is absorbed: the baseline list always suffices.
func (s *PodcastService) generateQuestions(ctx context.Context, preview string) []string {
	prompt := fmt.Sprintf(`Based on the document excerpt below, write up to %d specific questions whose answers would make a good narrated summary.
Return a JSON array of strings only.

EXCERPT:
%s`, s.cfg.QuestionCount, preview)
	output, err := s.generator.Complete(ctx, questionSystemPrompt, prompt, 0.7)
	if err != nil {
		logutil.GetLogger(ctx).Warn("question generation failed, using baseline", zap.Error(err))
		return nil
	}
	questions, err := parseStringArray(output)
	if err != nil {
		logutil.GetLogger(ctx).Warn("question output unparseable, using baseline", zap.Error(err))
		return nil
	}
	return questions
}

// selectQuestions always leads with the framing question, then fills
// to count from the generated list, then from the baseline.
func selectQuestions(generated []string, count int) []string {
	out := make([]string, 0, count)
	seen := map[string]bool{}
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" || seen[strings.ToLower(q)] || len(out) >= count {
			return
		}
		seen[strings.ToLower(q)] = true
		out = append(out, q)
	}
	add(leadQuestion)
	for _, q := range generated {
		add(q)
	}
	for _, q := range baselineQuestions {
		add(q)
	}
	return out
}

func (s *PodcastService) stageAnswers(ctx context.Context, job *model.SynthesisJob) {
	job.Stage = model.StageRetrieving
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", job.DocumentID))

	answers := make([]string, len(job.Questions))
	failed := make([]bool, len(job.Questions))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, question := range job.Questions {
		i, question := i, question
		g.Go(func() error {
			answer, err := s.answerOne(gCtx, job.DocumentID, question)
			if err != nil {
				// One bad question must not sink the others.
				logger.Warn("question failed", zap.Int("index", i), zap.Error(err))
				answers[i] = failedAnswerPlaceholder
				failed[i] = true
				return nil
			}
			answers[i] = answer
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		job.Err = err
		return
	}
	failures := 0
	for _, f := range failed {
		if f {
			failures++
		}
	}
	if failures == len(job.Questions) {
		job.Err = fmt.Errorf("all %d questions failed: %w", failures, apperrors.ErrInternal)
		return
	}
	job.Answers = answers
}

func (s *PodcastService) answerOne(ctx context.Context, documentID string, question string) (string, error) {
	result, err := s.retriever.Retrieve(ctx, documentID, question, s.cfg.RetrieveTopK)
	if err != nil {
		return "", fmt.Errorf("retrieve: %w", err)
	}
	answer, err := s.generator.Complete(ctx, answerSystemPrompt, buildAnswerPrompt(question, result), 0.3)
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}
	answer = stripDeliberation(answer)
	if answer == "" {
		return "", fmt.Errorf("empty answer")
	}
	return answer, nil
}

func (s *PodcastService) stageScript(ctx context.Context, job *model.SynthesisJob) {
	job.Stage = model.StageSynthesizingScript
	var sb strings.Builder
	for i, question := range job.Questions {
		fmt.Fprintf(&sb, "Q%d: %s\nA%d: %s\n\n", i+1, question, i+1, job.Answers[i])
	}
	prompt := fmt.Sprintf(`Turn the question and answer notes below into one continuous spoken monologue.
Skip any note marked as unanswered instead of mentioning it.

NOTES:
%s`, sb.String())

	output, err := s.generator.Complete(ctx, scriptSystemPrompt, prompt, 0.7)
	if err != nil {
		job.Err = fmt.Errorf("synthesize script: %w", err)
		return
	}
	script := stripDeliberation(output)
	if utf8.RuneCountInString(script) < s.cfg.MinScriptChars {
		job.Err = fmt.Errorf("script too short (%d chars): %w", utf8.RuneCountInString(script), apperrors.ErrInternal)
		return
	}
	job.Script = script
}

func (s *PodcastService) stageAudio(ctx context.Context, job *model.SynthesisJob) {
	if job.ScriptOnly || s.speaker == nil {
		return
	}
	job.Stage = model.StageSynthesizingAudio
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", job.DocumentID))

	audio, mimeType, err := s.speaker.Speak(ctx, job.Script)
	if err != nil {
		// Script-only output is still a useful artifact.
		logger.Warn("speech synthesis failed, keeping script only", zap.Error(err))
		return
	}
	ref, err := s.store.Put(ctx, audio, mimeType)
	if err != nil {
		logger.Warn("audio upload failed, keeping script only", zap.Error(err))
		return
	}
	job.AudioRef = ref
}

func parseStringArray(output string) ([]string, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "[")
	end := strings.LastIndex(clean, "]")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	var items []string
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		return nil, fmt.Errorf("parse string array: %w", err)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

func deriveTitle(preview string, filename string) string {
	for _, line := range strings.Split(preview, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line == "" {
			continue
		}
		return truncateRunes(line, 120)
	}
	if filename != "" {
		return filename
	}
	return "Untitled document"
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
