package model

type SynthesisStage string

const (
	StageGeneratingQuestions SynthesisStage = "generating_questions"
	StageRetrieving          SynthesisStage = "retrieving"
	StageSynthesizingScript  SynthesisStage = "synthesizing_script"
	StageSynthesizingAudio   SynthesisStage = "synthesizing_audio"
	StagePersisting          SynthesisStage = "persisting"
	StageDone                SynthesisStage = "done"
	StageFailed              SynthesisStage = "failed"
)

// SynthesisJob is the transient state threaded through the podcast
// workflow stages. Questions and Answers stay parallel: Answers[i] is
// the answer (or failure placeholder) for Questions[i].
type SynthesisJob struct {
	DocumentID string
	Context    string
	ScriptOnly bool
	Questions  []string
	Answers    []string
	Script     string
	AudioRef   string
	Stage      SynthesisStage
	Err        error
}
