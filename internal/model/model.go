package model

import (
	"time"
)

// Phase is the sub-state of the current question within a session.
type Phase string

const (
	// PhaseAnnouncing is the question-narration phase.
	PhaseAnnouncing Phase = "announcing"
	// PhaseThinking is the silent think-time countdown phase.
	PhaseThinking Phase = "thinking"
	// PhaseRecording is the answer-capture phase.
	PhaseRecording Phase = "recording"
)

// SessionStatus represents the lifecycle state of a viva session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusFinished   SessionStatus = "finished"
)

// IndicatorState is the presentation signal the hosting surface shows
// while a session runs. It is derived state and never read back by the
// session logic itself.
type IndicatorState string

const (
	IndicatorIdle      IndicatorState = "idle"
	IndicatorPreparing IndicatorState = "preparing"
	IndicatorThinking  IndicatorState = "thinking"
	IndicatorListening IndicatorState = "listening"
)

// VolumeTier buckets normalized answer volume for presentation.
// The hosting surface maps tiers to its own palette.
type VolumeTier string

const (
	VolumeLow    VolumeTier = "low"
	VolumeMedium VolumeTier = "medium"
	VolumeHigh   VolumeTier = "high"
)

// TierForVolume maps a normalized volume in [0,1] to a presentation tier.
func TierForVolume(v float64) VolumeTier {
	switch {
	case v < 0.03:
		return VolumeLow
	case v < 0.06:
		return VolumeMedium
	default:
		return VolumeHigh
	}
}

// QuestionPair is one question with its reference answer.
type QuestionPair struct {
	Question        string `json:"question"`
	ReferenceAnswer string `json:"reference_answer"`
}

// LogEntry is one display row in the running session log.
type LogEntry struct {
	Question   string `json:"question"`
	UserAnswer string `json:"user_answer"`
}

// AnswerRecord is one fully scored question. Immutable once appended.
type AnswerRecord struct {
	Question      string  `json:"question"`
	UserAnswer    string  `json:"user_answer"`
	CorrectAnswer string  `json:"correct_answer"`
	Score         float64 `json:"score"`
	Feedback      string  `json:"feedback"`
}

// Report is the final per-session result card.
type Report struct {
	User         string         `json:"user"`
	StudentID    string         `json:"student_id"`
	Subject      string         `json:"subject"`
	AverageScore float64        `json:"average_score"`
	WeakAreas    []string       `json:"weak_areas"`
	Records      []AnswerRecord `json:"records"`
	Timestamp    string         `json:"timestamp"`
}

// ReportTimeLayout is the timestamp format used in reports.
const ReportTimeLayout = "2006-01-02 15:04:05"

// Session is the full state of one candidate's viva. The hosting surface
// re-enters from scratch on every cycle, so everything the state machine
// needs between steps lives here and is persisted externally.
type Session struct {
	ID string `json:"id"`

	CandidateName string `json:"candidate_name"`
	CandidateID   string `json:"candidate_id"`
	Subject       string `json:"subject"`

	// QuestionSet is fixed at session start; never mutated afterwards.
	QuestionSet []QuestionPair `json:"question_set"`

	CurrentIndex   int   `json:"current_index"`
	Phase          Phase `json:"phase"`
	ThinkCountdown int   `json:"think_countdown"`

	// Announced marks that the current question's narration has been
	// dispatched, so repeated steps in PhaseAnnouncing poll for
	// completion instead of speaking again.
	Announced bool `json:"announced"`
	// SpeechComplete is set once the narration's completion signal has
	// been observed.
	SpeechComplete bool `json:"speech_complete"`
	// SpeakDuration is the estimated narration length in seconds for the
	// current question.
	SpeakDuration float64 `json:"speak_duration"`
	// PhaseStart anchors the elapsed-time exit for PhaseAnnouncing.
	PhaseStart time.Time `json:"phase_start"`

	Log     []LogEntry     `json:"log"`
	Records []AnswerRecord `json:"records"`

	IndicatorState IndicatorState `json:"indicator_state"`
	IndicatorColor VolumeTier     `json:"indicator_color"`

	Status    SessionStatus `json:"status"`
	Report    *Report       `json:"report,omitempty"`
	StartedAt time.Time     `json:"started_at"`
}

// Complete reports whether every question has been scored.
func (s *Session) Complete() bool {
	return s.CurrentIndex >= len(s.QuestionSet)
}

// CurrentQuestion returns the pair at the cursor, or false when the
// session is complete.
func (s *Session) CurrentQuestion() (QuestionPair, bool) {
	if s.Complete() {
		return QuestionPair{}, false
	}
	return s.QuestionSet[s.CurrentIndex], true
}

// Timing holds the pacing constants of a session. These are product
// tuning values, kept configurable rather than hard-coded.
type Timing struct {
	// ThinkSeconds is the silent countdown before recording starts.
	ThinkSeconds int
	// Recording windows by reference question length, in seconds.
	RecordShort  int
	RecordMedium int
	RecordLong   int
	// Word-count boundaries between the recording windows.
	ShortWordLimit  int
	MediumWordLimit int
	// SpeechBuffer pads the estimated narration duration before the
	// elapsed-time exit fires.
	SpeechBuffer time.Duration
}

// DefaultTiming returns the stock pacing values.
func DefaultTiming() Timing {
	return Timing{
		ThinkSeconds:    5,
		RecordShort:     8,
		RecordMedium:    10,
		RecordLong:      12,
		ShortWordLimit:  10,
		MediumWordLimit: 20,
		SpeechBuffer:    time.Second,
	}
}

// RecordSeconds picks the recording window for a question: longer
// questions get more time to answer.
func (t Timing) RecordSeconds(questionWords int) int {
	switch {
	case questionWords < t.ShortWordLimit:
		return t.RecordShort
	case questionWords < t.MediumWordLimit:
		return t.RecordMedium
	default:
		return t.RecordLong
	}
}
