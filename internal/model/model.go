// Package model holds the row types and enums shared by every component of
// the import/export pipeline. Ownership of these values always lives in the
// Store; every other package treats them as plain data.
package model

import "time"

// ConfidenceLevel is the reliability tier assigned to a detected timestamp.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
	ConfidenceNone   ConfidenceLevel = "NONE"
)

// Valid reports whether c is one of the four defined tiers.
func (c ConfidenceLevel) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceNone:
		return true
	default:
		return false
	}
}

// JobType distinguishes the two kinds of background job the Scheduler runs.
type JobType string

const (
	JobTypeImport JobType = "IMPORT"
	JobTypeExport JobType = "EXPORT"
)

// JobStatus is the durable state of a Job row. Neither this type nor
// internal/scheduler checks transitions; the only source-state checks are
// those of the "jobs signal" command in cmd/mediaparser.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobPaused    JobStatus = "PAUSED"
	JobCancelled JobStatus = "CANCELLED"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobHalted    JobStatus = "HALTED"

	// JobPauseRequested and JobCancelRequested are written by a control
	// command running in a different process than the one driving the job;
	// the Scheduler's control loop observes them at its next yield point and
	// performs the actual PAUSED/CANCELLED transition itself.
	JobPauseRequested  JobStatus = "PAUSE_REQUESTED"
	JobCancelRequested JobStatus = "CANCEL_REQUESTED"
)

// Terminal reports whether a job in this status can never transition again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobCancelled, JobFailed, JobHalted:
		return true
	default:
		return false
	}
}

// GroupType classifies a similar-group's relationship between its members.
type GroupType string

const (
	GroupBurst    GroupType = "BURST"
	GroupPanorama GroupType = "PANORAMA"
	GroupSimilar  GroupType = "SIMILAR"
)

// ActionType tags a UserDecision row with the mutation that produced it.
type ActionType string

const (
	ActionConfirmTimestamp ActionType = "confirm_timestamp"
	ActionUnreview         ActionType = "unreview"
	ActionDiscard          ActionType = "discard"
	ActionUndiscard        ActionType = "undiscard"
	ActionAddTags          ActionType = "add_tags"
	ActionRemoveTag        ActionType = "remove_tag"
	ActionResolveSimilar   ActionType = "resolve_similar_group"
	ActionKeepAllDuplicate ActionType = "keep_all_duplicates"
	ActionKeepAllSimilar   ActionType = "keep_all_similar"
	ActionAutoConfirmHigh  ActionType = "auto_confirm_high"
	ActionBulkReview       ActionType = "bulk_review"
)

// TimestampCandidate is one (instant, source) pair considered during
// confidence scoring. Source is one of the fixed tags in
// internal/confidence.SourceWeights, or "filename_datetime"/"filename_date".
type TimestampCandidate struct {
	Instant time.Time `json:"timestamp"`
	Source  string    `json:"source"`
}

// File is a single ingested media object.
type File struct {
	ID               int64
	JobID            int64
	OriginalFilename string
	OriginalPath     string
	StoragePath      string

	SizeBytes int64
	MimeType  string
	Width     int
	Height    int

	SHA256         string
	PerceptualHash string // 16 hex chars, empty if unavailable

	DetectedTimestamp  *time.Time
	TimestampSource     string
	FinalTimestamp      *time.Time
	TimestampCandidates []TimestampCandidate
	Confidence          ConfidenceLevel

	ReviewedAt      *time.Time
	Discarded       bool
	ProcessingError string

	// Tags is populated on demand (e.g. by the Scheduler before an export
	// write-back) rather than by every File-returning Store query, since
	// most callers never need it and it lives in a separate join table.
	Tags []string

	ExactGroupID            string
	ExactGroupConfidence     ConfidenceLevel
	SimilarGroupID           string
	SimilarGroupConfidence   ConfidenceLevel
	SimilarGroupType         GroupType

	OutputPath string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExtractionStatus reports whether a single-file extraction (C4) succeeded.
type ExtractionStatus string

const (
	ExtractionSuccess ExtractionStatus = "SUCCESS"
	ExtractionError   ExtractionStatus = "ERROR"
)

// ExtractionResult is the pure output of running the Per-File Extractor
// (C4) over one file. It never touches the Store; the Scheduler is
// responsible for persisting it.
type ExtractionResult struct {
	Status ExtractionStatus

	SizeBytes      int64
	SHA256         string
	PerceptualHash string // empty if unavailable
	MimeType       string
	Width          int
	Height         int
	HasDimensions  bool

	Candidates     []TimestampCandidate
	ChosenInstant  *time.Time
	ChosenSource   string
	Confidence     ConfidenceLevel

	ErrorMessage string
}

// Tag is a normalized, lowercase label attached to zero or more Files.
type Tag struct {
	ID         int64
	Name       string
	UsageCount int
}

// Job is a unit of background work (import or export).
type Job struct {
	ID     int64
	Type   JobType
	Status JobStatus

	ProgressTotal   int
	ProgressCurrent int
	ErrorCount      int
	CurrentFilename string

	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string
}

// UserDecision is an append-only audit record of a user-directed mutation.
type UserDecision struct {
	ID            int64
	FileID        int64
	DecisionType  ActionType
	DecisionValue string // opaque JSON
	DecidedAt     time.Time
}
