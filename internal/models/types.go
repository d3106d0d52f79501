// Package models defines the core entity types shared across ralph's
// components: tasks, dependencies, features, journal entries, knowledge
// entries, and task logs. Types here are pure value types with no I/O.
package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

// Task status constants.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal returns true if the status represents a resolved task.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// TaskType distinguishes feature-owned tasks from standalone ones.
type TaskType string

// Task type constants.
const (
	TaskTypeFeature    TaskType = "feature"
	TaskTypeStandalone TaskType = "standalone"
)

// VerificationStatus is the outcome of a verification session for a task.
type VerificationStatus string

// Verification status constants. The empty string represents "null" (never verified).
const (
	VerificationPending VerificationStatus = "pending"
	VerificationPassed  VerificationStatus = "passed"
	VerificationFailed  VerificationStatus = "failed"
)

// Task is one unit of work in the DAG.
type Task struct {
	ID                 string              `json:"id"`
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	Status             TaskStatus          `json:"status"`
	ParentID           string              `json:"parent_id,omitempty"`
	FeatureID          string              `json:"feature_id,omitempty"`
	TaskType           TaskType            `json:"task_type"`
	Priority           int                 `json:"priority"`
	RetryCount         int                 `json:"retry_count"`
	MaxRetries         int                 `json:"max_retries"`
	VerificationStatus VerificationStatus  `json:"verification_status,omitempty"`
	ClaimedBy          string              `json:"claimed_by,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// IsClaimed reports whether the task is currently held by a run.
func (t *Task) IsClaimed() bool { return t.ClaimedBy != "" }

// Dependency is a directed edge (blocker -> blocked) in the task graph.
type Dependency struct {
	BlockerID string    `json:"blocker_id"`
	BlockedID string    `json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FeatureStatus is the lifecycle state of a Feature aggregate.
type FeatureStatus string

// Feature status constants.
const (
	FeatureStatusDraft   FeatureStatus = "draft"
	FeatureStatusPlanned FeatureStatus = "planned"
	FeatureStatusReady   FeatureStatus = "ready"
	FeatureStatusRunning FeatureStatus = "running"
	FeatureStatusDone    FeatureStatus = "done"
	FeatureStatusFailed  FeatureStatus = "failed"
)

// Feature is an aggregate of one spec, one plan, and a subtree of tasks.
type Feature struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	SpecPath  string        `json:"spec_path,omitempty"`
	PlanPath  string        `json:"plan_path,omitempty"`
	RootTaskID string       `json:"root_task_id,omitempty"`
	Status    FeatureStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// JournalOutcome describes how an iteration concluded.
type JournalOutcome string

// Journal outcome constants.
const (
	JournalOutcomeDone    JournalOutcome = "done"
	JournalOutcomeFailed  JournalOutcome = "failed"
	JournalOutcomeRetried JournalOutcome = "retried"
	JournalOutcomeBlocked JournalOutcome = "blocked"
)

// JournalEntry records one iteration of the loop.
type JournalEntry struct {
	ID             int64          `json:"id"`
	RunID          string         `json:"run_id"`
	Iteration      int            `json:"iteration"`
	TaskID         string         `json:"task_id,omitempty"`
	FeatureID      string         `json:"feature_id,omitempty"`
	Outcome        JournalOutcome `json:"outcome"`
	Model          string         `json:"model"`
	DurationSecs   float64        `json:"duration_secs"`
	CostUSD        float64        `json:"cost_usd"`
	FilesModified  []string       `json:"files_modified,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// KnowledgeEntry is an on-disk markdown note with YAML frontmatter.
type KnowledgeEntry struct {
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Feature   string    `json:"feature,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Body      string    `json:"body"`

	// Slug is the filename (without extension) this entry is persisted under.
	// Populated by the knowledge package on read/write; not part of frontmatter.
	Slug string `json:"-"`
}

// TaskLog is one append-only log line attached to a task.
type TaskLog struct {
	TaskID    string    `json:"task_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
