package store

import (
	"fmt"
	"strings"

	"github.com/dotcommander/ralph/internal/models"
)

// RecoverableError is an alias for models.RecoverableError, retained so
// callers can reference store.RecoverableError directly.
type RecoverableError = models.RecoverableError

// CycleError is returned when admitting a dependency edge would introduce a
// cycle in the task graph.
type CycleError struct {
	BlockerID string
	BlockedID string
	Path      []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("adding dependency %s -> %s would introduce a cycle (path: %s)",
		e.BlockerID, e.BlockedID, strings.Join(e.Path, " -> "))
}
func (e *CycleError) ErrorCode() string { return "DEPENDENCY_CYCLE" }
func (e *CycleError) Context() map[string]string {
	return map[string]string{
		"blocker_id": e.BlockerID,
		"blocked_id": e.BlockedID,
		"path":       strings.Join(e.Path, " -> "),
	}
}
func (e *CycleError) SuggestedAction() string {
	return "remove an existing dependency that creates this cycle before adding a new one"
}

// SelfEdgeError is returned when a dependency's blocker and blocked task are
// the same task.
type SelfEdgeError struct {
	TaskID string
}

func (e *SelfEdgeError) Error() string { return fmt.Sprintf("task %s cannot depend on itself", e.TaskID) }
func (e *SelfEdgeError) ErrorCode() string { return "SELF_DEPENDENCY" }
func (e *SelfEdgeError) Context() map[string]string {
	return map[string]string{"task_id": e.TaskID}
}
func (e *SelfEdgeError) SuggestedAction() string { return "choose a different blocker task" }

// InvalidTransitionError is returned when a task status change is not among
// the allowed transitions in spec.md §4.2.
type InvalidTransitionError struct {
	TaskID string
	From   models.TaskStatus
	To     models.TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for task %s: %s -> %s", e.TaskID, e.From, e.To)
}
func (e *InvalidTransitionError) ErrorCode() string { return "INVALID_TRANSITION" }
func (e *InvalidTransitionError) Context() map[string]string {
	return map[string]string{
		"task_id": e.TaskID,
		"from":    string(e.From),
		"to":      string(e.To),
	}
}
func (e *InvalidTransitionError) SuggestedAction() string {
	return "check the allowed transition table before changing task status"
}

// BlockedByDependentsError is returned when deleting a task that other tasks
// still list as a blocker.
type BlockedByDependentsError struct {
	TaskID    string
	Dependents []string
}

func (e *BlockedByDependentsError) Error() string {
	return fmt.Sprintf("task %s cannot be deleted: still blocks %s", e.TaskID, strings.Join(e.Dependents, ", "))
}
func (e *BlockedByDependentsError) ErrorCode() string { return "BLOCKED_BY_DEPENDENTS" }
func (e *BlockedByDependentsError) Context() map[string]string {
	return map[string]string{
		"task_id":    e.TaskID,
		"dependents": strings.Join(e.Dependents, ", "),
	}
}
func (e *BlockedByDependentsError) SuggestedAction() string {
	return "remove the dependency edges on the dependent tasks first"
}

// VersionConflictError is returned when a caller's optimistic-concurrency
// expectation about a row's current status does not hold at update time.
type VersionConflictError struct {
	Entity string
	ID     string
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}
func (e *VersionConflictError) ErrorCode() string { return "VERSION_CONFLICT" }
func (e *VersionConflictError) Context() map[string]string {
	return map[string]string{"entity": e.Entity, "id": e.ID}
}
func (e *VersionConflictError) SuggestedAction() string {
	return "reload the entity and retry the operation"
}

// ErrNotFound is returned when an entity lookup by ID finds no row.
var ErrNotFound = fmt.Errorf("not found")

// ErrIDCollisionExhausted is returned when ID generation could not find a
// free ID within the bounded number of retry attempts.
var ErrIDCollisionExhausted = fmt.Errorf("exhausted id generation attempts")
