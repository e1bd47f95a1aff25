// Package models defines the core data entities of the agent bus: tasks,
// task specifications, dialogue state, processors, candidates, and workflow
// plans. Types here carry no persistence or transport logic — ports and
// service packages own that.
package models

import "time"

// TaskStatus is a total enumeration over the task lifecycle (spec §3/§4.3).
type TaskStatus string

// Task lifecycle states.
const (
	TaskStatusInitial              TaskStatus = "initial"
	TaskStatusPendingClarification TaskStatus = "pending_clarification"
	TaskStatusClarified            TaskStatus = "clarified"
	TaskStatusPendingRegistration  TaskStatus = "pending_registration"
	TaskStatusPendingMatch         TaskStatus = "pending_match"
	TaskStatusMatching             TaskStatus = "matching"
	TaskStatusProcessorAssigned    TaskStatus = "processor_assigned"
	TaskStatusWorkflowAssigned     TaskStatus = "workflow_assigned"
	TaskStatusPendingConfirmation  TaskStatus = "pending_confirmation"
	TaskStatusConfirmed            TaskStatus = "confirmed"
	TaskStatusExecuting            TaskStatus = "executing"
	TaskStatusCompleted            TaskStatus = "completed"
	TaskStatusFailed               TaskStatus = "failed"
	TaskStatusCancelled            TaskStatus = "cancelled"
	TaskStatusNoMatchFound         TaskStatus = "no_match_found"
	TaskStatusMatchingFailed       TaskStatus = "matching_failed"
	TaskStatusClarificationFailed  TaskStatus = "clarification_failed"
	TaskStatusRegistrationFailed   TaskStatus = "registration_failed"
	TaskStatusRejected             TaskStatus = "rejected"
)

// transitions encodes the legal edges of spec §4.3. Retry edges
// (MatchingFailed/NoMatchFound → Matching) are included as idempotent
// re-entry points.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusInitial:              {TaskStatusPendingClarification},
	TaskStatusPendingClarification: {TaskStatusClarified, TaskStatusClarificationFailed, TaskStatusCancelled},
	TaskStatusClarified:            {TaskStatusPendingRegistration},
	TaskStatusPendingRegistration:  {TaskStatusPendingMatch, TaskStatusRegistrationFailed},
	TaskStatusPendingMatch:         {TaskStatusMatching},
	TaskStatusMatching: {
		// AssignProcessor/AssignWorkflow route the matching result through
		// ProcessorAssigned/WorkflowAssigned before the final
		// PendingConfirmation write (spec §4.8's "submit, then mark
		// PendingConfirmation" sequence); NoMatchFound/MatchingFailed are
		// the two failure classifications.
		TaskStatusProcessorAssigned, TaskStatusWorkflowAssigned,
		TaskStatusPendingConfirmation, TaskStatusNoMatchFound, TaskStatusMatchingFailed,
	},
	TaskStatusMatchingFailed:      {TaskStatusMatching},
	TaskStatusNoMatchFound:        {TaskStatusMatching},
	TaskStatusProcessorAssigned:   {TaskStatusPendingConfirmation},
	TaskStatusWorkflowAssigned:    {TaskStatusPendingConfirmation},
	TaskStatusPendingConfirmation: {TaskStatusConfirmed, TaskStatusRejected},
	TaskStatusConfirmed:           {TaskStatusExecuting},
	TaskStatusExecuting:           {TaskStatusCompleted, TaskStatusFailed},
}

// terminalStatuses are states with no further legal transition.
var terminalStatuses = map[TaskStatus]bool{
	TaskStatusCompleted: true,
	TaskStatusFailed:    true,
	TaskStatusCancelled: true,
	TaskStatusRejected:  true,
}

// IsTerminal reports whether status is one of Completed, Failed, Cancelled or
// Rejected. ClarificationFailed and RegistrationFailed have no outgoing
// transition in the graph but are not reported as terminal. NoMatchFound
// is terminal only after a retry budget is exhausted by the caller; the state
// machine itself always allows re-entry into Matching.
func (s TaskStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// CanTransitionTo reports whether to is a legal next state from s.
func (s TaskStatus) CanTransitionTo(to TaskStatus) bool {
	for _, candidate := range transitions[s] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Task is the primary durable entity (spec §3).
type Task struct {
	TaskID              string
	RequesterID         string
	SpecificationURI    string
	Status              TaskStatus
	AssignedProcessorID string
	WorkflowPlanURI     string
	ResultURI           string
	Error               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
