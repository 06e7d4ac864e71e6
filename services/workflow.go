package services

import (
	"solar-workflow-api/models"
	"time"
)

// StepTemplate is one of the fixed workflow stages every client goes through.
type StepTemplate struct {
	Number       int    `json:"step_number"`
	Name         string `json:"step_name"`
	DurationDays int    `json:"duration_days"`
}

var stepTemplates = []StepTemplate{
	{Number: 1, Name: "Finalization / Loan", DurationDays: 7},
	{Number: 2, Name: "Site Survey", DurationDays: 7},
	{Number: 3, Name: "Dispatch", DurationDays: 14},
	{Number: 4, Name: "Portal Upload", DurationDays: 10},
	{Number: 5, Name: "Bank / Subsidy", DurationDays: 30},
}

// DispatchStep is the step whose sub-steps are instantiated at client creation.
const DispatchStep = 3

var dispatchSubSteps = []string{
	"Material Dispatch",
	"Structure Installation",
	"Panel Installation",
	"Inverter and Wiring",
	"Earthing and Testing",
	"Commissioning",
}

// StepTemplates returns a copy of the step template.
func StepTemplates() []StepTemplate {
	out := make([]StepTemplate, len(stepTemplates))
	copy(out, stepTemplates)
	return out
}

// LastStep is the highest template step number.
func LastStep() int {
	return stepTemplates[len(stepTemplates)-1].Number
}

func stepTemplate(number int) (StepTemplate, bool) {
	for _, t := range stepTemplates {
		if t.Number == number {
			return t, true
		}
	}
	return StepTemplate{}, false
}

// CurrentStepFor returns the lowest step number that is not completed, or the
// last step number when every step is completed.
func CurrentStepFor(steps []models.ClientStep) int {
	current := 0
	for _, s := range steps {
		if s.Status == models.StepStatusCompleted {
			continue
		}
		if current == 0 || s.StepNumber < current {
			current = s.StepNumber
		}
	}
	if current != 0 {
		return current
	}
	for _, s := range steps {
		if s.StepNumber > current {
			current = s.StepNumber
		}
	}
	if current == 0 {
		return stepTemplates[0].Number
	}
	return current
}

// IsOverdue reports whether a step or sub-step is past its due date and not completed.
func IsOverdue(due *time.Time, status string, now time.Time) bool {
	return due != nil && due.Before(now) && status != models.StepStatusCompleted
}

// EffectiveStatus is the status shown to users: overdue when IsOverdue holds.
// A stored legacy "overdue" without a past due date reads as in-progress.
func EffectiveStatus(status string, due *time.Time, now time.Time) string {
	if IsOverdue(due, status, now) {
		return models.StepStatusOverdue
	}
	if status == models.StepStatusOverdue {
		return models.StepStatusInProgress
	}
	return status
}

// completedAtFor applies the completed_at rule for a status transition.
func completedAtFor(prev, next string, completedAt *time.Time, now time.Time) *time.Time {
	switch {
	case next == models.StepStatusCompleted && prev != models.StepStatusCompleted:
		t := now
		return &t
	case next != models.StepStatusCompleted && prev == models.StepStatusCompleted:
		return nil
	default:
		return completedAt
	}
}

func dueDateFor(start time.Time, stepNumber int) *time.Time {
	days := 0
	for _, t := range stepTemplates {
		days += t.DurationDays
		if t.Number == stepNumber {
			break
		}
	}
	due := start.AddDate(0, 0, days)
	return &due
}
