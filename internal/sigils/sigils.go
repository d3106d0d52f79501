// Package sigils extracts angle-bracket markers from accumulated agent
// text. Every extractor here is pure: no I/O, no mutation, first-match-wins
// (except <journal> and <knowledge>, which collect every occurrence), and
// malformed input is silently ignored rather than treated as an error.
package sigils

import (
	"regexp"
	"strings"
)

// Model names accepted by <next-model>.
const (
	ModelOpus   = "opus"
	ModelSonnet = "sonnet"
	ModelHaiku  = "haiku"
)

// Phase names accepted by <phase-complete>.
const (
	PhaseSpec  = "spec"
	PhasePlan  = "plan"
	PhaseBuild = "build"
)

var validModels = map[string]bool{ModelOpus: true, ModelSonnet: true, ModelHaiku: true}
var validPhases = map[string]bool{PhaseSpec: true, PhasePlan: true, PhaseBuild: true}

// Result is the full set of sigils extracted from one text buffer. Absent
// values are represented as their Go zero value; booleans distinguish
// "present with empty payload" (e.g. <tasks-created/>) from "absent".
type Result struct {
	TaskDone       string
	TaskFailed     string
	PromiseComplete bool
	PromiseFailure  bool
	NextModel      string
	Journal        []string
	Knowledge      []KnowledgeNote
	PhaseComplete  string
	TasksCreated   bool
	VerifyPass     bool
	VerifyFail     string
	VerifyFailSet  bool
	ReviewPass     bool
	ReviewChanges  string
	ReviewChangesSet bool
}

// KnowledgeNote is one <knowledge> occurrence with its attributes and body.
type KnowledgeNote struct {
	Tags  []string
	Title string
	Body  string
}

var (
	reTaskDone      = regexp.MustCompile(`(?s)<task-done>(.*?)</task-done>`)
	reTaskFailed    = regexp.MustCompile(`(?s)<task-failed>(.*?)</task-failed>`)
	rePromise       = regexp.MustCompile(`(?s)<promise>(.*?)</promise>`)
	reNextModel     = regexp.MustCompile(`(?s)<next-model>(.*?)</next-model>`)
	reJournal       = regexp.MustCompile(`(?s)<journal>(.*?)</journal>`)
	reKnowledge     = regexp.MustCompile(`(?s)<knowledge([^>]*)>(.*?)</knowledge>`)
	reKnowledgeTags = regexp.MustCompile(`tags\s*=\s*"([^"]*)"`)
	reKnowledgeTitle = regexp.MustCompile(`title\s*=\s*"([^"]*)"`)
	rePhaseComplete = regexp.MustCompile(`(?s)<phase-complete>(.*?)</phase-complete>`)
	reTasksCreated  = regexp.MustCompile(`<tasks-created\s*/?>(?:</tasks-created>)?`)
	reVerifyPass    = regexp.MustCompile(`<verify-pass\s*/>`)
	reVerifyFail    = regexp.MustCompile(`(?s)<verify-fail>(.*?)</verify-fail>`)
	reReviewPass    = regexp.MustCompile(`<review-pass\s*/>`)
	reReviewChanges = regexp.MustCompile(`(?s)<review-changes>(.*?)</review-changes>`)
)

// ExtractAll runs every extractor over text and returns the combined
// Result. Extraction order is irrelevant: each regex scans the whole buffer
// independently, so the result is the same regardless of which sigils
// appear first (spec.md §4.3 "order-independent across sigil kinds").
func ExtractAll(text string) Result {
	var r Result

	if m := reTaskDone.FindStringSubmatch(text); m != nil {
		if id := strings.TrimSpace(m[1]); id != "" {
			r.TaskDone = id
		}
	}
	if m := reTaskFailed.FindStringSubmatch(text); m != nil {
		if id := strings.TrimSpace(m[1]); id != "" {
			r.TaskFailed = id
		}
	}
	if m := rePromise.FindStringSubmatch(text); m != nil {
		switch strings.TrimSpace(m[1]) {
		case "COMPLETE":
			r.PromiseComplete = true
		case "FAILURE":
			r.PromiseFailure = true
		}
	}
	if m := reNextModel.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		if validModels[name] {
			r.NextModel = name
		}
	}
	for _, m := range reJournal.FindAllStringSubmatch(text, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			r.Journal = append(r.Journal, body)
		}
	}
	for _, m := range reKnowledge.FindAllStringSubmatch(text, -1) {
		attrs, body := m[1], strings.TrimSpace(m[2])
		if body == "" {
			continue
		}
		note := KnowledgeNote{Body: body}
		if tm := reKnowledgeTags.FindStringSubmatch(attrs); tm != nil {
			note.Tags = splitTags(tm[1])
		}
		if tm := reKnowledgeTitle.FindStringSubmatch(attrs); tm != nil {
			note.Title = strings.TrimSpace(tm[1])
		}
		if len(note.Tags) == 0 || note.Title == "" {
			continue
		}
		r.Knowledge = append(r.Knowledge, note)
	}
	if m := rePhaseComplete.FindStringSubmatch(text); m != nil {
		phase := strings.TrimSpace(m[1])
		if validPhases[phase] {
			r.PhaseComplete = phase
		}
	}
	if reTasksCreated.MatchString(text) {
		r.TasksCreated = true
	}
	if reVerifyPass.MatchString(text) {
		r.VerifyPass = true
	}
	if m := reVerifyFail.FindStringSubmatch(text); m != nil {
		r.VerifyFail = strings.TrimSpace(m[1])
		r.VerifyFailSet = true
	}
	if reReviewPass.MatchString(text) {
		r.ReviewPass = true
	}
	if m := reReviewChanges.FindStringSubmatch(text); m != nil {
		r.ReviewChanges = strings.TrimSpace(m[1])
		r.ReviewChangesSet = true
	}
	return r
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
