package pipeline

import "strings"

const (
	// EventPush is the only event name that can trigger a run.
	EventPush = "push"

	branchRefPrefix = "refs/heads/"
)

// Event is the source-control notification a run is triggered by.
type Event struct {
	Name       string `json:"name"`
	Ref        string `json:"ref"`
	Commit     string `json:"commit"`
	Repository string `json:"repository,omitempty"`
}

// Branch returns the branch name of a branch ref, or the empty string when
// Ref does not point at a branch (tags, pull request refs).
func (e Event) Branch() string {
	if !strings.HasPrefix(e.Ref, branchRefPrefix) {
		return ""
	}
	return strings.TrimPrefix(e.Ref, branchRefPrefix)
}

// Qualifies reports whether e is a push to exactly branch.
func (e Event) Qualifies(branch string) bool {
	return e.Name == EventPush && branch != "" && e.Branch() == branch
}
