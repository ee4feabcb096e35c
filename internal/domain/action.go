package domain

import (
	"fmt"
	"strings"
)

// Action is one of the workflow verbs a caller may submit.
type Action string

const (
	ActionStart    Action = "start"
	ActionRefine   Action = "refine"
	ActionEnhance  Action = "enhance"
	ActionReview   Action = "review"
	ActionEdited   Action = "edited"
	ActionApproved Action = "approved"
	ActionRejected Action = "rejected"
)

// ValidActions returns the accepted action names in presentation order.
func ValidActions() []string {
	return []string{
		string(ActionStart),
		string(ActionRefine),
		string(ActionEnhance),
		string(ActionReview),
		string(ActionEdited),
		string(ActionApproved),
		string(ActionRejected),
	}
}

// ParseAction normalizes and validates a raw action name. Unknown names fail
// with ErrInvalidAction and an error message listing the valid set.
func ParseAction(raw string) (Action, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for _, valid := range ValidActions() {
		if name == valid {
			return Action(name), nil
		}
	}
	return "", fmt.Errorf("%w: %q, valid actions are %s",
		ErrInvalidAction, raw, strings.Join(ValidActions(), ", "))
}
