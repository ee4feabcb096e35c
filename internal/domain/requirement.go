package domain

import "time"

// Requirement provenance tags
const (
	SourceAgentGenerated = "agent_generated"
	SourceUserEdited     = "user_edited"
	SourceRefined        = "refined"
	SourceEnhanced       = "enhanced"
)

// Requirement is a versioned unit of analyzed content belonging to a session
type Requirement struct {
	CreatedAt       time.Time `json:"created_at"`
	EditedContent   string    `json:"edited_content,omitempty"`
	ID              string    `json:"id"`
	OriginalContent string    `json:"original_content"`
	Priority        string    `json:"priority"`
	RequirementType string    `json:"requirement_type"`
	SessionID       string    `json:"session_id"`
	Source          string    `json:"source"`
	Status          string    `json:"status"`
	Tags            []string  `json:"tags,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
	Version         int       `json:"version"`
}

// CurrentContent resolves the authoritative content for generation input:
// the human edit when present, the agent output otherwise.
func (r Requirement) CurrentContent() string {
	if r.EditedContent != "" {
		return r.EditedContent
	}
	return r.OriginalContent
}
