// Package models defines the persisted records produced by compiling workflow diagrams.
package models

import "time"

// Workflow identifies a diagram. The pair (Title, File) is unique: Title is the process id inside
// the diagram, File the diagram resource name.
type Workflow struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"      validate:"required"`
	File      string    `json:"file"       validate:"required"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWorkflow creates an unsaved, active workflow for the given process id and diagram name.
func NewWorkflow(title, file string) *Workflow {
	return &Workflow{
		Title:  title,
		File:   file,
		Active: true,
	}
}

// Docket is a print template assigned to templates by id.
type Docket struct {
	ID    int64  `json:"id"`
	Title string `json:"title" validate:"required"`
	File  string `json:"file"  validate:"required"`
}

// Ruleset is a metadata ruleset assigned to templates by id.
type Ruleset struct {
	ID    int64  `json:"id"`
	Title string `json:"title" validate:"required"`
	File  string `json:"file"  validate:"required"`
}
