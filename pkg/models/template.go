package models

import "time"

// DefaultCondition is the workflow condition of tasks that are not guarded by a branch.
const DefaultCondition = "default"

// Template is the compiled, persisted form of a diagram: an ordered list of task definitions
// belonging to a Workflow.
type Template struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"                validate:"required"`
	OutputName string    `json:"output_name"`
	WorkflowID int64     `json:"workflow_id"          validate:"required,gt=0"`
	DocketID   *int64    `json:"docket_id,omitempty"`
	RulesetID  *int64    `json:"ruleset_id,omitempty"`
	Tasks      []*Task   `json:"tasks"                validate:"dive"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReplaceTasks drops the current tasks and attaches copies of tasks.
func (t *Template) ReplaceTasks(tasks []*Task) {
	t.Tasks = make([]*Task, 0, len(tasks))

	for _, task := range tasks {
		clone := *task
		clone.ID = 0
		clone.TemplateID = t.ID
		t.Tasks = append(t.Tasks, &clone)
	}
}

// Task is one executable task definition of a Template.
type Task struct {
	ID         int64  `json:"id"`
	TemplateID int64  `json:"template_id"`
	Title      string `json:"title"                  validate:"required"`
	Ordering   int    `json:"ordering"               validate:"gt=0"`
	Priority   int    `json:"priority"`
	EditType   int    `json:"edit_type"`
	BatchStep  bool   `json:"batch_step"`

	TypeAutomatic        bool `json:"type_automatic"`
	TypeExportDMS        bool `json:"type_export_dms"`
	TypeExportRussian    bool `json:"type_export_russian"`
	TypeMetadata         bool `json:"type_metadata"`
	TypeImportFileUpload bool `json:"type_import_file_upload"`
	TypeImagesRead       bool `json:"type_images_read"`
	TypeImagesWrite      bool `json:"type_images_write"`
	TypeAcceptClose      bool `json:"type_accept_close"`
	TypeCloseVerify      bool `json:"type_close_verify"`

	ScriptName string `json:"script_name,omitempty"`
	ScriptPath string `json:"script_path,omitempty"`

	// WorkflowCondition is the guard under which the task runs; "default" when unguarded,
	// space-joined when several branches reach the task.
	WorkflowCondition string `json:"workflow_condition" validate:"required"`
}
