// Package persistence provides the storage abstraction for workflows, compiled templates and
// the dockets and rulesets templates refer to.
package persistence

import (
	"context"

	"github.com/goobi/goobi-production/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id int64) (*models.Workflow, error)
	// WorkflowsByTitleAndFile returns every workflow matching the pair; callers decide how to treat
	// more than one match.
	WorkflowsByTitleAndFile(ctx context.Context, title, file string) ([]*models.Workflow, error)
	// SaveWorkflow inserts the workflow when its ID is zero and assigns the new ID.
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error

	TemplateByID(ctx context.Context, id int64) (*models.Template, error)
	TemplatesByWorkflow(ctx context.Context, workflowID int64) ([]*models.Template, error)
	// SaveTemplate stores the template and replaces its stored tasks with template.Tasks.
	SaveTemplate(ctx context.Context, template *models.Template) error
	// SaveTemplates stores several templates in one unit of work.
	SaveTemplates(ctx context.Context, templates []*models.Template) error
	// SaveWorkflowTemplate inserts workflow when its ID is zero and stores template under it, in
	// one unit of work: on error neither record is stored.
	SaveWorkflowTemplate(ctx context.Context, workflow *models.Workflow, template *models.Template) error

	DocketByID(ctx context.Context, id int64) (*models.Docket, error)
	SaveDocket(ctx context.Context, docket *models.Docket) error
	RulesetByID(ctx context.Context, id int64) (*models.Ruleset, error)
	SaveRuleset(ctx context.Context, ruleset *models.Ruleset) error

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
