package file

import (
	"context"
	"fmt"

	"github.com/goobi/goobi-production/pkg/models"
	"github.com/goobi/goobi-production/pkg/persistence"
)

// Workflows returns all workflows ordered by id.
func (fp *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return readAll[models.Workflow](fp, workflowsDir)
}

// WorkflowByID retrieves a workflow by its ID from the file system.
func (fp *Persistence) WorkflowByID(_ context.Context, id int64) (*models.Workflow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	workflow, ok, err := read[models.Workflow](fp, workflowsDir, id)
	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	if !ok {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

// WorkflowsByTitleAndFile scans all workflows for the (title, file) pair.
func (fp *Persistence) WorkflowsByTitleAndFile(ctx context.Context, title, file string) ([]*models.Workflow, error) {
	workflows, err := fp.Workflows(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Workflow, 0, 1)

	for _, workflow := range workflows {
		if workflow.Title == title && workflow.File == file {
			matches = append(matches, workflow)
		}
	}

	return matches, nil
}

// SaveWorkflow saves a workflow to the file system.
func (fp *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if workflow.ID == 0 {
		id, err := fp.nextID(workflowsDir)
		if err != nil {
			return persistence.NewWorkflowError("SaveWorkflow", 0, err)
		}

		workflow.ID = id
	}

	touch(&workflow.CreatedAt, &workflow.UpdatedAt)

	data, err := fp.encode(workflowsDir, workflow.ID, workflow)
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	if err := fp.write(workflowsDir, workflow.ID, data); err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

// DocketByID retrieves a docket by id.
func (fp *Persistence) DocketByID(_ context.Context, id int64) (*models.Docket, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	docket, ok, err := read[models.Docket](fp, docketsDir, id)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("docket %d: %w", id, persistence.ErrDocketNotFound)
	}

	return docket, nil
}

func (fp *Persistence) SaveDocket(_ context.Context, docket *models.Docket) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if docket.ID == 0 {
		id, err := fp.nextID(docketsDir)
		if err != nil {
			return err
		}

		docket.ID = id
	}

	data, err := fp.encode(docketsDir, docket.ID, docket)
	if err != nil {
		return err
	}

	return fp.write(docketsDir, docket.ID, data)
}

// RulesetByID retrieves a ruleset by id.
func (fp *Persistence) RulesetByID(_ context.Context, id int64) (*models.Ruleset, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	ruleset, ok, err := read[models.Ruleset](fp, rulesetsDir, id)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("ruleset %d: %w", id, persistence.ErrRulesetNotFound)
	}

	return ruleset, nil
}

func (fp *Persistence) SaveRuleset(_ context.Context, ruleset *models.Ruleset) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if ruleset.ID == 0 {
		id, err := fp.nextID(rulesetsDir)
		if err != nil {
			return err
		}

		ruleset.ID = id
	}

	data, err := fp.encode(rulesetsDir, ruleset.ID, ruleset)
	if err != nil {
		return err
	}

	return fp.write(rulesetsDir, ruleset.ID, data)
}
