package file

import (
	"context"
	"fmt"

	"github.com/goobi/goobi-production/pkg/models"
	"github.com/goobi/goobi-production/pkg/persistence"
)

// TemplateByID retrieves a template together with its tasks.
func (fp *Persistence) TemplateByID(_ context.Context, id int64) (*models.Template, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	template, ok, err := read[models.Template](fp, templatesDir, id)
	if err != nil {
		return nil, persistence.NewTemplateError("TemplateByID", id, err)
	}

	if !ok {
		return nil, persistence.NewTemplateError("TemplateByID", id, persistence.ErrTemplateNotFound)
	}

	return template, nil
}

// TemplatesByWorkflow returns the templates of a workflow ordered by id.
func (fp *Persistence) TemplatesByWorkflow(_ context.Context, workflowID int64) ([]*models.Template, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	templates, err := readAll[models.Template](fp, templatesDir)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Template, 0, len(templates))

	for _, template := range templates {
		if template.WorkflowID == workflowID {
			matches = append(matches, template)
		}
	}

	return matches, nil
}

// SaveTemplate writes the template document, tasks included.
func (fp *Persistence) SaveTemplate(ctx context.Context, template *models.Template) error {
	return fp.SaveTemplates(ctx, []*models.Template{template})
}

// SaveTemplates assigns ids and encodes every template, then stores all documents together:
// a failure leaves every stored template unchanged.
func (fp *Persistence) SaveTemplates(_ context.Context, templates []*models.Template) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	docs := make([]document, 0, len(templates))

	for _, template := range templates {
		doc, err := fp.templateDocument(template)
		if err != nil {
			return persistence.NewTemplateError("SaveTemplates", template.ID, err)
		}

		docs = append(docs, doc)
	}

	if err := fp.writeAll(docs); err != nil {
		return fmt.Errorf("failed to save templates: %w", err)
	}

	return nil
}

// SaveWorkflowTemplate stores a new workflow together with its first template. An existing
// workflow is left as it is.
func (fp *Persistence) SaveWorkflowTemplate(_ context.Context, workflow *models.Workflow, template *models.Template) (err error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	newWorkflow := workflow.ID == 0
	newTemplate := template.ID == 0

	defer func() {
		if err == nil {
			return
		}

		if newWorkflow {
			workflow.ID = 0
		}

		if newTemplate {
			template.ID = 0
		}
	}()

	docs := make([]document, 0, 2)

	if newWorkflow {
		id, err := fp.nextID(workflowsDir)
		if err != nil {
			return persistence.NewWorkflowError("SaveWorkflowTemplate", 0, err)
		}

		workflow.ID = id
		touch(&workflow.CreatedAt, &workflow.UpdatedAt)

		data, err := fp.encode(workflowsDir, id, workflow)
		if err != nil {
			return persistence.NewWorkflowError("SaveWorkflowTemplate", id, err)
		}

		docs = append(docs, document{collection: workflowsDir, id: id, data: data})
	}

	template.WorkflowID = workflow.ID

	doc, err := fp.templateDocument(template)
	if err != nil {
		return persistence.NewTemplateError("SaveWorkflowTemplate", template.ID, err)
	}

	if err := fp.writeAll(append(docs, doc)); err != nil {
		return persistence.NewTemplateError("SaveWorkflowTemplate", template.ID, err)
	}

	return nil
}

func (fp *Persistence) templateDocument(template *models.Template) (document, error) {
	if err := fp.assignIDs(template); err != nil {
		return document{}, err
	}

	touch(&template.CreatedAt, &template.UpdatedAt)

	data, err := fp.encode(templatesDir, template.ID, template)
	if err != nil {
		return document{}, err
	}

	return document{collection: templatesDir, id: template.ID, data: data}, nil
}

func (fp *Persistence) assignIDs(template *models.Template) error {
	if template.ID == 0 {
		id, err := fp.nextID(templatesDir)
		if err != nil {
			return err
		}

		template.ID = id
	}

	for _, task := range template.Tasks {
		if task.ID == 0 {
			id, err := fp.nextID(tasksSeq)
			if err != nil {
				return err
			}

			task.ID = id
		}

		task.TemplateID = template.ID
	}

	return nil
}
