package mocks

import (
	"context"

	"github.com/goobi/goobi-production/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockPersistence) WorkflowByID(ctx context.Context, id int64) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockPersistence) WorkflowsByTitleAndFile(ctx context.Context, title, file string) ([]*models.Workflow, error) {
	args := m.Called(ctx, title, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockPersistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockPersistence) TemplateByID(ctx context.Context, id int64) (*models.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Template), args.Error(1)
}

func (m *MockPersistence) TemplatesByWorkflow(ctx context.Context, workflowID int64) ([]*models.Template, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Template), args.Error(1)
}

func (m *MockPersistence) SaveTemplate(ctx context.Context, template *models.Template) error {
	args := m.Called(ctx, template)

	return args.Error(0)
}

func (m *MockPersistence) SaveTemplates(ctx context.Context, templates []*models.Template) error {
	args := m.Called(ctx, templates)

	return args.Error(0)
}

func (m *MockPersistence) SaveWorkflowTemplate(ctx context.Context, workflow *models.Workflow, template *models.Template) error {
	args := m.Called(ctx, workflow, template)

	return args.Error(0)
}

func (m *MockPersistence) DocketByID(ctx context.Context, id int64) (*models.Docket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Docket), args.Error(1)
}

func (m *MockPersistence) SaveDocket(ctx context.Context, docket *models.Docket) error {
	args := m.Called(ctx, docket)

	return args.Error(0)
}

func (m *MockPersistence) RulesetByID(ctx context.Context, id int64) (*models.Ruleset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Ruleset), args.Error(1)
}

func (m *MockPersistence) SaveRuleset(ctx context.Context, ruleset *models.Ruleset) error {
	args := m.Called(ctx, ruleset)

	return args.Error(0)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
