package services

import (
	"errors"
	"testing"

	"github.com/goobi/goobi-production/pkg/mocks"
	"github.com/goobi/goobi-production/pkg/models"
	"github.com/goobi/goobi-production/pkg/persistence"
	"github.com/goobi/goobi-production/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflow(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewWorkflow(persistence)

	assert.NotNil(t, service)
	assert.Equal(t, persistence, service.persistence)
}

func TestWorkflow_HealthCheck(t *testing.T) {
	healthy := &mocks.MockPersistence{}
	healthy.On("HealthCheck", mock.Anything).Return(nil)

	message, ok := NewWorkflow(healthy).HealthCheck(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	broken := &mocks.MockPersistence{}
	broken.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

	message, ok = NewWorkflow(broken).HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Contains(t, message, "connection refused")

	_, ok = NewWorkflow(nil).HealthCheck(t.Context())
	assert.False(t, ok)
}

func seedWorkflows(t *testing.T) *Workflow {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	for _, w := range []*models.Workflow{
		models.NewWorkflow("newspaper", "newspaper"),
		models.NewWorkflow("digitization", "digitization"),
		models.NewWorkflow("digitization", "digitization-v2"),
		{Title: "archive", File: "archive"},
	} {
		require.NoError(t, store.SaveWorkflow(t.Context(), w))
	}

	return NewWorkflow(store)
}

func TestWorkflow_ListWorkflows(t *testing.T) {
	service := seedWorkflows(t)
	inactive := false

	tests := []struct {
		name      string
		req       ListWorkflowsRequest
		wantFiles []string
		wantTotal int64
		wantNext  bool
	}{
		{
			name:      "defaults",
			req:       ListWorkflowsRequest{},
			wantFiles: []string{"newspaper", "digitization", "digitization-v2", "archive"},
			wantTotal: 4,
		},
		{
			name:      "by title",
			req:       ListWorkflowsRequest{Title: "digitization"},
			wantFiles: []string{"digitization", "digitization-v2"},
			wantTotal: 2,
		},
		{
			name:      "by title and file",
			req:       ListWorkflowsRequest{Title: "digitization", File: "digitization"},
			wantFiles: []string{"digitization"},
			wantTotal: 1,
		},
		{
			name:      "inactive",
			req:       ListWorkflowsRequest{Active: &inactive},
			wantFiles: []string{"archive"},
			wantTotal: 1,
		},
		{
			name:      "sorted by title descending",
			req:       ListWorkflowsRequest{SortBy: "title", SortOrder: "desc", Limit: 2},
			wantFiles: []string{"newspaper", "digitization"},
			wantTotal: 4,
			wantNext:  true,
		},
		{
			name:      "offset past the end",
			req:       ListWorkflowsRequest{Offset: 10},
			wantFiles: []string{},
			wantTotal: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.ListWorkflows(t.Context(), tt.req)
			require.NoError(t, err)

			files := make([]string, 0, len(result.Workflows))
			for _, w := range result.Workflows {
				files = append(files, w.File)
			}

			assert.Equal(t, tt.wantFiles, files)
			assert.Equal(t, tt.wantTotal, result.TotalCount)
			assert.Equal(t, tt.wantNext, result.HasNextPage)
		})
	}
}

func TestWorkflow_ListWorkflows_InvalidRequest(t *testing.T) {
	service := seedWorkflows(t)

	_, err := service.ListWorkflows(t.Context(), ListWorkflowsRequest{SortBy: "owner"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSortField)
	assert.True(t, IsValidationError(err))

	_, err = service.ListWorkflows(t.Context(), ListWorkflowsRequest{SortOrder: "up"})
	assert.ErrorIs(t, err, ErrInvalidSortOrder)
}

func TestWorkflow_Templates(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	service := NewWorkflow(store)

	workflow := models.NewWorkflow("digitization", "digitization")
	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))
	require.NoError(t, store.SaveTemplate(t.Context(), &models.Template{Title: "Digitization", WorkflowID: workflow.ID}))

	templates, err := service.Templates(t.Context(), workflow.ID)
	require.NoError(t, err)
	require.Len(t, templates, 1)

	template, err := service.Template(t.Context(), templates[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Digitization", template.Title)

	_, err = service.Templates(t.Context(), 99)
	assert.True(t, persistence.IsWorkflowNotFound(err))
	assert.True(t, IsNotFound(err))

	_, err = service.FetchByID(t.Context(), 99)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}
