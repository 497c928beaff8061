package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goobi/goobi-production/pkg/compiler"
	"github.com/goobi/goobi-production/pkg/diagram"
	"github.com/goobi/goobi-production/pkg/events"
	"github.com/goobi/goobi-production/pkg/metrics"
	"github.com/goobi/goobi-production/pkg/mocks"
	"github.com/goobi/goobi-production/pkg/models"
	"github.com/goobi/goobi-production/pkg/persistence"
	"github.com/goobi/goobi-production/pkg/persistence/file"
	"github.com/goobi/goobi-production/pkg/testutil"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type taskSummary struct {
	Title     string
	Ordering  int
	Condition string
}

func summarize(tasks []*models.Task) []taskSummary {
	out := make([]taskSummary, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, taskSummary{task.Title, task.Ordering, task.WorkflowCondition})
	}

	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTemplates(t *testing.T, source *testutil.Source, opts ...Option) (*Templates, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	return NewTemplates(testLogger(), store, source, opts...), store
}

func TestTemplates_Create(t *testing.T) {
	publisher := &mocks.MockEventBus{}
	publisher.On("Publish", mock.Anything, "1", mock.MatchedBy(func(e events.TemplateCreated) bool {
		return e.TemplateID == 1 && e.WorkflowID == 1 && e.TaskCount == 4 && e.Diagram == "digitization"
	})).Return(nil).Once()

	service, store := newTestTemplates(t, testutil.NewSource(testutil.BranchingDiagram("digitization")),
		WithPublisher(publisher))

	template, err := service.Create(t.Context(), "digitization")
	require.NoError(t, err)

	assert.Equal(t, int64(1), template.ID)
	assert.Equal(t, int64(1), template.WorkflowID)
	assert.Equal(t, "Digitization digitization", template.Title)
	assert.Nil(t, template.DocketID)
	assert.Equal(t, []taskSummary{
		{"A", 1, "default"},
		{"B", 2, "x=1"},
		{"C", 2, "x=2"},
		{"D", 3, "default"},
	}, summarize(template.Tasks))
	assert.Equal(t, "ocr", template.Tasks[2].ScriptName)
	assert.True(t, template.Tasks[0].TypeImagesWrite)

	stored, err := store.TemplateByID(t.Context(), template.ID)
	require.NoError(t, err)
	assert.Equal(t, summarize(template.Tasks), summarize(stored.Tasks))

	workflow, err := store.WorkflowByID(t.Context(), template.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, testutil.Digitization, workflow.Title)
	assert.Equal(t, "digitization", workflow.File)
	assert.True(t, workflow.Active)

	publisher.AssertExpectations(t)
}

func TestTemplates_Create_ReusesWorkflow(t *testing.T) {
	service, store := newTestTemplates(t, testutil.NewSource(testutil.LinearDiagram("digitization", "Scanning", "QC")))

	first, err := service.Create(t.Context(), "digitization")
	require.NoError(t, err)

	second, err := service.Create(t.Context(), "digitization")
	require.NoError(t, err)

	assert.Equal(t, first.WorkflowID, second.WorkflowID)
	assert.NotEqual(t, first.ID, second.ID)

	workflows, err := store.Workflows(t.Context())
	require.NoError(t, err)
	assert.Len(t, workflows, 1)

	templates, err := store.TemplatesByWorkflow(t.Context(), first.WorkflowID)
	require.NoError(t, err)
	assert.Len(t, templates, 2)
}

func TestTemplates_Create_Errors(t *testing.T) {
	tests := []struct {
		name       string
		diagram    string
		check      func(t *testing.T, err error)
		validation bool
		notFound   bool
	}{
		{
			name:    "missing diagram",
			diagram: "missing",
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.ErrorIs(t, err, diagram.ErrDiagramNotFound)
			},
			notFound: true,
		},
		{
			name:    "cycle",
			diagram: "cyclic",
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.ErrorIs(t, err, compiler.ErrCycleDetected)
			},
			validation: true,
		},
		{
			name:    "empty name",
			diagram: " ",
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.ErrorIs(t, err, ErrDiagramRequired)
			},
			validation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store := newTestTemplates(t, testutil.NewSource(testutil.CyclicDiagram("cyclic")))

			template, err := service.Create(t.Context(), tt.diagram)
			require.Error(t, err)
			assert.Nil(t, template)
			tt.check(t, err)
			assert.Equal(t, tt.validation, IsValidationError(err))
			assert.Equal(t, tt.notFound, IsNotFound(err))

			workflows, err := store.Workflows(t.Context())
			require.NoError(t, err)
			assert.Empty(t, workflows, "nothing may be stored")
		})
	}
}

func TestTemplates_ResolveWorkflow(t *testing.T) {
	service, store := newTestTemplates(t, testutil.NewSource())

	created, err := service.ResolveWorkflow(t.Context(), "gdz", "gdz")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	reused, err := service.ResolveWorkflow(t.Context(), "gdz", "gdz")
	require.NoError(t, err)
	assert.Equal(t, created.ID, reused.ID)

	require.NoError(t, store.SaveWorkflow(t.Context(), models.NewWorkflow("gdz", "gdz")))

	_, err = service.ResolveWorkflow(t.Context(), "gdz", "gdz")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousWorkflow)
	assert.True(t, IsConflictError(err))

	workflows, err := store.Workflows(t.Context())
	require.NoError(t, err)
	assert.Len(t, workflows, 2, "an ambiguous lookup must not create a workflow")
}

func TestTemplates_ResolveWorkflow_Concurrent(t *testing.T) {
	service, store := newTestTemplates(t, testutil.NewSource())

	var wg sync.WaitGroup

	ids := make([]int64, 8)

	for i := range ids {
		wg.Add(1)

		go func() {
			defer wg.Done()

			workflow, err := service.ResolveWorkflow(context.Background(), "gdz", "gdz")
			if assert.NoError(t, err) {
				ids[i] = workflow.ID
			}
		}()
	}

	wg.Wait()

	workflows, err := store.Workflows(t.Context())
	require.NoError(t, err)
	require.Len(t, workflows, 1)

	for _, id := range ids {
		assert.Equal(t, workflows[0].ID, id)
	}
}

func TestTemplates_Create_AmbiguousWorkflowStoresNothing(t *testing.T) {
	service, store := newTestTemplates(t, testutil.NewSource(testutil.LinearDiagram("digitization", "Scanning")))

	require.NoError(t, store.SaveWorkflow(t.Context(), models.NewWorkflow(testutil.Digitization, "digitization")))
	require.NoError(t, store.SaveWorkflow(t.Context(), models.NewWorkflow(testutil.Digitization, "digitization")))

	_, err := service.Create(t.Context(), "digitization")
	require.ErrorIs(t, err, ErrAmbiguousWorkflow)

	for _, id := range []int64{1, 2} {
		templates, err := store.TemplatesByWorkflow(t.Context(), id)
		require.NoError(t, err)
		assert.Empty(t, templates)
	}
}

func TestTemplates_Create_Catalogs(t *testing.T) {
	d := testutil.LinearDiagram("digitization", "Scanning")
	source := testutil.NewSource(d)
	service, store := newTestTemplates(t, source)

	docket := &models.Docket{Title: "Standard", File: "docket.xsl"}
	require.NoError(t, store.SaveDocket(t.Context(), docket))

	d.Process.DocketID = docket.ID
	d.Process.RulesetID = -1
	d.Process.OutputName = "digitized"

	template, err := service.Create(t.Context(), "digitization")
	require.NoError(t, err)
	require.NotNil(t, template.DocketID)
	assert.Equal(t, docket.ID, *template.DocketID)
	assert.Nil(t, template.RulesetID)
	assert.Equal(t, "digitized", template.OutputName)

	d.Process.RulesetID = 42

	_, err = service.Create(t.Context(), "digitization")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrRulesetNotFound)
	assert.True(t, IsNotFound(err))

	templates, err := store.TemplatesByWorkflow(t.Context(), template.WorkflowID)
	require.NoError(t, err)
	assert.Len(t, templates, 1)
}

func TestTemplates_RecompileWorkflow(t *testing.T) {
	source := testutil.NewSource(testutil.LinearDiagram("digitization", "Scanning"))

	publisher := &mocks.MockEventBus{}
	publisher.On("Publish", mock.Anything, mock.Anything, mock.AnythingOfType("events.TemplateCreated")).Return(nil)
	publisher.On("Publish", mock.Anything, "1", mock.MatchedBy(func(e events.WorkflowTemplatesRecompiled) bool {
		return len(e.TemplateIDs) == 2 && e.TaskCount == 4
	})).Return(errors.New("broker down"))

	service, store := newTestTemplates(t, source, WithPublisher(publisher))

	first, err := service.Create(t.Context(), "digitization")
	require.NoError(t, err)
	_, err = service.Create(t.Context(), "digitization")
	require.NoError(t, err)

	source.Put(testutil.BranchingDiagram("digitization"), time.Now())

	want := []taskSummary{
		{"A", 1, "default"},
		{"B", 2, "x=1"},
		{"C", 2, "x=2"},
		{"D", 3, "default"},
	}

	for range 2 {
		templates, err := service.RecompileWorkflow(t.Context(), first.WorkflowID)
		require.NoError(t, err, "publishing failures are not returned")
		require.Len(t, templates, 2)
		assert.NotSame(t, templates[0].Tasks[0], templates[1].Tasks[0])

		stored, err := store.TemplatesByWorkflow(t.Context(), first.WorkflowID)
		require.NoError(t, err)

		for _, template := range stored {
			assert.Equal(t, want, summarize(template.Tasks))
			assert.Equal(t, "Digitization digitization", template.Title)
		}
	}

	publisher.AssertNumberOfCalls(t, "Publish", 4)
}

func TestTemplates_RecompileWorkflow_CompileErrorKeepsTemplates(t *testing.T) {
	source := testutil.NewSource(testutil.LinearDiagram("cyclic", "Scanning"))
	service, store := newTestTemplates(t, source)

	template, err := service.Create(t.Context(), "cyclic")
	require.NoError(t, err)

	source.Put(testutil.CyclicDiagram("cyclic"), time.Now())

	_, err = service.RecompileWorkflow(t.Context(), template.WorkflowID)
	require.ErrorIs(t, err, compiler.ErrCycleDetected)

	stored, err := store.TemplateByID(t.Context(), template.ID)
	require.NoError(t, err)
	assert.Equal(t, []taskSummary{{"Scanning", 1, "default"}}, summarize(stored.Tasks))
}

func TestTemplates_RecompileWorkflow_NotFound(t *testing.T) {
	service, _ := newTestTemplates(t, testutil.NewSource())

	_, err := service.RecompileWorkflow(t.Context(), 12)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestTemplates_RecompileWorkflow_SaveFailure(t *testing.T) {
	store := &mocks.MockPersistence{}
	workflow := &models.Workflow{ID: 3, Title: testutil.Digitization, File: "digitization", Active: true}
	templates := []*models.Template{
		{ID: 1, Title: "old", WorkflowID: 3},
		{ID: 2, Title: "old", WorkflowID: 3},
	}

	store.On("WorkflowByID", mock.Anything, int64(3)).Return(workflow, nil)
	store.On("TemplatesByWorkflow", mock.Anything, int64(3)).Return(templates, nil)
	store.On("SaveTemplates", mock.Anything, templates).Return(errors.New("disk full"))

	service := NewTemplates(testLogger(), store,
		testutil.NewSource(testutil.LinearDiagram("digitization", "Scanning")))

	_, err := service.RecompileWorkflow(t.Context(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, IsValidationError(err))

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "SaveTemplate", mock.Anything, mock.Anything)
}

func TestTemplates_Create_SaveFailureStoresNoWorkflow(t *testing.T) {
	root := t.TempDir()
	store := file.NewPersistence(root)

	// A directory in place of the staged template document makes the template write fail.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "templates", "1.json.tmp"), 0o750))

	service := NewTemplates(testLogger(), store,
		testutil.NewSource(testutil.BranchingDiagram("digitization")))

	_, err := service.Create(t.Context(), "digitization")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save template")

	workflows, err := store.Workflows(t.Context())
	require.NoError(t, err)
	assert.Empty(t, workflows)

	// Once the store recovers, the workflow is created with the template.
	require.NoError(t, os.Remove(filepath.Join(root, "templates", "1.json.tmp")))

	template, err := service.Create(t.Context(), "digitization")
	require.NoError(t, err)

	workflows, err = store.Workflows(t.Context())
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, workflows[0].ID, template.WorkflowID)
}

func TestTemplates_Create_ExistingWorkflowSaveFailure(t *testing.T) {
	store := &mocks.MockPersistence{}
	workflow := &models.Workflow{ID: 5, Title: testutil.Digitization, File: "digitization", Active: true}

	store.On("WorkflowsByTitleAndFile", mock.Anything, testutil.Digitization, "digitization").
		Return([]*models.Workflow{workflow}, nil)
	store.On("SaveWorkflowTemplate", mock.Anything, workflow, mock.AnythingOfType("*models.Template")).
		Return(errors.New("disk full"))

	service := NewTemplates(testLogger(), store,
		testutil.NewSource(testutil.LinearDiagram("digitization", "Scanning")))

	_, err := service.Create(t.Context(), "digitization")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "SaveWorkflow", mock.Anything, mock.Anything)
}

func TestTemplates_Preview(t *testing.T) {
	m := metrics.New()
	service, store := newTestTemplates(t, testutil.NewSource(testutil.BranchingDiagram("digitization")), WithMetrics(m))

	preview, err := service.Preview(t.Context(), "digitization")
	require.NoError(t, err)
	assert.Equal(t, "digitization", preview.Diagram)
	assert.Equal(t, testutil.Digitization, preview.Workflow)
	assert.Len(t, preview.Tasks, 4)

	workflows, err := store.Workflows(t.Context())
	require.NoError(t, err)
	assert.Empty(t, workflows)

	count, err := promtestutil.GatherAndCount(m.Registry(), "goobi_template_compilations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTemplates_PreviewDefinition(t *testing.T) {
	service, _ := newTestTemplates(t, testutil.NewSource())

	definition := []byte(`
process:
  id: newspaper
nodes:
  - {key: start, kind: start}
  - {key: scan, kind: step, name: Scanning}
  - {key: split, kind: gateway, direction: Diverging}
  - {key: ocr, kind: step, name: OCR}
  - {key: qc, kind: step, name: QC}
flows:
  - {from: start, to: scan}
  - {from: scan, to: split}
  - {from: split, to: ocr, condition: "ocr=true"}
  - {from: split, to: qc}
`)

	preview, err := service.PreviewDefinition(t.Context(), "inline", definition)
	require.NoError(t, err)
	assert.Equal(t, "newspaper", preview.Title)
	assert.Equal(t, []taskSummary{
		{"Scanning", 1, "default"},
		{"OCR", 2, "ocr=true"},
		{"QC", 2, "default"},
	}, summarize(preview.Tasks))

	_, err = service.PreviewDefinition(t.Context(), "inline", []byte("nodes: 3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, diagram.ErrInvalidDiagram)
	assert.True(t, IsValidationError(err))
}
