package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goobi/goobi-production/pkg/compiler"
	"github.com/goobi/goobi-production/pkg/diagram"
	"github.com/goobi/goobi-production/pkg/diagram/definition"
	"github.com/goobi/goobi-production/pkg/eventbus"
	"github.com/goobi/goobi-production/pkg/events"
	"github.com/goobi/goobi-production/pkg/lock"
	"github.com/goobi/goobi-production/pkg/metrics"
	"github.com/goobi/goobi-production/pkg/models"
	"github.com/goobi/goobi-production/pkg/otelhelper"
	"github.com/goobi/goobi-production/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ResolveLockTTL bounds how long a crashed instance can hold a workflow resolution lock.
const ResolveLockTTL = 30 * time.Second

type Option func(*Templates)

// WithLocker replaces the in-process lock that serializes workflow resolution.
func WithLocker(locker lock.Locker) Option {
	return func(s *Templates) {
		s.locker = locker
	}
}

// WithPublisher enables template lifecycle events.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(s *Templates) {
		s.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Templates) {
		s.tracer = tracer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Templates) {
		s.metrics = m
	}
}

func WithValidator(v *validator.Validate) Option {
	return func(s *Templates) {
		s.validator = v
	}
}

// Templates turns diagrams into persisted templates.
type Templates struct {
	persistence persistence.Persistence
	loader      diagram.Loader
	logger      *slog.Logger
	locker      lock.Locker
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	metrics     *metrics.Metrics
	validator   *validator.Validate
}

func NewTemplates(logger *slog.Logger, persistence persistence.Persistence, loader diagram.Loader, opts ...Option) *Templates {
	s := &Templates{
		persistence: persistence,
		loader:      loader,
		logger:      logger.With("module", "templates"),
		locker:      lock.NewLocal(),
		tracer:      otelhelper.NoopTracer(),
		validator:   validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Preview is a compiled task list that has not been stored.
type Preview struct {
	Diagram    string         `json:"diagram"`
	Workflow   string         `json:"workflow"`
	Title      string         `json:"title"`
	OutputName string         `json:"output_name"`
	Tasks      []*models.Task `json:"tasks"`
}

// ResolveWorkflow returns the single workflow identified by (title, file), creating it when none
// exists. Concurrent callers for the same pair are serialized so only one workflow is created.
func (s *Templates) ResolveWorkflow(ctx context.Context, title, file string) (*models.Workflow, error) {
	var workflow *models.Workflow

	err := s.withWorkflowLock(ctx, title, file, func() error {
		found, err := s.findWorkflow(ctx, title, file)
		if err != nil {
			return err
		}

		if found.ID == 0 {
			if err := s.persistence.SaveWorkflow(ctx, found); err != nil {
				return fmt.Errorf("failed to save workflow: %w", err)
			}

			s.logger.InfoContext(ctx, "Created workflow", "workflow_id", found.ID, "title", title, "file", file)
		}

		workflow = found

		return nil
	})
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (s *Templates) withWorkflowLock(ctx context.Context, title, file string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, workflowLockKey(title, file), ResolveLockTTL)
	if err != nil {
		return fmt.Errorf("failed to lock workflow %q/%q: %w", title, file, err)
	}

	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "Failed to release workflow lock", "error", err, "title", title, "file", file)
		}
	}()

	return fn()
}

// findWorkflow returns the stored workflow matching (title, file) or a new, unsaved one with a
// zero ID. Callers hold the workflow lock.
func (s *Templates) findWorkflow(ctx context.Context, title, file string) (*models.Workflow, error) {
	matches, err := s.persistence.WorkflowsByTitleAndFile(ctx, title, file)
	if err != nil {
		return nil, fmt.Errorf("failed to find workflow: %w", err)
	}

	switch len(matches) {
	case 0:
		workflow := models.NewWorkflow(title, file)

		if err := s.validator.Struct(workflow); err != nil {
			return nil, NewValidationError("ResolveWorkflow", "INVALID_WORKFLOW", err.Error(), err)
		}

		return workflow, nil
	case 1:
		return matches[0], nil
	default:
		return nil, &ServiceError{
			Op:      "ResolveWorkflow",
			Code:    "AMBIGUOUS_WORKFLOW",
			Message: fmt.Sprintf("%d workflows match title %q and file %q", len(matches), title, file),
			Err:     ErrAmbiguousWorkflow,
		}
	}
}

// Create compiles the named diagram into a new template of the diagram's workflow. Nothing is
// stored when loading or compiling fails.
func (s *Templates) Create(ctx context.Context, diagramName string) (*models.Template, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "templates.create",
		attribute.String(otelhelper.DiagramNameKey, diagramName))
	defer span.End()

	started := time.Now()

	template, err := s.create(ctx, diagramName)
	if err != nil {
		otelhelper.SetError(span, err)
		s.observe(metrics.OperationCreate, started, 0, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.Int64(otelhelper.WorkflowIDKey, template.WorkflowID),
		attribute.Int64(otelhelper.TemplateIDKey, template.ID),
		attribute.Int(otelhelper.TaskCountKey, len(template.Tasks)),
	)
	s.observe(metrics.OperationCreate, started, len(template.Tasks), nil)

	s.publish(ctx, template.WorkflowID, events.TemplateCreated{
		BaseEvent:  events.NewBaseEvent(events.TemplateCreatedEvent, template.WorkflowID),
		TemplateID: template.ID,
		Diagram:    diagramName,
		TaskCount:  len(template.Tasks),
	})

	s.logger.InfoContext(ctx, "Created template",
		"template_id", template.ID,
		"workflow_id", template.WorkflowID,
		"diagram", diagramName,
		"tasks", len(template.Tasks),
	)

	return template, nil
}

func (s *Templates) create(ctx context.Context, diagramName string) (*models.Template, error) {
	if strings.TrimSpace(diagramName) == "" {
		return nil, ErrDiagramRequired
	}

	d, err := s.loader.Load(ctx, diagramName)
	if err != nil {
		return nil, err
	}

	tasks, err := compiler.Tasks(d.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to compile diagram %q: %w", d.Name, err)
	}

	template := &models.Template{Tasks: tasks}

	if err := s.apply(ctx, template, d); err != nil {
		return nil, err
	}

	if err := s.validator.StructExcept(template, "WorkflowID"); err != nil {
		return nil, NewValidationError("Create", "INVALID_TEMPLATE", err.Error(), err)
	}

	title := workflowTitle(d)

	// A new workflow is stored together with its first template.
	err = s.withWorkflowLock(ctx, title, d.Name, func() error {
		workflow, err := s.findWorkflow(ctx, title, d.Name)
		if err != nil {
			return err
		}

		created := workflow.ID == 0

		if err := s.persistence.SaveWorkflowTemplate(ctx, workflow, template); err != nil {
			return fmt.Errorf("failed to save template: %w", err)
		}

		if created {
			s.logger.InfoContext(ctx, "Created workflow", "workflow_id", workflow.ID, "title", title, "file", d.Name)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return template, nil
}

// RecompileWorkflow compiles the workflow's diagram once and gives every template of the
// workflow a fresh copy of the task list. All templates are stored together; a compilation
// failure leaves every template untouched.
func (s *Templates) RecompileWorkflow(ctx context.Context, workflowID int64) ([]*models.Template, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "templates.recompile",
		attribute.Int64(otelhelper.WorkflowIDKey, workflowID))
	defer span.End()

	started := time.Now()

	templates, d, taskCount, err := s.recompile(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)
		s.observe(metrics.OperationRecompile, started, 0, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.DiagramNameKey, d.Name),
		attribute.Int(otelhelper.TemplateCountKey, len(templates)),
		attribute.Int(otelhelper.TaskCountKey, taskCount),
	)
	s.observe(metrics.OperationRecompile, started, taskCount, nil)

	ids := make([]int64, 0, len(templates))
	for _, template := range templates {
		ids = append(ids, template.ID)
	}

	s.publish(ctx, workflowID, events.WorkflowTemplatesRecompiled{
		BaseEvent:   events.NewBaseEvent(events.WorkflowTemplatesRecompiledEvent, workflowID),
		Diagram:     d.Name,
		TemplateIDs: ids,
		TaskCount:   taskCount,
	})

	s.logger.InfoContext(ctx, "Recompiled workflow templates",
		"workflow_id", workflowID,
		"diagram", d.Name,
		"templates", len(templates),
		"tasks", taskCount,
	)

	return templates, nil
}

func (s *Templates) recompile(ctx context.Context, workflowID int64) ([]*models.Template, *diagram.Diagram, int, error) {
	workflow, err := s.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, nil, 0, err
	}

	d, err := s.loader.Load(ctx, workflow.File)
	if err != nil {
		return nil, nil, 0, err
	}

	tasks, err := compiler.Tasks(d.Graph)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to compile diagram %q: %w", d.Name, err)
	}

	templates, err := s.persistence.TemplatesByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}

	for _, template := range templates {
		if err := s.apply(ctx, template, d); err != nil {
			return nil, nil, 0, err
		}

		template.ReplaceTasks(tasks)

		if err := s.validator.Struct(template); err != nil {
			return nil, nil, 0, NewValidationError("RecompileWorkflow", "INVALID_TEMPLATE", err.Error(), err)
		}
	}

	if len(templates) > 0 {
		if err := s.persistence.SaveTemplates(ctx, templates); err != nil {
			return nil, nil, 0, fmt.Errorf("failed to save templates: %w", err)
		}
	}

	return templates, d, len(tasks), nil
}

// Preview loads and compiles the named diagram without storing anything.
func (s *Templates) Preview(ctx context.Context, diagramName string) (*Preview, error) {
	started := time.Now()

	if strings.TrimSpace(diagramName) == "" {
		return nil, ErrDiagramRequired
	}

	d, err := s.loader.Load(ctx, diagramName)
	if err != nil {
		s.observe(metrics.OperationPreview, started, 0, err)

		return nil, err
	}

	return s.preview(d, started)
}

// PreviewDefinition compiles an inline YAML or JSON definition without storing anything.
func (s *Templates) PreviewDefinition(ctx context.Context, name string, data []byte) (*Preview, error) {
	started := time.Now()

	def, err := definition.Parse(data)
	if err != nil {
		err = diagram.NewLoadError(name, err)
		s.observe(metrics.OperationPreview, started, 0, err)

		return nil, err
	}

	d, err := def.Diagram(name)
	if err != nil {
		s.observe(metrics.OperationPreview, started, 0, err)

		return nil, err
	}

	s.logger.DebugContext(ctx, "Previewing inline definition", "diagram", name)

	return s.preview(d, started)
}

func (s *Templates) preview(d *diagram.Diagram, started time.Time) (*Preview, error) {
	tasks, err := compiler.Tasks(d.Graph)

	s.observe(metrics.OperationPreview, started, len(tasks), err)

	if err != nil {
		return nil, fmt.Errorf("failed to compile diagram %q: %w", d.Name, err)
	}

	return &Preview{
		Diagram:    d.Name,
		Workflow:   workflowTitle(d),
		Title:      templateTitle(d),
		OutputName: d.Process.OutputName,
		Tasks:      tasks,
	}, nil
}

// apply copies the process level properties of d onto template. Docket and ruleset ids of zero
// or below leave the template's current reference unchanged.
func (s *Templates) apply(ctx context.Context, template *models.Template, d *diagram.Diagram) error {
	template.Title = templateTitle(d)
	template.OutputName = d.Process.OutputName

	if id := d.Process.DocketID; id > 0 {
		docket, err := s.persistence.DocketByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to resolve docket %d: %w", id, err)
		}

		template.DocketID = &docket.ID
	}

	if id := d.Process.RulesetID; id > 0 {
		ruleset, err := s.persistence.RulesetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to resolve ruleset %d: %w", id, err)
		}

		template.RulesetID = &ruleset.ID
	}

	return nil
}

func (s *Templates) observe(operation string, started time.Time, taskCount int, err error) {
	if s.metrics == nil {
		return
	}

	s.metrics.ObserveCompilation(operation, started, taskCount, err)
}

// publish sends event after a successful store. Failures are logged, the stored state stands.
func (s *Templates) publish(ctx context.Context, workflowID int64, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, strconv.FormatInt(workflowID, 10), event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			"error", err,
			"event_type", event.GetType(),
			"workflow_id", workflowID,
		)
	}
}

func workflowLockKey(title, file string) string {
	return "workflow:" + title + "\x00" + file
}

// workflowTitle is the process id, falling back to the diagram name.
func workflowTitle(d *diagram.Diagram) string {
	if d.Process.ID != "" {
		return d.Process.ID
	}

	return d.Name
}

// templateTitle is the process name, falling back to the workflow title.
func templateTitle(d *diagram.Diagram) string {
	if d.Process.Title != "" {
		return d.Process.Title
	}

	return workflowTitle(d)
}
