package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder()
	start := b.Start("start")
	scan := b.Step("scan", "Scanning", StepAttributes{Priority: 2})
	gw := b.Gateway("gw", "", GatewayUnspecified)
	qc := b.Step("qc", "", StepAttributes{Title: "Quality control"})
	b.Flow("f1", start, scan, "")
	b.Flow("f2", scan, gw, "")
	b.FlowByKey("f3", "gw", "qc", "${type == 'book'}")

	g, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, start, g.Start())
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, scan, g.Next(start))
	assert.Equal(t, NoNode, g.Next(qc))
	assert.Equal(t, "Scanning", g.Node(scan).Step.Title)
	assert.Equal(t, "Quality control", g.Node(qc).Step.Title)

	out := g.Outgoing(gw)
	require.Len(t, out, 1)
	assert.Equal(t, "${type == 'book'}", out[0].Condition)
	assert.Equal(t, qc, out[0].Target)

	in := g.Incoming(qc)
	require.Len(t, in, 1)
	assert.Equal(t, out[0].ID, in[0].ID)

	steps := g.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, scan, steps[0].ID)
	assert.Equal(t, qc, steps[1].ID)
}

func TestBuilder_StepTitleFallsBackToKey(t *testing.T) {
	b := NewBuilder()
	b.Start("start")
	id := b.Step("Task_1", "", StepAttributes{})

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "Task_1", g.Node(id).Step.Title)
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		build   func(b *Builder)
		wantErr error
	}{
		{
			name:    "no start event",
			build:   func(b *Builder) { b.Step("a", "A", StepAttributes{}) },
			wantErr: ErrNoStartEvent,
		},
		{
			name: "two start events",
			build: func(b *Builder) {
				b.Start("s1")
				b.Start("s2")
			},
			wantErr: ErrMultipleStartEvents,
		},
		{
			name: "flow to unknown key",
			build: func(b *Builder) {
				b.Start("s")
				b.FlowByKey("f", "s", "missing", "")
			},
			wantErr: ErrUnknownNode,
		},
		{
			name: "duplicate key",
			build: func(b *Builder) {
				b.Start("s")
				b.Step("a", "A", StepAttributes{})
				b.Step("a", "A again", StepAttributes{})
			},
			wantErr: ErrDuplicateNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)

			_, err := b.Build()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGraph_IsConverging(t *testing.T) {
	b := NewBuilder()
	start := b.Start("start")
	split := b.Gateway("split", "", GatewayUnspecified)
	a := b.Step("a", "A", StepAttributes{})
	c := b.Step("c", "C", StepAttributes{})
	join := b.Gateway("join", "", GatewayUnspecified)
	explicit := b.Gateway("explicit", "", GatewayConverging)
	end := b.Step("end", "End", StepAttributes{})

	b.Flow("1", start, split, "")
	b.Flow("2", split, a, "")
	b.Flow("3", split, c, "")
	b.Flow("4", a, join, "")
	b.Flow("5", c, join, "")
	b.Flow("6", join, explicit, "")
	b.Flow("7", explicit, end, "")

	g, err := b.Build()
	require.NoError(t, err)

	assert.False(t, g.IsConverging(split))
	assert.True(t, g.IsConverging(join))
	assert.True(t, g.IsConverging(explicit), "explicit direction wins over flow counts")
	assert.False(t, g.IsConverging(a), "steps never converge")
}

func TestDecodeStepAttributes(t *testing.T) {
	raw := map[string]any{
		"priority":          "3",
		"editType":          2,
		"typeAutomatic":     "true",
		"typeExportDMS":     true,
		"typeImagesWrite":   "1",
		"typeCloseVerify":   "false",
		"scriptName":        "createFolders",
		"scriptPath":        "/usr/local/scripts/folders.sh",
		"unrelatedProperty": "ignored",
	}

	attrs, err := DecodeStepAttributes(raw, true)
	require.NoError(t, err)

	assert.Equal(t, 3, attrs.Priority)
	assert.Equal(t, 2, attrs.EditType)
	assert.True(t, attrs.TypeAutomatic)
	assert.True(t, attrs.TypeExportDMS)
	assert.True(t, attrs.TypeImagesWrite)
	assert.False(t, attrs.TypeCloseVerify)
	require.NotNil(t, attrs.Script)
	assert.Equal(t, "createFolders", attrs.Script.Name)
	assert.Equal(t, "/usr/local/scripts/folders.sh", attrs.Script.Path)

	plain, err := DecodeStepAttributes(raw, false)
	require.NoError(t, err)
	assert.Nil(t, plain.Script)

	_, err = DecodeStepAttributes(map[string]any{"priority": "high"}, false)
	assert.Error(t, err)
}

func TestLoadError(t *testing.T) {
	err := NewLoadError("gdz", ErrNoStartEvent)

	assert.True(t, IsLoadError(err))
	assert.ErrorIs(t, err, ErrNoStartEvent)
	assert.Contains(t, err.Error(), `"gdz"`)
	assert.Same(t, err, NewLoadError("other", err), "load errors are not wrapped twice")
	assert.False(t, IsLoadError(ErrNoStartEvent))
}
