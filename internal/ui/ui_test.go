package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStage_StringAndIcon(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageLoad, "Load", "LOAD"},
		{StageNormalize, "Normalize", "NORM"},
		{StageDedupe, "Dedupe", "DEDUP"},
		{StageChunk, "Chunk", "CHUNK"},
		{StageBatch, "Batch", "BATCH"},
		{StageEmbed, "Embed", "EMBED"},
		{StageIndex, "Index", "INDEX"},
		{StageComplete, "Complete", "DONE"},
		{Stage(99), "Unknown", "???"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.stage.String())
			assert.Equal(t, tt.icon, tt.stage.Icon())
		})
	}
}

func TestStages_PipelineOrder(t *testing.T) {
	for i := 1; i < len(Stages); i++ {
		assert.Less(t, Stages[i-1], Stages[i])
	}
	assert.NotContains(t, Stages, StageComplete)
}

func TestStageTimings_Total(t *testing.T) {
	st := StageTimings{StageLoad: time.Second, StageEmbed: 2 * time.Second}
	assert.Equal(t, 3*time.Second, st.Total())
	assert.Zero(t, StageTimings(nil).Total())
}

func TestNewConfig_Options(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := NewConfig(buf, WithForcePlain(true), WithNoColor(true), WithTitle("docs"))

	assert.Same(t, buf, cfg.Output)
	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "docs", cfg.Title)
}

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}))
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)

	r = NewRenderer(NewConfig(&bytes.Buffer{}, WithForcePlain(true)))
	_, ok = r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestIsTTY_NonFile(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}

func TestDetectCI(t *testing.T) {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		t.Setenv(v, "")
	}
	assert.True(t, DetectCI())
}

func TestNop_IsRenderer(t *testing.T) {
	var r Renderer = Nop{}
	assert.NoError(t, r.Start(t.Context()))
	r.UpdateProgress(ProgressEvent{})
	r.AddError(ErrorEvent{})
	r.Complete(CompletionStats{})
	assert.NoError(t, r.Stop())
}
