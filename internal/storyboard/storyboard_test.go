package storyboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoodnightSam/JGL-Assistant/internal/config"
	"github.com/GoodnightSam/JGL-Assistant/internal/llm"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

type fakeClient struct {
	responses []string
	calls     []llm.Request
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	f.calls = append(f.calls, req)
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("fake client: no responses left")
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return &llm.Completion{
		Content: next,
		Model:   req.Model,
		Usage:   llm.Usage{InputTokens: 3000, OutputTokens: 2000},
	}, nil
}

func storyboardConfig() config.Storyboard {
	return config.Storyboard{
		Model:          "o3",
		MinShots:       4, // small lists keep fixtures readable
		MinShotSeconds: 3.0,
		MaxShotSeconds: 10.0,
		WordsPerMinute: 155,
		MinScriptCover: 0.8,
	}
}

// testScript is a 4-chunk script; each chunk is long enough to land inside
// the duration bounds at 155 wpm.
func testChunks() []string {
	base := "words repeated for pacing filler content here and more narration beats"
	chunks := make([]string, 4)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("Chunk %d: %s %s.", i+1, base, base)
	}
	return chunks
}

func shotJSON(chunks []string) string {
	type wire struct {
		Shot        int    `json:"shot"`
		Script      string `json:"script"`
		ImageSearch string `json:"image_search"`
		ImagePrompt string `json:"image_prompt"`
		VideoPrompt string `json:"video_prompt"`
	}
	shots := make([]wire, len(chunks))
	for i, chunk := range chunks {
		shots[i] = wire{
			Shot:        i + 1,
			Script:      chunk,
			ImageSearch: fmt.Sprintf("subject era context photo %d", i+1),
			ImagePrompt: fmt.Sprintf("low-angle dolly, 35 mm anamorphic, golden-hour rim light, frame %d", i+1),
			VideoPrompt: fmt.Sprintf("slow push-in with film grain, beat %d", i+1),
		}
	}
	data, _ := json.Marshal(shots)
	return string(data)
}

const musicJSON = `[
	{"prompt": "Chrome Horizon | 112 BPM | E minor | 80s arena rock | [Intro] soaring guitars [Verse] driving beat [Outro] fade"},
	{"prompt": "Dust Road | 104 BPM | G major | heartland rock | [Intro] slide guitar [Chorus] anthem [Outro] fade"},
	{"prompt": "Quiet Legacy | 96 BPM | C major | cinematic folk | [Intro] piano [Bridge] strings [Outro] resolve"}
]`

func newTestPlanner(t *testing.T, client *fakeClient) (*Planner, *workspace.Handle, *workspace.Memory) {
	t.Helper()
	mem := workspace.NewMemory()
	handle := &workspace.Handle{Key: "test_subject", DisplayName: "Test Subject", Dir: t.TempDir()}
	planner := NewPlanner(client, mem, nil, storyboardConfig(), nil)
	return planner, handle, mem
}

func TestPlanWritesStoryboardAndMusic(t *testing.T) {
	chunks := testChunks()
	client := &fakeClient{responses: []string{shotJSON(chunks), musicJSON}}
	planner, handle, mem := newTestPlanner(t, client)
	require.NoError(t, mem.Write(handle, workspace.KindScript, []byte(strings.Join(chunks, "\n\n"))))

	result, err := planner.Plan(context.Background(), handle)
	require.NoError(t, err)
	require.Len(t, result.Storyboard.Shots, 4)
	require.Len(t, result.Music.Styles, 3)
	require.Equal(t, result.Storyboard.SourceHash, result.Music.SourceHash)

	stored, err := workspace.ReadJSON[Document](mem, handle, workspace.KindStoryboard)
	require.NoError(t, err)
	require.Equal(t, result.Storyboard.TotalDurationSeconds, stored.TotalDurationSeconds)

	music, err := workspace.ReadJSON[MusicBrief](mem, handle, workspace.KindMusicBrief)
	require.NoError(t, err)
	require.Equal(t, "Chrome Horizon | 112 BPM | E minor | 80s arena rock | [Intro] soaring guitars [Verse] driving beat [Outro] fade", music.Styles[0].Prompt)
}

func TestPlanTimingsTileZeroToTotal(t *testing.T) {
	chunks := testChunks()
	client := &fakeClient{responses: []string{shotJSON(chunks), musicJSON}}
	planner, handle, mem := newTestPlanner(t, client)
	require.NoError(t, mem.Write(handle, workspace.KindScript, []byte(strings.Join(chunks, "\n\n"))))

	result, err := planner.Plan(context.Background(), handle)
	require.NoError(t, err)

	shots := result.Storyboard.Shots
	require.Zero(t, shots[0].StartSeconds)
	for i, shot := range shots {
		dur := shot.EndSeconds - shot.StartSeconds
		require.GreaterOrEqual(t, dur, 3.0-1e-6, "shot %d", i+1)
		require.LessOrEqual(t, dur, 10.0+1e-6, "shot %d", i+1)
		if i > 0 {
			require.InDelta(t, shots[i-1].EndSeconds, shot.StartSeconds, 1e-6, "shot %d contiguity", i+1)
		}
	}
	require.InDelta(t, result.Storyboard.TotalDurationSeconds, shots[len(shots)-1].EndSeconds, 1e-6)
}

func TestPlanTimingsAreDeterministic(t *testing.T) {
	chunks := testChunks()
	shotsA := make([]Shot, len(chunks))
	shotsB := make([]Shot, len(chunks))
	for i, chunk := range chunks {
		shotsA[i] = Shot{Index: i + 1, ScriptText: chunk}
		shotsB[i] = Shot{Index: i + 1, ScriptText: chunk}
	}
	totalA := assignTimings(shotsA, 155, 3, 10)
	totalB := assignTimings(shotsB, 155, 3, 10)
	require.Equal(t, totalA, totalB)
	require.Equal(t, shotsA, shotsB)
}

func TestPlanRetriesOnceOnBadShotList(t *testing.T) {
	chunks := testChunks()
	short := shotJSON(chunks[:2]) // below min shot count
	client := &fakeClient{responses: []string{short, shotJSON(chunks), musicJSON}}
	planner, handle, mem := newTestPlanner(t, client)
	require.NoError(t, mem.Write(handle, workspace.KindScript, []byte(strings.Join(chunks, "\n\n"))))

	result, err := planner.Plan(context.Background(), handle)
	require.NoError(t, err)
	require.Len(t, result.Storyboard.Shots, 4)
	require.Len(t, client.calls, 3)
}

func TestPlanFailsAfterSecondRejection(t *testing.T) {
	chunks := testChunks()
	short := shotJSON(chunks[:1])
	client := &fakeClient{responses: []string{short, short}}
	planner, handle, mem := newTestPlanner(t, client)
	require.NoError(t, mem.Write(handle, workspace.KindScript, []byte(strings.Join(chunks, "\n\n"))))

	_, err := planner.Plan(context.Background(), handle)
	require.ErrorIs(t, err, services.ErrValidation)
	require.Contains(t, err.Error(), "insufficient shots")

	// Nothing persisted after rejection.
	exists, _ := mem.Exists(handle, workspace.KindStoryboard)
	require.False(t, exists)
}

func TestPlanRejectsLowScriptCoverage(t *testing.T) {
	chunks := testChunks()
	// Shot list covers only half the script.
	covered := shotJSON(chunks[:2])
	var wire []map[string]any
	require.NoError(t, json.Unmarshal([]byte(covered), &wire))
	padded := wire
	for i := 2; i < 4; i++ {
		padded = append(padded, map[string]any{
			"shot":         i + 1,
			"script":       "tiny span",
			"image_search": "query",
			"image_prompt": "prompt",
			"video_prompt": "loop",
		})
	}
	data, _ := json.Marshal(padded)
	client := &fakeClient{responses: []string{string(data), string(data)}}
	planner, handle, mem := newTestPlanner(t, client)
	require.NoError(t, mem.Write(handle, workspace.KindScript, []byte(strings.Join(chunks, "\n\n"))))

	_, err := planner.Plan(context.Background(), handle)
	require.ErrorIs(t, err, services.ErrValidation)
	require.Contains(t, err.Error(), "coverage")
}

func TestValidateStyles(t *testing.T) {
	valid := Style{Prompt: "Title | 110 BPM | A minor | rock | [Intro] riff [Outro] fade"}
	tests := []struct {
		name   string
		styles []Style
		issue  string
	}{
		{"two styles", []Style{valid, valid}, "exactly 3"},
		{"newline", []Style{valid, valid, {Prompt: "Title | 110 BPM | A minor | rock | [Intro]\n[Outro]"}}, "newlines"},
		{"missing pipes", []Style{valid, valid, {Prompt: "Title 110 BPM [Intro] [Outro]"}}, "pipe-separated"},
		{"missing outro", []Style{valid, valid, {Prompt: "T | 1 | 2 | 3 | [Intro] only"}}, "[Outro]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := validateStyles(tt.styles)
			require.NotEmpty(t, issues)
			require.Contains(t, strings.Join(issues, "; "), tt.issue)
		})
	}
	require.Empty(t, validateStyles([]Style{valid, valid, valid}))
}

func TestAssignTimingsClampsShortAndLongChunks(t *testing.T) {
	shots := []Shot{
		{Index: 1, ScriptText: "two words"},
		{Index: 2, ScriptText: strings.Repeat("word ", 100)},
	}
	total := assignTimings(shots, 155, 3, 10)
	require.InDelta(t, 3.0, shots[0].EndSeconds-shots[0].StartSeconds, 1e-6)
	require.InDelta(t, 10.0, shots[1].EndSeconds-shots[1].StartSeconds, 1e-6)
	require.InDelta(t, 13.0, total, 1e-6)
}
