package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/require"

	"github.com/GoodnightSam/JGL-Assistant/internal/assets"
	"github.com/GoodnightSam/JGL-Assistant/internal/config"
	"github.com/GoodnightSam/JGL-Assistant/internal/fileutil"
	"github.com/GoodnightSam/JGL-Assistant/internal/ledger"
	"github.com/GoodnightSam/JGL-Assistant/internal/llm"
	"github.com/GoodnightSam/JGL-Assistant/internal/quota"
	"github.com/GoodnightSam/JGL-Assistant/internal/script"
	"github.com/GoodnightSam/JGL-Assistant/internal/services"
	"github.com/GoodnightSam/JGL-Assistant/internal/storyboard"
	"github.com/GoodnightSam/JGL-Assistant/internal/testsupport"
	"github.com/GoodnightSam/JGL-Assistant/internal/workspace"
)

const testScriptText = "**Test Subject — 5-MINUTE BIO SCRIPT (~800 words)**\n\n" +
	"**HOOK**\nFast cars. Loud crowds. Quiet doubt. And a harmonica.\n" +
	"Grab the wheel, and let's get rollin'.\n\n" +
	"**BIO**\nBorn in 1950, he learns early. At 22 he wins big (unverified).\n\n" +
	"By 1985 the harmonica returns. Now 47, he plays it one last time."

const testPhoneticText = "**Test Subject — 5-MINUTE BIO SCRIPT (~800 words)**\n\n" +
	"**HOOK**\nFast cars. Loud crowds. Quiet doubt. And a harmonica.\n" +
	"Grab the wheel, and let's get rollin'.\n\n" +
	"**BIO**\nBorn in 1950, he learns early. At 22 he wins big (unverified).\n\n" +
	"By 1985 the harmoneeca returns. Now 47, he plays it one last time."

var testScriptChunks = []string{
	"Fast cars. Loud crowds. Quiet doubt. And a harmonica.",
	"Grab the wheel, and let's get rollin'.",
	"Born in 1950, he learns early. At 22 he wins big (unverified).",
	"By 1985 the harmonica returns. Now 47, he plays it one last time.",
}

func shotListJSON(t *testing.T) string {
	t.Helper()
	type wire struct {
		Shot        int    `json:"shot"`
		Script      string `json:"script"`
		ImageSearch string `json:"image_search"`
		ImagePrompt string `json:"image_prompt"`
		VideoPrompt string `json:"video_prompt"`
	}
	shots := make([]wire, len(testScriptChunks))
	for i, chunk := range testScriptChunks {
		shots[i] = wire{
			Shot:        i + 1,
			Script:      chunk,
			ImageSearch: fmt.Sprintf("subject photo %d", i+1),
			ImagePrompt: fmt.Sprintf("low-angle dolly, golden-hour rim light, frame %d", i+1),
			VideoPrompt: fmt.Sprintf("slow push-in, beat %d", i+1),
		}
	}
	data, err := json.Marshal(shots)
	require.NoError(t, err)
	return string(data)
}

const musicBriefJSON = `[
	{"prompt": "Chrome Horizon | 112 BPM | E minor | 80s arena rock | [Intro] soaring guitars [Outro] fade"},
	{"prompt": "Dust Road | 104 BPM | G major | heartland rock | [Intro] slide guitar [Outro] fade"},
	{"prompt": "Quiet Legacy | 96 BPM | C major | cinematic folk | [Intro] piano [Outro] resolve"}
]`

type fakeClient struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("fake client: no responses left")
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return &llm.Completion{
		Content: next,
		Model:   req.Model,
		Usage:   llm.Usage{InputTokens: 1000, OutputTokens: 800, ReasoningTokens: 100},
	}, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSearcher struct {
	mu      sync.Mutex
	results func(query string) []assets.SearchResult
	calls   int
}

func (s *fakeSearcher) Search(_ context.Context, query string, _ int) ([]assets.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.results == nil {
		return nil, nil
	}
	return s.results(query), nil
}

func pngBytes(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 45))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testConfig(cfg *config.Config) {
	cfg.Script = config.Script{Model: "o3", FallbackModel: "o3-mini", PhoneticModel: "o4-mini", MaxAttempts: 2}
	cfg.Storyboard = config.Storyboard{
		Model: "o3", MinShots: 4, MinShotSeconds: 3, MaxShotSeconds: 10,
		WordsPerMinute: 155, MinScriptCover: 0.8,
	}
	cfg.Assets = config.Assets{
		ImagesPerShot: 1, MinImagesPerShot: 1, MaxSearchCallsPerShot: 2,
		ShotWorkers: 2, DownloadWorkers: 2, GlobalDownloadCap: 4,
		MinWidth: 64, MinHeight: 36, MaxImageMB: 5,
		DownloadTimeoutSeconds: 5, HeadTimeoutSeconds: 2,
	}
}

func newTestController(t *testing.T, client *fakeClient, searcher *fakeSearcher) (*Controller, *workspace.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testConfig)
	store := testsupport.MustOpenWorkspace(t, cfg)
	ctrl := NewController(store, client, searcher, quota.NewMemoryCounter(100),
		quota.NewMemoryDomainScores(), cfg, nil)
	return ctrl, store
}

func writeArtifact(t *testing.T, ws workspace.Writer, h *workspace.Handle, kind workspace.Kind, data string) {
	t.Helper()
	require.NoError(t, ws.Write(h, kind, []byte(data)))
}

func TestEvaluateProgression(t *testing.T) {
	mem := workspace.NewMemory()
	h := &workspace.Handle{Key: "test_subject", DisplayName: "Test Subject", Dir: t.TempDir()}

	snap, err := Evaluate(mem, h, 1)
	require.NoError(t, err)
	require.Equal(t, StateNoScript, snap.State)

	writeArtifact(t, mem, h, workspace.KindScript, testScriptText)
	hash := fileutil.HashBytes([]byte(testScriptText))
	snap, err = Evaluate(mem, h, 1)
	require.NoError(t, err)
	require.Equal(t, StateScriptReady, snap.State)
	require.Equal(t, hash, snap.ScriptHash)

	// Phonetic with a mismatched source hash is stale.
	writeArtifact(t, mem, h, workspace.KindPhonetic, testPhoneticText)
	require.NoError(t, workspace.WriteJSON(mem, h, workspace.KindScriptMetadata, script.Metadata{
		Entity: h.Key, ContentHash: "old", Phonetic: &script.PhoneticInfo{SourceHash: "old"},
	}))
	snap, err = Evaluate(mem, h, 1)
	require.NoError(t, err)
	require.Equal(t, StatePhoneticStale, snap.State)
	require.True(t, snap.PhoneticStale)

	require.NoError(t, workspace.WriteJSON(mem, h, workspace.KindScriptMetadata, script.Metadata{
		Entity: h.Key, ContentHash: hash, Phonetic: &script.PhoneticInfo{SourceHash: hash},
	}))
	snap, err = Evaluate(mem, h, 1)
	require.NoError(t, err)
	require.Equal(t, StatePhoneticReady, snap.State)

	// Storyboard requires both the shot list and the music brief.
	board := storyboard.Document{Entity: h.Key, SourceHash: hash, Shots: []storyboard.Shot{
		{Index: 1, ScriptText: "a"}, {Index: 2, ScriptText: "b"},
	}}
	require.NoError(t, workspace.WriteJSON(mem, h, workspace.KindStoryboard, board))
	snap, err = Evaluate(mem, h, 1)
	require.NoError(t, err)
	require.Equal(t, StatePhoneticReady, snap.State, "music brief still missing")

	music := storyboard.MusicBrief{Entity: h.Key, SourceHash: hash, Styles: []storyboard.Style{{Prompt: "x"}}}
	require.NoError(t, workspace.WriteJSON(mem, h, workspace.KindMusicBrief, music))
	snap, err = Evaluate(mem, h, 1)
	require.NoError(t, err)
	require.Equal(t, StateStoryboardReady, snap.State)
	require.Equal(t, 2, snap.ShotCount)

	// One shot at minimum, one without a pool.
	images := assets.Document{Entity: h.Key, Shots: []assets.ShotPool{{
		ShotIndex:  1,
		Outcome:    assets.OutcomeOK,
		Candidates: []assets.Candidate{{ShotIndex: 1, FileName: "1A.png", Status: assets.StatusPending}},
	}}}
	require.NoError(t, workspace.WriteJSON(mem, h, workspace.KindImageMetadata, images))
	snap, err = Evaluate(mem, h, 1)
	require.NoError(t, err)
	require.Equal(t, StateAssetsPartial, snap.State)
	require.Equal(t, 1, snap.Assets.ShotsAtMinimum)
	require.Equal(t, 1, snap.Assets.ShotsWithPools)

	images.Shots = append(images.Shots, assets.ShotPool{
		ShotIndex:  2,
		Outcome:    assets.OutcomeOK,
		Candidates: []assets.Candidate{{ShotIndex: 2, FileName: "2A.png", Status: assets.StatusPending}},
	})
	require.NoError(t, workspace.WriteJSON(mem, h, workspace.KindImageMetadata, images))
	snap, err = Evaluate(mem, h, 1)
	require.NoError(t, err)
	require.Equal(t, StateAssetsReady, snap.State)

	// Regenerated script leaves downstream artifacts stale, never deleted.
	writeArtifact(t, mem, h, workspace.KindScript, testScriptText+"\nnew ending.")
	snap, err = Evaluate(mem, h, 1)
	require.NoError(t, err)
	require.Equal(t, StatePhoneticStale, snap.State)
	require.True(t, snap.PhoneticStale)
	require.True(t, snap.StoryboardStale)
}

func TestEvaluateArchivedCandidatesDoNotCount(t *testing.T) {
	mem := workspace.NewMemory()
	h := &workspace.Handle{Key: "test_subject", Dir: t.TempDir()}
	writeArtifact(t, mem, h, workspace.KindScript, testScriptText)
	hash := fileutil.HashBytes([]byte(testScriptText))
	writeArtifact(t, mem, h, workspace.KindPhonetic, testPhoneticText)
	require.NoError(t, workspace.WriteJSON(mem, h, workspace.KindScriptMetadata, script.Metadata{
		Entity: h.Key, ContentHash: hash, Phonetic: &script.PhoneticInfo{SourceHash: hash},
	}))
	require.NoError(t, workspace.WriteJSON(mem, h, workspace.KindStoryboard, storyboard.Document{
		Entity: h.Key, SourceHash: hash, Shots: []storyboard.Shot{{Index: 1, ScriptText: "a"}},
	}))
	require.NoError(t, workspace.WriteJSON(mem, h, workspace.KindMusicBrief, storyboard.MusicBrief{
		Entity: h.Key, SourceHash: hash, Styles: []storyboard.Style{{Prompt: "x"}},
	}))
	require.NoError(t, workspace.WriteJSON(mem, h, workspace.KindImageMetadata, assets.Document{
		Entity: h.Key, Shots: []assets.ShotPool{{
			ShotIndex: 1,
			Outcome:   assets.OutcomeOK,
			Candidates: []assets.Candidate{
				{ShotIndex: 1, FileName: "1A.png", Status: assets.StatusArchived},
			},
		}},
	}))

	snap, err := Evaluate(mem, h, 1)
	require.NoError(t, err)
	require.Equal(t, StateAssetsPartial, snap.State)
	require.Zero(t, snap.Assets.ActiveCandidates)
}

func TestRunFullPipeline(t *testing.T) {
	payloads := map[string][]byte{}
	for i := 1; i <= 4; i++ {
		payloads[fmt.Sprintf("%d.png", i)] = pngBytes(t, uint8(i*40))
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		data, ok := payloads[r.URL.Path[len("/img/"):]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := &fakeClient{responses: []string{
		testScriptText, testPhoneticText, shotListJSON(t), musicBriefJSON,
	}}
	searcher := &fakeSearcher{results: func(query string) []assets.SearchResult {
		// "subject photo N" → one distinct image per shot
		n := query[len(query)-1:]
		return []assets.SearchResult{{URL: server.URL + "/img/" + n + ".png", Domain: "example.com"}}
	}}

	ctrl, store := newTestController(t, client, searcher)

	report, err := ctrl.Run(context.Background(), "Test Subject", Options{Until: UntilFull})
	require.NoError(t, err)
	require.False(t, report.Aborted)
	require.NotEmpty(t, report.RunID)
	require.Equal(t, StateAssetsReady, report.Snapshot.State)
	require.NotNil(t, report.AssetSummary)
	require.Equal(t, 4, report.AssetSummary.ShotsOK)

	h, err := store.Resolve("Test Subject")
	require.NoError(t, err)
	for _, kind := range []workspace.Kind{
		workspace.KindScript, workspace.KindScriptMetadata, workspace.KindPhonetic,
		workspace.KindStoryboard, workspace.KindMusicBrief, workspace.KindImageMetadata,
	} {
		exists, err := store.Exists(h, kind)
		require.NoError(t, err)
		require.True(t, exists, "artifact %s must exist after a full run", kind)
	}

	// One billable record per LLM call: script, phonetic, shots, music.
	costs, err := ledger.Open(store, h, nil)
	require.NoError(t, err)
	require.Len(t, costs.Entries(), 4)
	for _, entry := range costs.Entries() {
		require.Equal(t, report.RunID, entry.RunID)
	}
}

func TestRunStopsAtScript(t *testing.T) {
	client := &fakeClient{responses: []string{testScriptText, testPhoneticText}}
	ctrl, store := newTestController(t, client, &fakeSearcher{})

	report, err := ctrl.Run(context.Background(), "Test Subject", Options{Until: UntilScript})
	require.NoError(t, err)
	require.Equal(t, StatePhoneticReady, report.Snapshot.State)
	require.Equal(t, 2, client.callCount())

	h, err := store.Resolve("Test Subject")
	require.NoError(t, err)
	exists, err := store.Exists(h, workspace.KindStoryboard)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestRunNeverRegeneratesScriptSilently(t *testing.T) {
	client := &fakeClient{responses: []string{testScriptText, testPhoneticText}}
	ctrl, _ := newTestController(t, client, &fakeSearcher{})

	_, err := ctrl.Run(context.Background(), "Test Subject", Options{Until: UntilScript})
	require.NoError(t, err)
	require.Equal(t, 2, client.callCount())

	// Second run with the nil default (reuse) must not call the model.
	report, err := ctrl.Run(context.Background(), "Test Subject", Options{Until: UntilScript})
	require.NoError(t, err)
	require.False(t, report.Aborted)
	require.Equal(t, 2, client.callCount())

	// An abort decision stops before any stage.
	var asked string
	report, err = ctrl.Run(context.Background(), "Test Subject", Options{
		Until: UntilScript,
		OnExisting: func(_ context.Context, _ *workspace.Handle, artifact string, _ Snapshot) (Decision, error) {
			asked = artifact
			return DecisionAbort, nil
		},
	})
	require.NoError(t, err)
	require.True(t, report.Aborted)
	require.Equal(t, "script", report.AbortedAt)
	require.Equal(t, "script", asked)
	require.Equal(t, 2, client.callCount())
}

func TestRunResumesAfterPhoneticFailure(t *testing.T) {
	// Two phonetic attempts that fail validation: the script is written,
	// the run errors, and the phonetic artifact is left missing.
	client := &fakeClient{responses: []string{testScriptText, "garbled", "still garbled"}}
	ctrl, store := newTestController(t, client, &fakeSearcher{})

	_, err := ctrl.Run(context.Background(), "Test Subject", Options{Until: UntilScript})
	require.ErrorIs(t, err, services.ErrValidation)
	require.Equal(t, 3, client.callCount())

	h, err := store.Resolve("Test Subject")
	require.NoError(t, err)
	exists, err := store.Exists(h, workspace.KindScript)
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = store.Exists(h, workspace.KindPhonetic)
	require.NoError(t, err)
	require.False(t, exists)

	// Resume with default decisions: the script is reused, the missing
	// phonetic is derived from it, and the storyboard proceeds.
	client.responses = []string{testPhoneticText, shotListJSON(t), musicBriefJSON}
	report, err := ctrl.Run(context.Background(), "Test Subject", Options{Until: UntilStoryboard})
	require.NoError(t, err)
	require.False(t, report.Aborted)
	require.Equal(t, 6, client.callCount(), "resume must not regenerate the script")
	require.Equal(t, StateStoryboardReady, report.Snapshot.State)

	exists, err = store.Exists(h, workspace.KindPhonetic)
	require.NoError(t, err)
	require.True(t, exists)
	meta, err := workspace.ReadJSON[script.Metadata](store, h, workspace.KindScriptMetadata)
	require.NoError(t, err)
	require.NotNil(t, meta.Phonetic)
	require.Equal(t, fileutil.HashBytes([]byte(testScriptText)), meta.Phonetic.SourceHash)
}

func TestRunStaleStoryboardRequiresDecision(t *testing.T) {
	ctrl, store := newTestController(t, &fakeClient{}, &fakeSearcher{})
	h, err := store.Resolve("Test Subject")
	require.NoError(t, err)

	hash := fileutil.HashBytes([]byte(testScriptText))
	writeArtifact(t, store, h, workspace.KindScript, testScriptText)
	writeArtifact(t, store, h, workspace.KindPhonetic, testPhoneticText)
	require.NoError(t, workspace.WriteJSON(store, h, workspace.KindScriptMetadata, script.Metadata{
		Entity: h.Key, ContentHash: hash, Phonetic: &script.PhoneticInfo{SourceHash: hash},
	}))
	require.NoError(t, workspace.WriteJSON(store, h, workspace.KindStoryboard, storyboard.Document{
		Entity: h.Key, SourceHash: "stale", Shots: []storyboard.Shot{{Index: 1, ScriptText: "a"}},
	}))
	require.NoError(t, workspace.WriteJSON(store, h, workspace.KindMusicBrief, storyboard.MusicBrief{
		Entity: h.Key, SourceHash: "stale", Styles: []storyboard.Style{{Prompt: "x"}},
	}))

	var asked []string
	report, err := ctrl.Run(context.Background(), "Test Subject", Options{
		Until: UntilStoryboard,
		OnStale: func(_ context.Context, _ *workspace.Handle, artifact string, _ Snapshot) (Decision, error) {
			asked = append(asked, artifact)
			return DecisionAbort, nil
		},
	})
	require.NoError(t, err)
	require.True(t, report.Aborted)
	require.Equal(t, "storyboard", report.AbortedAt)
	require.Equal(t, []string{"storyboard"}, asked)

	// With the nil default the controller also refuses to touch it.
	report, err = ctrl.Run(context.Background(), "Test Subject", Options{Until: UntilStoryboard})
	require.NoError(t, err)
	require.True(t, report.Aborted)
}

func TestRunLockConflict(t *testing.T) {
	ctrl, store := newTestController(t, &fakeClient{}, &fakeSearcher{})
	h, err := store.Resolve("Test Subject")
	require.NoError(t, err)

	other := flock.New(h.LockPath())
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { require.NoError(t, other.Unlock()) }()

	_, err = ctrl.Run(context.Background(), "Test Subject", Options{})
	require.ErrorIs(t, err, services.ErrConflict)
}

func TestParseOptions(t *testing.T) {
	for _, value := range []string{"script", "storyboard", "assets", "full"} {
		until, err := ParseUntil(value)
		require.NoError(t, err)
		require.Equal(t, Until(value), until)
	}
	_, err := ParseUntil("everything")
	require.ErrorIs(t, err, services.ErrValidation)

	for _, value := range []string{"reuse", "regenerate", "abort"} {
		decision, err := ParseDecision(value)
		require.NoError(t, err)
		require.Equal(t, Decision(value), decision)
	}
	_, err = ParseDecision("maybe")
	require.ErrorIs(t, err, services.ErrValidation)
}
