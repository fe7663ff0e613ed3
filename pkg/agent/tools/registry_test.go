package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/pkg/agent/agenttest"
	"ai-notetaking-agent/pkg/agent/bulk"
	"ai-notetaking-agent/pkg/agent/tools"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savedNotes struct {
	ids []uuid.UUID
}

func (s *savedNotes) NoteSaved(_ context.Context, _ uuid.UUID, noteId uuid.UUID) {
	s.ids = append(s.ids, noteId)
}

type fixture struct {
	store    *agenttest.MemoryStore
	registry *tools.Registry
	embedder *agenttest.FakeEmbedder
	saved    *savedNotes
	userId   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := agenttest.NewMemoryStore()
	log := logger.NewNopLogger()
	saved := &savedNotes{}
	embedder := &agenttest.FakeEmbedder{}
	ops := tools.NewOperations(s, saved, log)
	return &fixture{
		store: s,
		registry: tools.NewRegistry(tools.Deps{
			Store:      s,
			Operations: ops,
			Bulk:       bulk.NewEngine(s, log),
			Embedder:   embedder,
			Logger:     log,
		}),
		embedder: embedder,
		saved:    saved,
		userId:   uuid.New(),
	}
}

func (f *fixture) exec(t *testing.T, name string, args interface{}) tools.Result {
	t.Helper()
	raw, ok := args.(string)
	if !ok {
		b, err := json.Marshal(args)
		require.NoError(t, err)
		raw = string(b)
	}
	return f.registry.Execute(context.Background(), name, raw, f.userId)
}

func decode(t *testing.T, res tools.Result) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.JSON()), &out))
	return out
}

func TestUnknownToolIsTypedError(t *testing.T) {
	f := newFixture(t)
	res := f.exec(t, "rename_everything", "{}")
	require.True(t, res.IsError())
	assert.Equal(t, tools.KindUnknownTool, res.Err.Kind)

	body := decode(t, res)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "unknown_tool", body["kind"])
}

func TestTerminalNamesAreNotDataTools(t *testing.T) {
	f := newFixture(t)
	res := f.exec(t, string(tools.RespondToUser), `{"message":"hi"}`)
	require.True(t, res.IsError())
	assert.Equal(t, tools.KindUnknownTool, res.Err.Kind)
}

func TestMalformedArguments(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		tool tools.ToolName
		args string
	}{
		{"broken json", tools.CreatePage, `{"name": "Ops"`},
		{"missing required", tools.CreatePage, `{}`},
		{"wrong type", tools.CreatePage, `{"name": 42}`},
		{"section without parent", tools.CreateSection, `{"name":"Goals"}`},
		{"bad date", tools.CreateNote, `{"content":"x","sectionName":"a","date":"soon"}`},
		{"update nothing", tools.UpdateNote, `{"noteId":"` + uuid.NewString() + `"}`},
		{"limit too high", tools.GetNotes, `{"limit":1000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.exec(t, string(tt.tool), tt.args)
			require.True(t, res.IsError())
			assert.Equal(t, tools.KindInvalidArguments, res.Err.Kind)
		})
	}
	assert.Empty(t, f.store.PageNames(f.userId))
}

func TestBlankArgumentsDecodeAsEmptyObject(t *testing.T) {
	f := newFixture(t)
	f.store.SeedPage(f.userId, "Work")
	res := f.exec(t, string(tools.GetPages), "")
	require.False(t, res.IsError(), res.JSON())
	assert.EqualValues(t, 1, decode(t, res)["count"])
}

func TestForeignIdsAreNotFound(t *testing.T) {
	f := newFixture(t)
	other := uuid.New()
	theirPage := f.store.SeedPage(other, "Private")
	theirSection := f.store.SeedSection(theirPage.Id, "Diary")
	theirNote := f.store.SeedNote(theirSection.Id, "secret", nil, false)

	missing := uuid.New()
	calls := []struct {
		tool tools.ToolName
		args interface{}
	}{
		{tools.GetSections, map[string]interface{}{"pageId": theirPage.Id}},
		{tools.GetNotes, map[string]interface{}{"filter": map[string]interface{}{"sectionId": theirSection.Id}}},
		{tools.CreateSection, map[string]interface{}{"name": "x", "pageId": theirPage.Id}},
		{tools.CreateNote, map[string]interface{}{"content": "x", "sectionId": theirSection.Id}},
		{tools.UpdateNote, map[string]interface{}{"noteId": theirNote.Id, "completed": true}},
		{tools.DeleteNote, map[string]interface{}{"noteId": theirNote.Id}},
		{tools.DeleteNote, map[string]interface{}{"noteId": missing}},
		{tools.DeletePage, map[string]interface{}{"pageId": theirPage.Id}},
		{tools.DeleteSection, map[string]interface{}{"sectionId": theirSection.Id}},
		{tools.DeletePage, map[string]interface{}{"pageName": "Private"}},
	}
	for _, c := range calls {
		t.Run(string(c.tool), func(t *testing.T) {
			res := f.exec(t, string(c.tool), c.args)
			require.True(t, res.IsError(), res.JSON())
			assert.Equal(t, tools.KindNotFound, res.Err.Kind)
		})
	}

	note := f.store.Note(theirNote.Id)
	require.NotNil(t, note)
	assert.False(t, note.Completed)
	assert.Equal(t, []string{"Private"}, f.store.PageNames(other))
}

func TestCreateByNameAndListing(t *testing.T) {
	f := newFixture(t)

	res := f.exec(t, string(tools.CreatePage), map[string]string{"name": "Launch"})
	require.False(t, res.IsError(), res.JSON())
	res = f.exec(t, string(tools.CreateSection), map[string]string{"name": "Goals", "pageName": "launch"})
	require.False(t, res.IsError(), res.JSON())
	res = f.exec(t, string(tools.CreateNote), map[string]interface{}{
		"content": "Ship beta", "sectionName": "goals", "pageName": "Launch", "tags": []string{" Beta ", "beta"}, "date": "2024-06-01",
	})
	require.False(t, res.IsError(), res.JSON())
	note := res.Value.(tools.NoteView)
	assert.Equal(t, []string{"beta"}, note.Tags)
	assert.Equal(t, "2024-06-01", note.Date)
	assert.Equal(t, []uuid.UUID{note.Id}, f.saved.ids)

	res = f.exec(t, string(tools.GetSections), map[string]string{"pageName": "LAUNCH"})
	require.False(t, res.IsError(), res.JSON())
	assert.EqualValues(t, 1, decode(t, res)["count"])

	res = f.exec(t, string(tools.GetNotes), map[string]interface{}{"filter": map[string]interface{}{"tags": []string{"BETA"}}})
	require.False(t, res.IsError(), res.JSON())
	assert.EqualValues(t, 1, decode(t, res)["count"])

	res = f.exec(t, string(tools.GetNoteStats), "{}")
	require.False(t, res.IsError(), res.JSON())
	stats := decode(t, res)
	assert.EqualValues(t, 1, stats["pages"])
	assert.EqualValues(t, 1, stats["sections"])
	assert.EqualValues(t, 1, stats["totalNotes"])
	assert.Equal(t, []interface{}{"beta"}, stats["tags"])
}

func TestUpdateNoteReembedsOnlyOnContentChange(t *testing.T) {
	f := newFixture(t)
	section := f.store.SeedSection(f.store.SeedPage(f.userId, "Work").Id, "Todo")
	n := f.store.SeedNote(section.Id, "draft", nil, false)

	res := f.exec(t, string(tools.UpdateNote), map[string]interface{}{"noteId": n.Id, "completed": true, "date": ""})
	require.False(t, res.IsError(), res.JSON())
	assert.Empty(t, f.saved.ids)
	assert.True(t, f.store.Note(n.Id).Completed)

	res = f.exec(t, string(tools.UpdateNote), map[string]interface{}{"noteId": n.Id, "content": "final"})
	require.False(t, res.IsError(), res.JSON())
	assert.Equal(t, []uuid.UUID{n.Id}, f.saved.ids)
	assert.Equal(t, "final", f.store.Note(n.Id).Content)
}

func TestBulkToolsRejectEmptyFilter(t *testing.T) {
	f := newFixture(t)
	section := f.store.SeedSection(f.store.SeedPage(f.userId, "Work").Id, "Todo")
	for i := 0; i < 3; i++ {
		f.store.SeedNote(section.Id, "task", []string{"bug"}, false)
	}

	res := f.exec(t, string(tools.BulkUpdateNotes), `{"filter":{},"operation":"set_completion","completed":true}`)
	require.True(t, res.IsError())
	assert.Equal(t, tools.KindValidation, res.Err.Kind)

	res = f.exec(t, string(tools.BulkDeleteNotes), `{"filter":{"tags":[],"search":"  "}}`)
	require.True(t, res.IsError())
	assert.Equal(t, tools.KindValidation, res.Err.Kind)
	assert.Equal(t, 3, f.store.NoteCount())

	res = f.exec(t, string(tools.BulkUpdateNotes), `{"filter":{"tags":["bug"]},"operation":"set_completion","completed":true}`)
	require.False(t, res.IsError(), res.JSON())
	assert.EqualValues(t, 3, decode(t, res)["affectedCount"])
}

func TestSearchNotesFallsBackToText(t *testing.T) {
	f := newFixture(t)
	section := f.store.SeedSection(f.store.SeedPage(f.userId, "Work").Id, "Todo")
	hit := f.store.SeedNote(section.Id, "Renew passport", nil, false)
	f.store.SeedNote(section.Id, "Buy milk", nil, false)
	f.store.SetVector(hit.Id, []float32{0, 1, 0})
	f.embedder.Vectors = map[string][]float32{"travel documents": {0, 1, 0}}

	res := f.exec(t, string(tools.SearchNotes), map[string]string{"query": "travel documents"})
	require.False(t, res.IsError(), res.JSON())
	body := decode(t, res)
	assert.Equal(t, "semantic", body["mode"])
	assert.EqualValues(t, 1, body["count"])

	f.embedder.Err = errors.New("embedding backend down")
	res = f.exec(t, string(tools.SearchNotes), map[string]string{"query": "passport"})
	require.False(t, res.IsError(), res.JSON())
	body = decode(t, res)
	assert.Equal(t, "text", body["mode"])
	assert.EqualValues(t, 1, body["count"])
}

func TestCatalogueCoversEveryClass(t *testing.T) {
	f := newFixture(t)
	seen := map[tools.Class]int{}
	for _, def := range f.registry.Catalogue() {
		_, class := tools.Classify(def.Name)
		require.NotEqual(t, tools.ClassUnknown, class, def.Name)
		assert.True(t, json.Valid(def.Parameters), def.Name)
		seen[class]++
	}
	assert.Equal(t, 14, seen[tools.ClassData])
	assert.Equal(t, 5, seen[tools.ClassTerminal])
	assert.Equal(t, 4, seen[tools.ClassFrontend])
}
