package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/paperdesk/section"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), section.DefaultStructure())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreCreateAndList(t *testing.T) {
	s := openStore(t)

	infos, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, infos)

	info, err := s.Create()
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Contains(t, info.DocumentName, "未命名论文-")

	infos, err = s.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, info.ID, infos[0].ID)
	assert.Equal(t, info.DocumentName, infos[0].DocumentName)
}

func TestStoreListSortedByName(t *testing.T) {
	s := openStore(t)

	for _, name := range []string{"丙", "甲", "乙"} {
		info, err := s.Create()
		require.NoError(t, err)
		require.NoError(t, s.Rename(info.ID, name))
	}

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "丙", infos[0].DocumentName)
	assert.Equal(t, "乙", infos[1].DocumentName)
	assert.Equal(t, "甲", infos[2].DocumentName)
}

func TestStoreLoadSaveRoundTrip(t *testing.T) {
	s := openStore(t)

	info, err := s.Create()
	require.NoError(t, err)

	doc, err := s.Load(info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, doc.ID)
	assert.Equal(t, info.DocumentName, doc.DocumentName)

	doc.Sections[section.KeyIdea] = section.State{
		Content: "研究想法",
		Status:  section.StatusCompleted,
	}
	require.NoError(t, s.Save(doc))

	back, err := s.Load(info.ID)
	require.NoError(t, err)
	assert.Equal(t, "研究想法", back.Sections[section.KeyIdea].Content)
	assert.Equal(t, section.StatusCompleted, back.Sections[section.KeyIdea].Status)
}

func TestStoreLoadNotFound(t *testing.T) {
	s := openStore(t)

	_, err := s.Load("no-such-paper")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreInvalidIDs(t *testing.T) {
	s := openStore(t)

	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		_, err := s.Load(id)
		var invalid *InvalidIDError
		assert.ErrorAs(t, err, &invalid, "id %q", id)
	}
}

func TestStoreRename(t *testing.T) {
	s := openStore(t)

	info, err := s.Create()
	require.NoError(t, err)

	require.NoError(t, s.Rename(info.ID, "新名字"))

	doc, err := s.Load(info.ID)
	require.NoError(t, err)
	assert.Equal(t, "新名字", doc.DocumentName)

	assert.Error(t, s.Rename(info.ID, "   "))
	assert.ErrorIs(t, s.Rename("missing", "x"), ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	s := openStore(t)

	info, err := s.Create()
	require.NoError(t, err)

	require.NoError(t, s.Delete(info.ID))

	_, err = s.Load(info.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(info.ID), ErrNotFound)

	infos, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestStoreSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, section.DefaultStructure())
	require.NoError(t, err)
	defer s.Close()

	info, err := s.Create()
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	// The file on disk is valid flat JSON with documentName at the top level.
	data, err := os.ReadFile(filepath.Join(dir, info.ID+".json"))
	require.NoError(t, err)
	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Contains(t, flat, "documentName")
	assert.NotContains(t, flat, "id")
}

func TestStoreListSkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, section.DefaultStructure())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Create()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	infos, err := s.List()
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}
