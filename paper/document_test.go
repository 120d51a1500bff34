package paper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/paperdesk/section"
)

func TestNewDocument(t *testing.T) {
	g := section.DefaultStructure()
	doc := New("id-1", "测试论文", g)

	assert.Equal(t, "id-1", doc.ID)
	assert.Equal(t, "测试论文", doc.DocumentName)
	require.Len(t, doc.Sections, 10)
	for key, st := range doc.Sections {
		assert.Empty(t, st.Content, "section %s", key)
		assert.Equal(t, section.StatusEmpty, st.Status, "section %s", key)
	}
}

func TestDocumentMarshalFlat(t *testing.T) {
	g := section.DefaultStructure()
	doc := New("id-1", "我的论文", g)
	doc.Sections[section.KeyIdea] = section.State{Content: "想法", Status: section.StatusCompleted}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &flat))

	// documentName sits at the same level as the section objects; the id
	// is routing information and never serialized.
	assert.Contains(t, flat, "documentName")
	assert.NotContains(t, flat, "id")
	assert.Contains(t, flat, section.KeyIdea)

	var st struct {
		Content string `json:"content"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(flat[section.KeyIdea], &st))
	assert.Equal(t, "想法", st.Content)
	assert.Equal(t, "completed", st.Status)
}

func TestDocumentUnmarshalFlat(t *testing.T) {
	payload := `{
		"documentName": "论文A",
		"idea": {"content": "想法", "status": "completed"},
		"title": {"content": "", "status": "empty"}
	}`

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(payload), &doc))

	assert.Equal(t, "论文A", doc.DocumentName)
	assert.Equal(t, "想法", doc.Sections["idea"].Content)
	assert.Equal(t, section.StatusCompleted, doc.Sections["idea"].Status)
	assert.Equal(t, section.StatusEmpty, doc.Sections["title"].Status)
}

func TestDocumentUnmarshalTolerant(t *testing.T) {
	// Non-object entries are skipped, matching the historical loader.
	payload := `{
		"documentName": "论文B",
		"idea": {"content": "x", "status": "completed"},
		"stray": 42
	}`

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(payload), &doc))
	assert.Equal(t, "论文B", doc.DocumentName)
	assert.Contains(t, doc.Sections, "idea")
	assert.NotContains(t, doc.Sections, "stray")
}

func TestDocumentRoundTrip(t *testing.T) {
	g := section.DefaultStructure()
	doc := New("rt", "往返", g)
	doc.Sections[section.KeyTitle] = section.State{Content: "标题", Status: section.StatusCompleted}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var back Document
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, doc.DocumentName, back.DocumentName)
	assert.Equal(t, doc.Sections[section.KeyTitle], back.Sections[section.KeyTitle])
	require.Len(t, back.Sections, len(doc.Sections))
}

func TestGenerateRequestWireFormat(t *testing.T) {
	req := GenerateRequest{
		APIKey:        "k",
		Model:         "m",
		Temperature:   0.7,
		Language:      "中文",
		TargetSection: "title",
		ActionType:    "generate",
	}

	data, err := json.Marshal(&req)
	require.NoError(t, err)

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &flat))
	for _, field := range []string{"apiKey", "model", "temperature", "language", "target_section", "action_type"} {
		assert.Contains(t, flat, field)
	}
	// The optional instruction is omitted when empty.
	assert.NotContains(t, flat, "user_prompt")
}
