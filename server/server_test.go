package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/paperdesk/analysis"
	"github.com/paperdesk/paperdesk/config"
	"github.com/paperdesk/paperdesk/llm"
	"github.com/paperdesk/paperdesk/llm/testutil"
	"github.com/paperdesk/paperdesk/paper"
	"github.com/paperdesk/paperdesk/section"
	"github.com/paperdesk/paperdesk/store"
)

type serverFixture struct {
	srv     *httptest.Server
	store   *store.Store
	mock    *testutil.MockLLMClient
	graph   *section.Graph
	dataDir string
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()

	g := section.DefaultStructure()
	dataDir := t.TempDir()
	st, err := store.Open(filepath.Join(dataDir, "papers"), g)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mock := &testutil.MockLLMClient{
		Responses: []*llm.Response{{Content: "  生成的内容  ", Model: "m"}},
	}
	svc, err := analysis.NewService(dataDir, mock)
	require.NoError(t, err)

	s := NewServer(g, st, mock, config.ModelConfig{
		Provider: "gemini",
		Model:    "gemini-2.5-flash",
	}, WithAnalysis(svc))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &serverFixture{srv: srv, store: st, mock: mock, graph: g, dataDir: dataDir}
}

func (f *serverFixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	return readBody(t, resp)
}

func (f *serverFixture) post(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) (*http.Response, []byte) {
	t.Helper()
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestStructureEndpoint(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/api/structure")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	specs := decode[[]section.Spec](t, body)
	require.Len(t, specs, 10)
	assert.Equal(t, section.KeyIdea, specs[0].Key)
}

func TestPaperLifecycle(t *testing.T) {
	f := newFixture(t)

	// Create.
	resp, body := f.post(t, "/api/papers/new", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[struct {
		Status string     `json:"status"`
		Paper  paper.Info `json:"paper"`
	}](t, body)
	assert.Equal(t, "success", created.Status)
	id := created.Paper.ID
	require.NotEmpty(t, id)

	// List.
	resp, body = f.get(t, "/api/papers")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decode[[]paper.Info](t, body)
	require.Len(t, listed, 1)

	// Save with content, then load it back.
	doc := paper.New(id, created.Paper.DocumentName, f.graph)
	doc.Sections[section.KeyIdea] = section.State{Content: "想法", Status: section.StatusCompleted}
	resp, _ = f.post(t, "/api/paper/"+id, doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.get(t, "/api/paper/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var back paper.Document
	require.NoError(t, json.Unmarshal(body, &back))
	assert.Equal(t, "想法", back.Sections[section.KeyIdea].Content)

	// Rename.
	resp, _ = f.post(t, "/api/paper/rename/"+id, map[string]string{"newName": "新名字"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Delete.
	req, err := http.NewRequest(http.MethodDelete, f.srv.URL+"/api/paper/"+id, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	resp, _ = f.get(t, "/api/paper/"+id)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLoadPaperNotFoundEnvelope(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/api/paper/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	env := decode[map[string]string](t, body)
	assert.Equal(t, "error", env["status"])
	assert.Contains(t, env["message"], "不存在")
}

func TestRenameRejectsEmptyName(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, "/api/paper/rename/whatever", map[string]string{"newName": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env := decode[map[string]string](t, body)
	assert.Equal(t, "论文名称不能为空。", env["message"])
}

func TestGenerateEndpoint(t *testing.T) {
	f := newFixture(t)

	doc := paper.New("p", "论文", f.graph)
	doc.Sections[section.KeyIdea] = section.State{Content: "想法", Status: section.StatusCompleted}

	resp, body := f.post(t, "/api/generate", &paper.GenerateRequest{
		APIKey:        "key",
		Temperature:   0.5,
		TargetSection: section.KeyTitle,
		ActionType:    "generate",
		PaperData:     doc,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := decode[map[string]string](t, body)
	assert.Equal(t, "success", env["status"])
	// The model's output is trimmed before returning.
	assert.Equal(t, "生成的内容", env["content"])

	reqs := f.mock.GetCapturedRequests()
	require.Len(t, reqs, 1)
	// Provider and model fall back to the server defaults.
	assert.Equal(t, "gemini", reqs[0].Provider)
	assert.Equal(t, "gemini-2.5-flash", reqs[0].Model)
	assert.Equal(t, "key", reqs[0].APIKey)
	require.NotNil(t, reqs[0].Temperature)
	assert.Equal(t, 0.5, *reqs[0].Temperature)
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, "/api/generate", &paper.GenerateRequest{
		TargetSection: section.KeyTitle,
		ActionType:    "generate",
		PaperData:     paper.New("p", "论文", f.graph),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env := decode[map[string]string](t, body)
	assert.Equal(t, "API Key 缺失。", env["message"])
	assert.Equal(t, 0, f.mock.GetCallCount())
}

func TestGenerateRejectsUnknownSection(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.post(t, "/api/generate", &paper.GenerateRequest{
		APIKey:        "key",
		TargetSection: "nonexistent",
		ActionType:    "generate",
		PaperData:     paper.New("p", "论文", f.graph),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateModelFailure(t *testing.T) {
	f := newFixture(t)
	f.mock.Err = assert.AnError

	resp, body := f.post(t, "/api/generate", &paper.GenerateRequest{
		APIKey:        "key",
		TargetSection: section.KeyTitle,
		ActionType:    "generate",
		PaperData:     paper.New("p", "论文", f.graph),
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	env := decode[map[string]string](t, body)
	assert.Equal(t, "error", env["status"])
}

func TestExportEndpoint(t *testing.T) {
	f := newFixture(t)

	info, err := f.store.Create()
	require.NoError(t, err)
	doc, err := f.store.Load(info.ID)
	require.NoError(t, err)
	doc.Sections[section.KeyTitle] = section.State{Content: "标题", Status: section.StatusCompleted}
	require.NoError(t, f.store.Save(doc))

	resp, body := f.get(t, "/api/paper/export/"+info.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	assert.Contains(t, string(body), "# 标题")

	resp, body = f.get(t, "/api/paper/export/"+info.ID+"?format=html")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "<h1>标题</h1>")

	resp, _ = f.get(t, "/api/paper/export/"+info.ID+"?format=docx")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalysisEndpoints(t *testing.T) {
	f := newFixture(t)

	pdfPath := filepath.Join(f.dataDir, "papers", "study.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 stub"), 0o644))

	resp, body := f.get(t, "/api/analysis/papers")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	statuses := decode[[]analysis.PaperStatus](t, body)
	require.Len(t, statuses, 1)
	assert.Equal(t, "study.pdf", statuses[0].Filename)
	assert.False(t, statuses[0].Processed)

	// Processing without an API key is rejected before touching the model.
	resp, _ = f.post(t, "/api/analysis/process", map[string]any{"filename": "study.pdf"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, f.mock.GetCallCount())

	// A missing PDF maps onto 404.
	resp, _ = f.post(t, "/api/analysis/process", map[string]any{"apiKey": "k", "filename": "missing.pdf"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Brainstorming before the report exists maps onto 404.
	resp, body = f.post(t, "/api/analysis/brainstorm", map[string]any{"apiKey": "k"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	env := decode[map[string]string](t, body)
	assert.Contains(t, env["message"], "综合分析报告尚未生成")

	// Report generation needs at least one selected paper.
	resp, _ = f.post(t, "/api/analysis/report", map[string]any{"apiKey": "k", "papers": []string{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// An absent report reads back as empty content.
	resp, body = f.get(t, "/api/analysis/report")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[map[string]string](t, body)
	assert.Empty(t, report["content"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	f.get(t, "/api/structure")
	resp, body := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "paperdesk_http_requests_total")
}
