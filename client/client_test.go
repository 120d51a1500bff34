package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/paperdesk/paper"
	"github.com/paperdesk/paperdesk/section"
)

func TestStructure(t *testing.T) {
	specs := section.DefaultStructure().Specs()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/structure", r.URL.Path)
		json.NewEncoder(w).Encode(specs)
	}))
	defer srv.Close()

	g, err := New(srv.URL).Structure(context.Background())
	require.NoError(t, err)
	assert.Len(t, g.Specs(), len(specs))
	assert.Equal(t, specs[0].Key, g.Specs()[0].Key)
}

func TestListPapers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/papers", r.URL.Path)
		w.Write([]byte(`[{"id": "p1", "documentName": "论文一"}]`))
	}))
	defer srv.Close()

	papers, err := New(srv.URL).ListPapers(context.Background())
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "p1", papers[0].ID)
	assert.Equal(t, "论文一", papers[0].DocumentName)
}

func TestLoadPaper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/paper/p1", r.URL.Path)
		w.Write([]byte(`{
			"documentName": "论文一",
			"idea": {"content": "想法", "status": "completed"}
		}`))
	}))
	defer srv.Close()

	doc, err := New(srv.URL).LoadPaper(context.Background(), "p1")
	require.NoError(t, err)
	// The id comes from the request path, not the payload.
	assert.Equal(t, "p1", doc.ID)
	assert.Equal(t, "论文一", doc.DocumentName)
	assert.Equal(t, "想法", doc.Sections["idea"].Content)
}

func TestLoadPaperNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status": "error", "message": "论文 missing 不存在。"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).LoadPaper(context.Background(), "missing")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)
}

func TestSavePaperSendsFlatDocument(t *testing.T) {
	var received map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/paper/p1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"status": "success"}`))
	}))
	defer srv.Close()

	g := section.DefaultStructure()
	doc := paper.New("p1", "论文一", g)
	require.NoError(t, New(srv.URL).SavePaper(context.Background(), doc))

	assert.Contains(t, received, "documentName")
	assert.Contains(t, received, "idea")
	assert.NotContains(t, received, "id")
}

func TestCreatePaper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/papers/new", r.URL.Path)
		w.Write([]byte(`{"status": "success", "paper": {"id": "new-id", "documentName": "未命名论文-new-id"}}`))
	}))
	defer srv.Close()

	info, err := New(srv.URL).CreatePaper(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-id", info.ID)
}

func TestRenamePaper(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/paper/rename/p1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"status": "success"}`))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).RenamePaper(context.Background(), "p1", "新名字"))
	assert.Equal(t, "新名字", body["newName"])
}

func TestDeletePaper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/paper/p1", r.URL.Path)
		w.Write([]byte(`{"status": "success"}`))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).DeletePaper(context.Background(), "p1"))
}

func TestGenerate(t *testing.T) {
	var wire map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&wire))
		w.Write([]byte(`{"status": "success", "content": "生成的内容"}`))
	}))
	defer srv.Close()

	content, err := New(srv.URL).Generate(context.Background(), &paper.GenerateRequest{
		APIKey:        "k",
		Model:         "m",
		TargetSection: "title",
		ActionType:    "generate",
	})
	require.NoError(t, err)
	assert.Equal(t, "生成的内容", content)
	assert.Contains(t, wire, "target_section")
	assert.Contains(t, wire, "action_type")
}

func TestGenerateBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"status": "error", "message": "生成失败"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Generate(context.Background(), &paper.GenerateRequest{})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadGateway, be.StatusCode)
	assert.Equal(t, "生成失败", be.Message)
}

func TestErrorEnvelopeFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("plain text failure"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).ListPapers(context.Background())
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "plain text failure", be.Message)
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL).ListPapers(ctx)
	assert.Error(t, err)
}
