package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/paperdesk/paperdesk/analysis"
	"github.com/paperdesk/paperdesk/export"
	"github.com/paperdesk/paperdesk/llm"
	"github.com/paperdesk/paperdesk/paper"
	"github.com/paperdesk/paperdesk/store"
)

// ----------------------------------------------------------------------------
// Structure and paper CRUD
// ----------------------------------------------------------------------------

// handleStructure returns the section structure in declaration order.
func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.graph.Specs())
}

// handleListPapers returns the paper list.
func (s *Server) handleListPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := s.store.List()
	if err != nil {
		s.logger.Error("list papers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "无法读取论文列表。")
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

// handleCreatePaper creates a fresh empty paper.
func (s *Server) handleCreatePaper(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Create()
	if err != nil {
		s.logger.Error("create paper failed", "error", err)
		writeError(w, http.StatusInternalServerError, "无法创建新论文。")
		return
	}
	s.logger.Info("paper created", "id", info.ID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "paper": info})
}

// handleLoadPaper returns one paper's flat document payload.
func (s *Server) handleLoadPaper(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.store.Load(id)
	if err != nil {
		s.writeStoreError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleSavePaper overwrites one paper with the posted document.
func (s *Server) handleSavePaper(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var doc paper.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "请求体不是有效的论文数据。")
		return
	}
	doc.ID = id

	if err := s.store.Save(&doc); err != nil {
		s.writeStoreError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "内容已保存。"})
}

// handleDeletePaper removes one paper.
func (s *Server) handleDeletePaper(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(id); err != nil {
		s.writeStoreError(w, id, err)
		return
	}
	s.logger.Info("paper deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

// handleRenamePaper sets a paper's display name.
func (s *Server) handleRenamePaper(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req struct {
		NewName string `json:"newName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体不是有效的JSON。")
		return
	}
	if strings.TrimSpace(req.NewName) == "" {
		writeError(w, http.StatusBadRequest, "论文名称不能为空。")
		return
	}

	if err := s.store.Rename(id, req.NewName); err != nil {
		s.writeStoreError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

// handleExportPaper renders one paper as Markdown (default) or HTML.
func (s *Server) handleExportPaper(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.store.Load(id)
	if err != nil {
		s.writeStoreError(w, id, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(export.Markdown(s.graph, doc)))
	case "html":
		html, err := export.HTML(s.graph, doc)
		if err != nil {
			s.logger.Error("export failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "导出失败。")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	default:
		writeError(w, http.StatusBadRequest, "不支持的导出格式: "+format)
	}
}

// ----------------------------------------------------------------------------
// Generation
// ----------------------------------------------------------------------------

// handleGenerate runs one section action and returns the proposed content.
// Nothing is persisted here; the editor commits accepted proposals through
// the save endpoint.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req paper.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体不是有效的JSON。")
		return
	}

	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "API Key 缺失。")
		return
	}
	if req.PaperData == nil {
		writeError(w, http.StatusBadRequest, "缺少论文数据。")
		return
	}

	prompt, err := buildPrompt(s.graph, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	model := req.Model
	if model == "" {
		model = s.model.Model
	}
	temperature := req.Temperature

	resp, err := s.completer.Complete(r.Context(), llm.Request{
		Provider:    s.model.Provider,
		Model:       model,
		APIKey:      req.APIKey,
		Endpoint:    s.model.Endpoint,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		generationsTotal.WithLabelValues(req.ActionType, "error").Inc()
		s.logger.Error("generation failed",
			"section", req.TargetSection,
			"action", req.ActionType,
			"error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	generationsTotal.WithLabelValues(req.ActionType, "success").Inc()
	s.logger.Info("section generated",
		"section", req.TargetSection,
		"action", req.ActionType,
		"request_id", resp.RequestID,
		"tokens", resp.Usage.TotalTokens)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"content": strings.TrimSpace(resp.Content),
	})
}

// ----------------------------------------------------------------------------
// Literature analysis
// ----------------------------------------------------------------------------

// handlePaperStatuses lists PDFs and their processing state.
func (s *Server) handlePaperStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.analysis.PaperStatuses()
	if err != nil {
		s.logger.Error("paper statuses failed", "error", err)
		writeError(w, http.StatusInternalServerError, "无法读取文献列表。")
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// handleProcessPaper converts and analyzes one PDF.
func (s *Server) handleProcessPaper(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req struct {
		APIKey      string  `json:"apiKey"`
		Filename    string  `json:"filename"`
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体不是有效的JSON。")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "API Key 缺失。请在首页设置API Key。")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "未指定要处理的文件名。")
		return
	}

	err := s.analysis.ProcessPaper(r.Context(), req.Filename, s.modelParams(req.APIKey, req.Model, req.Temperature))
	if err != nil {
		var notFound *analysis.PaperNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "文件 "+req.Filename+" 未在服务器上找到。")
			return
		}
		s.logger.Error("process paper failed", "paper", req.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "文件 " + req.Filename + " 处理成功。",
	})
}

// handleAnalyzedPapers lists papers with a finished analysis.
func (s *Server) handleAnalyzedPapers(w http.ResponseWriter, r *http.Request) {
	stems, err := s.analysis.AnalyzedPapers()
	if err != nil {
		s.logger.Error("analyzed papers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "无法读取分析结果。")
		return
	}
	writeJSON(w, http.StatusOK, stems)
}

// handleGetReport returns the comprehensive report, empty when absent.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	content, err := s.analysis.Report()
	if err != nil && !errors.Is(err, analysis.ErrNoReport) {
		s.logger.Error("read report failed", "error", err)
		writeError(w, http.StatusInternalServerError, "无法读取综合报告。")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": content})
}

// handleGenerateReport synthesizes the comprehensive report.
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req struct {
		APIKey      string   `json:"apiKey"`
		Model       string   `json:"model"`
		Temperature float64  `json:"temperature"`
		Papers      []string `json:"papers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体不是有效的JSON。")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "API Key 缺失。请在首页设置API Key。")
		return
	}
	if len(req.Papers) == 0 {
		writeError(w, http.StatusBadRequest, "请至少选择一篇文献进行分析。")
		return
	}

	report, err := s.analysis.GenerateReport(r.Context(), req.Papers, s.modelParams(req.APIKey, req.Model, req.Temperature))
	if err != nil {
		if errors.Is(err, analysis.ErrNoAnalyses) {
			writeError(w, http.StatusInternalServerError, "未能读取所选文献的分析内容。")
			return
		}
		s.logger.Error("generate report failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "综合分析报告已生成/更新。",
		"report":  report,
	})
}

// handleGetBrainstorm returns the saved brainstorming result.
func (s *Server) handleGetBrainstorm(w http.ResponseWriter, r *http.Request) {
	content, err := s.analysis.BrainstormResult()
	if err != nil {
		s.logger.Error("read brainstorm failed", "error", err)
		writeError(w, http.StatusInternalServerError, "无法读取头脑风暴结果。")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": content})
}

// handleBrainstorm generates or refines research topics.
func (s *Server) handleBrainstorm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req struct {
		APIKey             string  `json:"apiKey"`
		Model              string  `json:"model"`
		Temperature        float64 `json:"temperature"`
		ExistingResults    string  `json:"existing_results"`
		ModificationPrompt string  `json:"modification_prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体不是有效的JSON。")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "API Key 缺失。请在首页设置API Key。")
		return
	}

	results, err := s.analysis.Brainstorm(r.Context(), req.ExistingResults, req.ModificationPrompt,
		s.modelParams(req.APIKey, req.Model, req.Temperature))
	if err != nil {
		if errors.Is(err, analysis.ErrNoReport) {
			writeError(w, http.StatusNotFound, "综合分析报告尚未生成，无法进行头脑风暴。")
			return
		}
		s.logger.Error("brainstorm failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "results": results})
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// modelParams merges per-request model choices over the server defaults.
func (s *Server) modelParams(apiKey, model string, temperature float64) analysis.ModelParams {
	if model == "" {
		model = s.model.Model
	}
	return analysis.ModelParams{
		Provider:    s.model.Provider,
		Model:       model,
		APIKey:      apiKey,
		Endpoint:    s.model.Endpoint,
		Temperature: temperature,
	}
}

// writeStoreError maps store errors onto the API envelope.
func (s *Server) writeStoreError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "论文 "+id+" 不存在。")
	default:
		var invalid *store.InvalidIDError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, "无效的论文ID。")
			return
		}
		s.logger.Error("store operation failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON marshals v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Response is already partially written; nothing left to do.
		_ = err
	}
}

// writeError writes the error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": "error", "message": message})
}
