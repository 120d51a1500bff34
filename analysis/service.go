// Package analysis implements the literature pipeline: PDF papers are
// converted to Markdown, analyzed individually, synthesized into one
// comprehensive report, and mined for research topics. Results are plain
// Markdown files under the data directory so they survive restarts and
// stay inspectable.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/paperdesk/paperdesk/llm"
)

// Result files live under <dataDir>/result.
const (
	papersDirName    = "papers"
	markdownsDirName = "markdowns"
	analysesDirName  = "analyses"
	reportsDirName   = "reports"

	reportFileName     = "Comprehensive_Report.md"
	brainstormFileName = "Brainstorming_Result.md"
)

// Errors reported by the pipeline.
var (
	// ErrNoReport is returned when the comprehensive report has not been
	// generated yet.
	ErrNoReport = errors.New("analysis: comprehensive report not generated")

	// ErrNoAnalyses is returned when a synthesis step has no single-paper
	// analyses to draw from.
	ErrNoAnalyses = errors.New("analysis: no paper analyses available")
)

// PaperNotFoundError reports a PDF that is not in the papers directory.
type PaperNotFoundError struct {
	Filename string
}

func (e *PaperNotFoundError) Error() string {
	return fmt.Sprintf("analysis: paper %s not found", e.Filename)
}

// PaperStatus is one entry of the paper processing overview.
type PaperStatus struct {
	Filename       string `json:"filename"`
	MarkdownExists bool   `json:"markdown_exists"`
	AnalysisExists bool   `json:"analysis_exists"`
	Processed      bool   `json:"processed"`
}

// ModelParams is the model selection for one pipeline call.
type ModelParams struct {
	Provider    string
	Model       string
	APIKey      string
	Endpoint    string
	Temperature float64
}

// Service runs the pipeline over one data directory.
type Service struct {
	papersDir    string
	markdownsDir string
	analysesDir  string
	reportsDir   string

	completer llm.Completer
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates the pipeline directories under dataDir.
func NewService(dataDir string, completer llm.Completer, opts ...Option) (*Service, error) {
	resultDir := filepath.Join(dataDir, "result")
	s := &Service{
		papersDir:    filepath.Join(dataDir, papersDirName),
		markdownsDir: filepath.Join(resultDir, markdownsDirName),
		analysesDir:  filepath.Join(resultDir, analysesDirName),
		reportsDir:   filepath.Join(resultDir, reportsDirName),
		completer:    completer,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, dir := range []string{s.papersDir, s.markdownsDir, s.analysesDir, s.reportsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return s, nil
}

// PaperStatuses lists the PDFs in the papers directory with their
// processing state.
func (s *Service) PaperStatuses() ([]PaperStatus, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(s.papersDir, "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("scan papers: %w", err)
	}
	sort.Strings(matches)

	statuses := make([]PaperStatus, 0, len(matches))
	for _, path := range matches {
		stem := strings.TrimSuffix(filepath.Base(path), ".pdf")
		md := exists(filepath.Join(s.markdownsDir, stem+".md"))
		an := exists(filepath.Join(s.analysesDir, stem+".md"))
		statuses = append(statuses, PaperStatus{
			Filename:       filepath.Base(path),
			MarkdownExists: md,
			AnalysisExists: an,
			Processed:      md && an,
		})
	}
	return statuses, nil
}

// markdownPrompt converts a PDF into structured Markdown.
const markdownPrompt = "请将这篇PDF论文的内容，包括文本、表格、公式等，完整地转换为结构清晰的Markdown格式。请保留原始的章节结构。"

// analysisPrompt produces the per-paper academic analysis.
const analysisPrompt = `请对这篇PDF论文进行深入、专业的学术分析，并以Markdown格式返回。分析应包括以下几个方面：
1.  **核心研究问题**: 本文试图解决的关键科学问题是什么？
2.  **主要创新点/贡献**: 本文最主要的学术贡献和创新之处在哪里？
3.  **研究方法**: 作者采用了什么关键技术、模型或实验方法？方法的优缺点是什么？
4.  **核心结论**: 文章得出了哪些重要结论？
5.  **潜在不足与未来展望**: 本文存在哪些局限性？未来可以从哪些方向进一步研究？`

// ProcessPaper runs the two single-paper steps for one PDF, skipping any
// step whose result file already exists. The Markdown conversion runs
// deterministically; the analysis step uses the configured temperature.
func (s *Service) ProcessPaper(ctx context.Context, filename string, p ModelParams) error {
	path := filepath.Join(s.papersDir, filepath.Base(filename))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PaperNotFoundError{Filename: filename}
		}
		return fmt.Errorf("read paper %s: %w", filename, err)
	}
	stem := strings.TrimSuffix(filepath.Base(filename), ".pdf")

	mdPath := filepath.Join(s.markdownsDir, stem+".md")
	if !exists(mdPath) {
		zero := 0.0
		content, err := s.analyzePDF(ctx, data, markdownPrompt, p, &zero)
		if err != nil {
			return fmt.Errorf("convert %s: %w", filename, err)
		}
		if err := os.WriteFile(mdPath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("save markdown %s: %w", stem, err)
		}
		s.logger.Info("paper converted", "paper", stem)
	}

	anPath := filepath.Join(s.analysesDir, stem+".md")
	if !exists(anPath) {
		content, err := s.analyzePDF(ctx, data, analysisPrompt, p, &p.Temperature)
		if err != nil {
			return fmt.Errorf("analyze %s: %w", filename, err)
		}
		if err := os.WriteFile(anPath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("save analysis %s: %w", stem, err)
		}
		s.logger.Info("paper analyzed", "paper", stem)
	}

	return nil
}

// analyzePDF sends one PDF plus prompt to the model.
func (s *Service) analyzePDF(ctx context.Context, pdf []byte, prompt string, p ModelParams, temperature *float64) (string, error) {
	resp, err := s.completer.Complete(ctx, llm.Request{
		Provider:    p.Provider,
		Model:       p.Model,
		APIKey:      p.APIKey,
		Endpoint:    p.Endpoint,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: temperature,
		Attachments: []llm.Attachment{{MIMEType: "application/pdf", Data: pdf}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// AnalyzedPapers lists the stems that have a single-paper analysis.
func (s *Service) AnalyzedPapers() ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(s.analysesDir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan analyses: %w", err)
	}
	stems := make([]string, 0, len(matches))
	for _, path := range matches {
		stems = append(stems, strings.TrimSuffix(filepath.Base(path), ".md"))
	}
	sort.Strings(stems)
	return stems, nil
}

// Report returns the comprehensive report, ErrNoReport when absent.
func (s *Service) Report() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.reportsDir, reportFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoReport
		}
		return "", fmt.Errorf("read report: %w", err)
	}
	return string(data), nil
}

// reportPrompt synthesizes single-paper analyses into one review.
const reportPrompt = `你是一位顶尖的科研学者，你的任务是基于以下提供的多篇文献分析报告，撰写一份全面而深刻的综合性文献综述报告。

请遵循以下结构和要求，以Markdown格式输出：
1.  **引言**: 简要介绍该研究领域的背景和重要性。
2.  **研究热点与核心主题**: 综合所有文献，识别并总结出当前研究领域的主要热点和反复出现的核心主题。
3.  **主流方法与技术路径**: 归纳这些研究中采用的主流研究方法、模型或技术，并比较它们的优劣。
4.  **共识与争议**: 总结学界在哪些问题上已基本形成共识，以及存在哪些尚未解决的争议或矛盾的观点。
5.  **研究空白与未来方向**: 基于现有研究的局限性，敏锐地指出当前研究中存在的空白（Gaps），并提出几个具有前景的未来研究方向。
6.  **结论**: 对整个领域的现状进行简要总结。

--- 以下是待分析的文献报告 ---
`

// GenerateReport synthesizes the selected analyses into the comprehensive
// report, overwriting any previous one.
func (s *Service) GenerateReport(ctx context.Context, stems []string, p ModelParams) (string, error) {
	combined := s.combinedAnalyses(stems)
	if combined == "" {
		return "", ErrNoAnalyses
	}

	content, err := s.generate(ctx, reportPrompt+combined+"\n", p)
	if err != nil {
		return "", fmt.Errorf("generate report: %w", err)
	}

	if err := os.WriteFile(filepath.Join(s.reportsDir, reportFileName), []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	s.logger.Info("comprehensive report generated", "papers", len(stems))
	return content, nil
}

// combinedAnalyses concatenates the analysis files for the given stems.
func (s *Service) combinedAnalyses(stems []string) string {
	var b strings.Builder
	for _, stem := range stems {
		data, err := os.ReadFile(filepath.Join(s.analysesDir, stem+".md"))
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "--- 分析文档: %s ---\n\n%s\n\n", stem, data)
	}
	return b.String()
}

// BrainstormResult returns the saved brainstorming output, "" when absent.
func (s *Service) BrainstormResult() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.reportsDir, brainstormFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read brainstorm result: %w", err)
	}
	return string(data), nil
}

// brainstormPrompt mines the report and analyses for research topics.
const brainstormPrompt = `作为一名顶尖的战略科学家，你的任务是基于以下提供的两类信息，提出5个最具研究价值的创新性研究课题。
信息源说明:
1.  **综合分析报告 (宏观视角)**: 这份报告总结了研究领域的整体趋势、热点和已知的研究空白。
2.  **各单篇文献分析详情 (微观细节)**: 这些是每篇论文的深入分析，包含具体的方法、结论和局限性。
你的核心任务: 综合利用宏观报告的广度和微观细节的深度。请特别关注那些在单篇分析中提到但可能在宏观报告中被忽略的细微矛盾、特定方法的局限性或新兴的苗头。你的目标是找到真正“深藏”的研究机会。
每个课题都必须满足以下条件:
- **创新性 (Novelty)**: 必须是报告中明确指出的研究空白或现有研究的延伸，避免重复。
- **可行性 (Feasibility)**: 提出的研究问题在理论上和技术上应是可行的。
- **重要性 (Significance)**: 解决该问题应对该领域产生重要影响。
- **清晰具体**: 问题应表述清晰、范围明确。

请以以下格式返回结果:
**研究课题 1:**
- **问题陈述**: [清晰地陈述研究问题]
- **创新点与动机**: [解释为什么这个问题是创新的，并结合宏观和微观信息说明研究动机]
- **简要研究思路**: [提出一个初步的研究方法或技术路径]
...

--- 以下是你的分析材料 ---
`

// refinePromptHeader guides a follow-up revision of existing topics.
const refinePromptHeader = `你是一位顶尖的科研学者。请基于下面提供的“原始研究课题”和用户的“修改指令”，对研究课题进行优化和调整。
请保持原有格式，并以Markdown格式返回修改后的完整内容。

--- 原始研究课题 ---
`

// Brainstorm produces research topics. With an existing result and a
// modification instruction it refines the previous output; otherwise it
// generates fresh topics from the report and all analyses, which requires
// the report to exist.
func (s *Service) Brainstorm(ctx context.Context, existing, modification string, p ModelParams) (string, error) {
	var prompt string
	if modification != "" && existing != "" {
		prompt = refinePromptHeader + existing + "\n\n--- 修改指令 ---\n" + modification + "\n"
	} else {
		report, err := s.Report()
		if err != nil {
			return "", err
		}
		stems, err := s.AnalyzedPapers()
		if err != nil {
			return "", err
		}
		source := "--- 综合分析报告 (宏观视角) ---\n\n" + report + "\n\n" +
			"--- 各单篇文献分析详情 (微观细节) ---\n\n" + s.combinedAnalyses(stems)
		prompt = brainstormPrompt + source + "\n"
	}

	content, err := s.generate(ctx, prompt, p)
	if err != nil {
		return "", fmt.Errorf("brainstorm: %w", err)
	}

	if err := os.WriteFile(filepath.Join(s.reportsDir, brainstormFileName), []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("save brainstorm result: %w", err)
	}
	return content, nil
}

// generate runs one text-only completion.
func (s *Service) generate(ctx context.Context, prompt string, p ModelParams) (string, error) {
	resp, err := s.completer.Complete(ctx, llm.Request{
		Provider:    p.Provider,
		Model:       p.Model,
		APIKey:      p.APIKey,
		Endpoint:    p.Endpoint,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: &p.Temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
