package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/paperdesk/paper"
	"github.com/paperdesk/paperdesk/section"
)

func testDoc(t *testing.T) (*section.Graph, *paper.Document) {
	t.Helper()
	g := section.DefaultStructure()
	return g, paper.New("export-test", "导出测试", g)
}

func set(doc *paper.Document, key, content string) {
	doc.Sections[key] = section.State{Content: content, Status: section.StatusCompleted}
}

func TestMarkdownTitleBecomesH1(t *testing.T) {
	g, doc := testDoc(t)
	set(doc, section.KeyTitle, "深度学习综述")

	out := Markdown(g, doc)
	assert.True(t, strings.HasPrefix(out, "# 深度学习综述"), "got %q", out)
}

func TestMarkdownFrontMatterSections(t *testing.T) {
	g, doc := testDoc(t)
	set(doc, section.KeyAbstract, "本文回顾了……")
	set(doc, section.KeyKeywords, "深度学习；综述")

	out := Markdown(g, doc)
	assert.Contains(t, out, "## 摘要\n\n本文回顾了……")
	assert.Contains(t, out, "## 关键词\n\n深度学习；综述")
}

func TestMarkdownNumberedCounterSkipsEmpty(t *testing.T) {
	g, doc := testDoc(t)
	set(doc, "introduction", "引言内容")
	// background left empty: the counter must not skip a number for it.
	set(doc, "methods", "方法内容")
	set(doc, "conclusion", "结论内容")

	out := Markdown(g, doc)
	assert.Contains(t, out, "## 1. 引言")
	assert.Contains(t, out, "## 2. 研究方法")
	assert.Contains(t, out, "## 3. 结论")
	assert.NotContains(t, out, "理论背景")
}

func TestMarkdownIdeaIsUnnumbered(t *testing.T) {
	g, doc := testDoc(t)
	set(doc, section.KeyIdea, "核心想法内容")

	out := Markdown(g, doc)
	assert.Contains(t, out, "## 核心想法\n\n核心想法内容")
}

func TestMarkdownStripsAnnotations(t *testing.T) {
	g, doc := testDoc(t)
	set(doc, section.KeyAbstract, "本文提出了{{一种新方法}}【修改意见：表述过于宽泛】。")

	out := Markdown(g, doc)
	assert.Contains(t, out, "本文提出了一种新方法。")
	assert.NotContains(t, out, "修改意见")
	assert.NotContains(t, out, "{{")
}

func TestMarkdownSkipsSectionEmptyAfterStripping(t *testing.T) {
	g, doc := testDoc(t)
	set(doc, section.KeyTitle, "标题")
	set(doc, section.KeyAbstract, "{{ }}【修改意见：补充摘要】")

	out := Markdown(g, doc)
	assert.NotContains(t, out, "## 摘要")
}

func TestMarkdownSkipsWhitespaceSections(t *testing.T) {
	g, doc := testDoc(t)
	set(doc, section.KeyTitle, "标题")
	set(doc, section.KeyAbstract, "   \n\t")

	out := Markdown(g, doc)
	assert.NotContains(t, out, "## 摘要")
}

func TestMarkdownSectionSeparation(t *testing.T) {
	g, doc := testDoc(t)
	set(doc, section.KeyTitle, "标题")
	set(doc, section.KeyAbstract, "摘要内容")

	out := Markdown(g, doc)
	// A blank line separates the title block from the next heading.
	assert.Contains(t, out, "# 标题\n\n\n## 摘要")
}

func TestMarkdownEmptyDocument(t *testing.T) {
	g, doc := testDoc(t)
	assert.Empty(t, Markdown(g, doc))
}

func TestHTMLRendersHeadings(t *testing.T) {
	g, doc := testDoc(t)
	set(doc, section.KeyTitle, "标题")
	set(doc, "introduction", "引言**重点**内容")

	out, err := HTML(g, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>标题</h1>")
	assert.Contains(t, out, "<h2>1. 引言</h2>")
	assert.Contains(t, out, "<strong>重点</strong>")
}
