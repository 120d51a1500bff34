package server

import (
	"fmt"
	"strings"

	"github.com/paperdesk/paperdesk/paper"
	"github.com/paperdesk/paperdesk/section"
)

// buildPrompt assembles the generation prompt for one section action.
// Context comes from the section's direct dependencies that have content;
// the action decides the closing instruction.
func buildPrompt(g *section.Graph, req *paper.GenerateRequest) (string, error) {
	key := req.TargetSection
	if !g.Contains(key) {
		return "", &section.UnknownSectionError{Key: key}
	}

	language := req.Language
	if language == "" {
		language = "中文"
	}

	parts := []string{
		fmt.Sprintf("你是一位专业的学术论文作者，你的任务是使用%s撰写或优化论文的一部分。", language),
	}

	var contextParts []string
	for _, dep := range g.Dependencies(key) {
		st, ok := req.PaperData.Sections[dep]
		if !ok || strings.TrimSpace(st.Content) == "" {
			continue
		}
		contextParts = append(contextParts, fmt.Sprintf("【%s】:\n%s", g.Name(dep), st.Content))
	}
	if len(contextParts) > 0 {
		parts = append(parts, "\n请基于以下背景信息：\n"+strings.Join(contextParts, "\n\n"))
	}

	name := g.Name(key)
	current := ""
	if st, ok := req.PaperData.Sections[key]; ok {
		current = st.Content
	}

	switch req.ActionType {
	case "generate":
		parts = append(parts,
			fmt.Sprintf("\n请根据以上背景信息，为论文用%s撰写【%s】部分。请确保内容专业、详尽、逻辑清晰。", language, name))

	case "modify":
		parts = append(parts,
			fmt.Sprintf("\n当前【%s】部分的内容如下：\n%s", name, current),
			fmt.Sprintf("\n请根据以上所有信息和用户的修改指令，用%s优化并重写【%s】部分。", language, name),
			fmt.Sprintf("\n【用户指令】:\n%s", req.UserPrompt))

	case "expand":
		parts = append(parts,
			fmt.Sprintf("\n当前【%s】部分的内容如下：\n%s", name, current),
			fmt.Sprintf("\n请在保持原有论点和结构的前提下，用%s对【%s】部分进行扩写，补充论证细节、例证和过渡，使内容更加充实。", language, name))

	case "polish":
		parts = append(parts,
			fmt.Sprintf("\n当前【%s】部分的内容如下：\n%s", name, current),
			fmt.Sprintf("\n请在不改变内容实质的前提下，用%s对【%s】部分进行润色，改进措辞、句式和学术表达。", language, name))

	case "annotate":
		parts = append(parts,
			fmt.Sprintf("\n当前【%s】部分的内容如下：\n%s", name, current),
			fmt.Sprintf("\n请以审稿人的身份审阅【%s】部分，找出需要改进的语句。对每一处，用 {{原文}}【修改意见：你的意见】 的格式在原文中就地标注，其余文字保持原样。返回标注后的完整内容。", name))

	case "modify_annotated":
		parts = append(parts,
			fmt.Sprintf("\n当前【%s】部分的内容如下（其中包含 {{原文}}【修改意见：...】 格式的批注）：\n%s", name, current),
			fmt.Sprintf("\n请逐条落实批注中的修改意见，用%s重写【%s】部分，并在结果中移除所有批注标记。", language, name))
		if strings.TrimSpace(req.UserPrompt) != "" {
			parts = append(parts, fmt.Sprintf("\n【用户指令】:\n%s", req.UserPrompt))
		}

	default:
		return "", fmt.Errorf("unknown action type %q", req.ActionType)
	}

	parts = append(parts, "\n你的回答应仅包含所要求部分的文本内容，不要添加任何额外的标题、标签或解释性文字。")

	return strings.Join(parts, "\n"), nil
}
