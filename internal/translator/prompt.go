package translator

import (
	"fmt"
	"sort"
	"strings"
)

// buildSystemPrompt constructs the translation system prompt shared by the
// LLM-backed services, optionally injecting glossary terms and extra
// instructions. Markdown structure and placeholder markers must survive the
// round trip, so the prompt spells both out.
func buildSystemPrompt(sourceLang, targetLang string, glossary map[string]string, instructions string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are a professional translator. Translate the following text from %s to %s.\n", sourceLang, targetLang))
	sb.WriteString("Only respond with the translation, nothing else. No explanations, no quotes, just the translation.\n")
	sb.WriteString("Preserve Markdown formatting exactly: headings, lists, tables, and fenced code blocks.\n")
	sb.WriteString("Leave any [CODEBLOCK…], [TABLE…], or [INDENTNUM…] markers untouched — do not translate, move, or remove them.")

	if instructions != "" {
		sb.WriteString(" ")
		sb.WriteString(instructions)
	}

	if len(glossary) > 0 {
		// Sorted so identical runs build identical prompts.
		terms := make([]string, 0, len(glossary))
		for src := range glossary {
			terms = append(terms, src)
		}
		sort.Strings(terms)

		sb.WriteString("\n\nTERMINOLOGY (use these exact translations):\n")
		for _, src := range terms {
			sb.WriteString(fmt.Sprintf("  %s → %s\n", src, glossary[src]))
		}
	}

	return sb.String()
}

// resolveSourceLang maps an empty or "auto" source language to a phrase the
// prompt can use.
func resolveSourceLang(sourceLang string) string {
	if sourceLang == "" || sourceLang == "auto" {
		return "the detected language"
	}
	return sourceLang
}
