package services

import (
	"fmt"

	"github.com/Lllllllleong/caresync/internal/gcp"
)

// MaxPromptChars is how much of the document text is sent to the model.
const MaxPromptChars = 30000

// BuildAnalysisPrompt embeds the first MaxPromptChars characters of text in
// the analysis instructions.
func BuildAnalysisPrompt(text string) string {
	return fmt.Sprintf(gcp.AnalyzerUserPromptTemplate, truncateRunes(text, MaxPromptChars))
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
