package insight

import (
	"strings"

	"github.com/RobinCoderZhao/epigram/internal/news"
)

const instructions = `As an expert journalist and storyteller, analyze these articles and create a clear, structured summary in the following format:

KEY TAKEAWAYS:
• List 3-4 main points from across all articles
• Each point should be 1-2 sentences

MAIN STORY:
• Break down the story into 4-5 short paragraphs
• Each paragraph should be 2-3 sentences maximum
• Use simple, clear language

KEY FACTS:
• List 2-3 notable statistics or facts
• Include sources where relevant

WHAT'S NEXT:
• 2-3 bullet points about potential future implications
• Keep predictions grounded in the source material

Please maintain journalistic integrity while making the content accessible and easy to scan.

Source Articles:
`

// BuildPrompt renders the four-section summary prompt for sources.
func BuildPrompt(sources []news.Article) string {
	var sb strings.Builder
	sb.WriteString(instructions)
	for i, s := range sources {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("URL: ")
		sb.WriteString(s.URL)
		sb.WriteString("\nContent: ")
		sb.WriteString(s.Text)
	}
	return sb.String()
}
