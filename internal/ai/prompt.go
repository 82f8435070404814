package ai

import "strings"

// SystemPrompt fixes the response contract for every provider.
const SystemPrompt = "You extract recipes from web page text. Reply with a single JSON object and nothing else."

const promptTemplate = `Extract recipe information from the following text and return a JSON object with this exact structure:
{
  "title": "Recipe title",
  "description": "Brief description",
  "prep_time_minutes": number or null,
  "cook_time_minutes": number or null,
  "servings": number or null,
  "difficulty_level": "easy" | "medium" | "hard",
  "cuisine_type": "string or null",
  "ingredients": [
    {"name": "ingredient name", "quantity": number or null, "unit": "measurement unit", "preparation_notes": "optional preparation instructions"}
  ],
  "instructions": ["step one", "step two"],
  "tags": ["tag1", "tag2"],
  "confidence_score": 0.0 to 1.0
}

Only use information present in the text. If the text doesn't contain a recipe, set confidence_score to 0.0 and return minimal structure.

Text to analyze:
`

// Prompt builds the user prompt for text.
func Prompt(text string) string {
	var b strings.Builder
	b.Grow(len(promptTemplate) + len(text))
	b.WriteString(promptTemplate)
	b.WriteString(text)
	return b.String()
}
