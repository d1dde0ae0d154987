package lingoflow

import "strings"

// PromptVars are the values substituted into a prompt template.
type PromptVars struct {
	Text           string // {text}
	SourceLanguage string // {sourceLanguage}
	TargetLanguage string // {targetLanguage}
	Translation    string // {translation}, improve prompts only
}

// RenderPrompt replaces the {text}, {sourceLanguage}, {targetLanguage} and
// {translation} tokens in template. Other braces, such as placeholders in
// the text itself, are left untouched.
func RenderPrompt(template string, vars PromptVars) string {
	r := strings.NewReplacer(
		"{text}", vars.Text,
		"{sourceLanguage}", vars.SourceLanguage,
		"{targetLanguage}", vars.TargetLanguage,
		"{translation}", vars.Translation,
	)
	return r.Replace(template)
}

// DefaultTranslatePrompt is used for short UI strings.
const DefaultTranslatePrompt = `Translate this phrase or vocabulary: {text} to {targetLanguage} from {sourceLanguage}.
Give me only the translation. If there's an equivalent phrase in {targetLanguage}, provide that phrase.
Write for UX and SEO: keep it short, natural, clear and human-friendly. Prioritize meaning,
tone and context over literal translation.

IMPORTANT: Don't translate variables. Variables look like {word} and must be kept exactly as in the original text.

Guidelines:
1. Use clear, keyword-rich language.
2. Prefer a plain, natural tone over robotic or overly formal phrasing.
3. Keep translations concise; remove unnecessary words.
4. Favor phrases that work well in headings or buttons when applicable.
5. Preserve the tone of the original phrase, whether friendly, formal, playful or serious.
6. Keep the base meaning of the original phrase intact.
7. NEVER translate text inside curly braces like {this} or {variable}.
`

// DefaultArticlePrompt is used for long-form articles.
const DefaultArticlePrompt = `Translate the following article from {sourceLanguage} to {targetLanguage}.
Preserve paragraph breaks, headings, lists, links and any markup exactly.
Keep names, code and placeholders such as {variable} unchanged.
Return only the translated article with no commentary.

{text}`

// DefaultImprovePrompt asks the model to shorten an overlong translation.
const DefaultImprovePrompt = `You are a translation optimizer. Improve the following translation by making it more concise while preserving the original meaning and tone.

Original text in {sourceLanguage}: "{text}"
Current translation in {targetLanguage}: "{translation}"

The current translation is too long compared to the original text. Provide a more concise version that:
1. Preserves the core meaning and intent
2. Maintains the same tone and style
3. Removes unnecessary words or redundant phrases
4. Is natural and fluent in {targetLanguage}
5. Keeps any variables or placeholders exactly as they are (like {variable} or {name})

Provide ONLY the improved translation with no additional text, explanations, or notes.`
