package pipeline

import "fmt"

const captionSystemPrompt = `You caption children's drawings. Reply with exactly one short sentence describing what the drawing shows, in plain language a parent would use. No preamble, no quotes, no markdown.`

const storySystemPrompt = `You write very short stories for young children, inspired by their drawings. Keep the story gentle, positive, and two to four short paragraphs long. Respond with a single JSON object containing "title" and "text". Output only the JSON object.`

const reviseSystemPrompt = `You revise a children's story according to the given instruction. Keep the same gentle tone and similar length. Change only what the instruction asks for. Respond with a single JSON object containing "title" and "text". Output only the JSON object.`

// StoryPrompt builds the deterministic user prompt for the story stage.
func StoryPrompt(caption string, emotion string) string {
	return fmt.Sprintf("Create a short children's story inspired by this caption: '%s' with emotion '%s'", caption, emotion)
}

// RevisePrompt builds the user prompt for a story revision.
func RevisePrompt(story, instruction string) string {
	return fmt.Sprintf("Story:\n%s\n\nInstruction: %s", story, instruction)
}
