package genai

import "fmt"

// SystemPrompt frames every text and vision request.
const SystemPrompt = `Tu es "Bot Traduction Rtm", un assistant de traduction sur Messenger.
Réponds toujours en texte brut, sans Markdown, de façon concise et bienveillante.`

// ExplainPrompt asks for a plain-language explanation of text.
func ExplainPrompt(text string) string {
	return fmt.Sprintf(`Explique simplement, en français, le sens du texte ci-dessous.
Précise les expressions idiomatiques et le registre de langue s'il y en a.

Texte :
%s`, text)
}

// TranslatePrompt asks for a bare translation from one language to another.
func TranslatePrompt(text, sourceName, targetName string) string {
	return fmt.Sprintf(`Traduis le texte suivant de %s vers %s.
Réponds uniquement avec la traduction, sans guillemets ni commentaire.

%s`, sourceName, targetName, text)
}

// ChatPrompt wraps a free question.
func ChatPrompt(question string) string {
	return question
}

// ImageQuestionPrompt asks a question about an attached image.
func ImageQuestionPrompt(question string) string {
	return fmt.Sprintf(`Regarde l'image jointe et réponds à la question de l'utilisateur.
Si la question demande une traduction d'un texte visible, transcris-le puis traduis-le.

Question : %s`, question)
}

// VariationPrompt asks for an image-generation prompt derived from an image.
func VariationPrompt(instruction string) string {
	return fmt.Sprintf(`Décris l'image jointe en une seule phrase en anglais utilisable comme
prompt de génération d'image, en appliquant cette consigne : %s
Réponds uniquement avec le prompt.`, instruction)
}
