package engine

// Fixed replies.
const (
	msgWelcome = "🎉 Bienvenue sur « Bot Traduction Rtm »%s ! 🤖 Je suis ravi de vous aider à traduire votre texte, votre phrase ou votre mot dans la langue de votre choix 🔍\n\n" +
		"Pour commencer, saisissez le texte, la phrase ou le mot que vous souhaitez traduire 📝\n\n" +
		"Tapez, et commençons à traduire ! 💬"

	msgImagePrompt     = "📷 Image reçue ! Que voulez-vous savoir à son sujet ?"
	msgUnsupported     = "Je ne comprends que les textes et les images pour le moment."
	msgStopped         = "✅ Commande arrêtée. Envoyez un texte pour le traduire."
	msgImagesDelivered = "✅ Voici le résultat. Posez une autre question sur l'image ou envoyez « stop »."
	msgAnalysisFailed  = "Désolé, je n'ai pas pu analyser cette image."
	msgCommandFailed   = "❌ La commande a échoué. Réessayez ou envoyez « stop »."

	msgNoTranslation    = "Aucune traduction récente à lire. Envoyez d'abord un texte à traduire."
	msgNothingToExplain = "Aucun texte à expliquer. Envoyez d'abord un texte."
	msgNoPendingText    = "Aucun texte en attente de traduction. Envoyez d'abord le texte à traduire."
	msgSameLanguage     = "Le texte est déjà en %s. Choisissez une autre langue de traduction :"
	msgChooseLanguage   = "Choisissez la langue de traduction :"
	msgTranslation      = "🌐 %s → %s\n\n%s"
)
