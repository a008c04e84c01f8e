package command

import (
	"context"
	"fmt"
	"strings"
)

// Help lists the registered commands.
type Help struct {
	registry *Registry
}

// NewHelp creates the help command over registry.
func NewHelp(registry *Registry) *Help {
	return &Help{registry: registry}
}

func (h *Help) Name() string        { return "help" }
func (h *Help) Description() string { return "affiche la liste des commandes" }

// OneShot marks help as never owning follow-up turns.
func (h *Help) OneShot() {}

// Execute replies with every command and its description.
func (h *Help) Execute(ctx context.Context, _ string, _ []string, r Replier) error {
	var b strings.Builder
	b.WriteString("📖 Commandes disponibles :\n")
	for _, name := range h.registry.Names() {
		cmd, _ := h.registry.Lookup(name)
		fmt.Fprintf(&b, "\n• %s : %s", name, cmd.Description())
	}
	b.WriteString("\n\nEnvoyez un texte pour le traduire, ou « stop » pour quitter une commande.")
	return r.Text(ctx, b.String())
}
