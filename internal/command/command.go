// Package command holds the text commands a user can invoke by name and the
// registry the conversation engine dispatches them through.
package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Replier delivers a command's output to the user who invoked it.
type Replier interface {
	// Text sends a text reply. Long texts are split by the caller.
	Text(ctx context.Context, text string) error
	// Image sends an image attachment.
	Image(ctx context.Context, url string) error
}

// Command is a named action invoked by its first token. args holds the
// remaining tokens, or every token when the command owns the session lock.
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, userID string, args []string, r Replier) error
}

// OneShot is implemented by commands that answer in a single turn. Running
// one leaves the session lock as it was, so later free text is translated
// as usual.
type OneShot interface {
	OneShot()
}

// Locks reports whether running cmd hands it the user's following
// free-text turns.
func Locks(cmd Command) bool {
	_, ok := cmd.(OneShot)
	return !ok
}

// Analysis is the result of analyzing an image.
type Analysis struct {
	Text      string
	ImageURLs []string
}

// ImageAnalyzer is implemented by commands with their own behavior for
// follow-up prompts about an image.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, userID, imageURL, prompt string) (Analysis, error)
}

// Registry maps command names to commands. It is filled at startup and only
// read afterwards.
type Registry struct {
	commands map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds cmd. It panics on an empty or duplicate name.
func (r *Registry) Register(cmd Command) {
	name := strings.ToLower(cmd.Name())
	if name == "" {
		panic("command: empty name")
	}
	if _, dup := r.commands[name]; dup {
		panic(fmt.Sprintf("command: duplicate registration of %q", name))
	}
	r.commands[name] = cmd
}

// Lookup finds a command by name, ignoring case.
func (r *Registry) Lookup(token string) (Command, bool) {
	if token == "" {
		return nil, false
	}
	cmd, ok := r.commands[strings.ToLower(token)]
	return cmd, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Tokenize splits text on Unicode whitespace into its first token and the rest.
func Tokenize(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

type notRetrySafeError struct{ err error }

func (e *notRetrySafeError) Error() string { return e.err.Error() }
func (e *notRetrySafeError) Unwrap() error { return e.err }

// NotRetrySafe marks err so the engine releases the command lock even under
// the keep failure policy.
func NotRetrySafe(err error) error {
	if err == nil {
		return nil
	}
	return &notRetrySafeError{err: err}
}

// IsNotRetrySafe reports whether err was marked with NotRetrySafe.
func IsNotRetrySafe(err error) bool {
	var target *notRetrySafeError
	return errors.As(err, &target)
}
