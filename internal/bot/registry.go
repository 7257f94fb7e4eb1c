package bot

import (
	"context"
	"fmt"
	"sync"
)

// Request is one chat command invocation.
type Request struct {
	ChatID  int64
	Command string
	Args    string
}

// Command is a chat command handler. Returned errors are reported back to
// the chat by the Bot.
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, req Request) error
}

// Registry maps command names to their handlers.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command. Panics on duplicate name to surface misconfiguration early.
func (r *Registry) Register(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[c.Name]; exists {
		panic(fmt.Sprintf("bot registry: duplicate command %q", c.Name))
	}
	r.commands[c.Name] = c
	r.order = append(r.order, c.Name)
}

// Get returns the command registered under name.
func (r *Registry) Get(name string) (Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[name]
	if !ok {
		return Command{}, fmt.Errorf("no command registered for %q", name)
	}
	return c, nil
}

// Commands returns all registered commands in registration order.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}
