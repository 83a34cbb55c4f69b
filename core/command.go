package core

import (
	"errors"
	"sync"

	"fablock/protocol"
)

// CommandHandler handles one command line. The handler is responsible for
// decoding its own parameter.
type CommandHandler func(args CommandArgs) error

// CommandArgs is one received command line.
type CommandArgs struct {
	Line  []byte // whole line, "!" and letter included
	Param []byte // everything after the letter
}

// Hex returns the parameter as a hexadecimal number, 0 when missing.
func (a CommandArgs) Hex() uint32 {
	return protocol.ParseHex(string(a.Param))
}

// Command represents a serial command
type Command struct {
	Letter  byte
	Name    string
	Handler CommandHandler
}

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadParam       = errors.New("bad parameter")
)

// CommandRegistry holds all registered commands, keyed by command letter
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[byte]*Command
	letters  []byte // registration order
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[byte]*Command),
	}
}

// Register adds a command to the registry. Registering a letter again
// replaces its handler.
func (r *CommandRegistry) Register(letter byte, name string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd, exists := r.commands[letter]; exists {
		cmd.Name = name
		cmd.Handler = handler
		return
	}
	r.commands[letter] = &Command{
		Letter:  letter,
		Name:    name,
		Handler: handler,
	}
	r.letters = append(r.letters, letter)
}

// GetCommand retrieves a command by letter
func (r *CommandRegistry) GetCommand(letter byte) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[letter]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Commands returns the registered commands in registration order
func (r *CommandRegistry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.letters))
	for _, l := range r.letters {
		out = append(out, *r.commands[l])
	}
	return out
}

// Dispatch calls the handler for a command line. The line must start with
// the command mark; a bare "!" is ignored.
func (r *CommandRegistry) Dispatch(line []byte) error {
	if len(line) < 2 || line[0] != protocol.CommandMark {
		return nil
	}
	cmd, ok := r.GetCommand(line[1])
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(CommandArgs{Line: line, Param: line[2:]})
}
