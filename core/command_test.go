package core

import (
	"errors"
	"testing"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	// Register a command
	var called bool
	var param uint32
	handler := func(args CommandArgs) error {
		called = true
		param = args.Hex()
		return nil
	}

	registry.Register('D', "door", handler)

	// Verify command can be retrieved
	cmd, ok := registry.GetCommand('D')
	if !ok {
		t.Fatal("Failed to retrieve registered command")
	}

	if cmd.Name != "door" {
		t.Errorf("Expected command name 'door', got '%s'", cmd.Name)
	}

	// Test dispatch
	err := registry.Dispatch([]byte("!D1f"))
	if err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}

	if !called {
		t.Error("Command handler was not called")
	}
	if param != 0x1f {
		t.Errorf("Expected parameter 0x1f, got 0x%x", param)
	}

	// Test unknown command
	err = registry.Dispatch([]byte("!q"))
	if err != ErrUnknownCommand {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestCommandRegistryMultiple(t *testing.T) {
	registry := NewCommandRegistry()

	registry.Register('a', "command1", func(CommandArgs) error { return nil })
	registry.Register('b', "command2", func(CommandArgs) error { return nil })
	registry.Register('c', "command3", func(CommandArgs) error { return nil })

	if registry.Count() != 3 {
		t.Errorf("Expected 3 commands, got %d", registry.Count())
	}

	// Commands come back in registration order
	cmds := registry.Commands()
	for i, want := range []byte{'a', 'b', 'c'} {
		if cmds[i].Letter != want {
			t.Errorf("Command %d: expected %q, got %q", i, want, cmds[i].Letter)
		}
	}
}

func TestCommandRegistryReplace(t *testing.T) {
	registry := NewCommandRegistry()

	var which string
	registry.Register('t', "beep", func(CommandArgs) error { which = "old"; return nil })
	registry.Register('t', "tone", func(CommandArgs) error { which = "new"; return nil })

	if registry.Count() != 1 {
		t.Errorf("Expected 1 command after replacing, got %d", registry.Count())
	}
	registry.Dispatch([]byte("!t"))
	if which != "new" {
		t.Errorf("Expected replaced handler to run, got %q", which)
	}
	if cmd, _ := registry.GetCommand('t'); cmd.Name != "tone" {
		t.Errorf("Expected name 'tone', got '%s'", cmd.Name)
	}
}

func TestCommandDispatchIgnoresNonCommands(t *testing.T) {
	registry := NewCommandRegistry()
	calls := 0
	registry.Register('0', "version", func(CommandArgs) error { calls++; return nil })

	for _, line := range []string{"", "!", "0", "hello", "?0"} {
		if err := registry.Dispatch([]byte(line)); err != nil {
			t.Errorf("Dispatch(%q): expected nil, got %v", line, err)
		}
	}
	if calls != 0 {
		t.Errorf("Expected no handler calls, got %d", calls)
	}
}

func TestCommandDispatchReturnsHandlerError(t *testing.T) {
	registry := NewCommandRegistry()
	boom := errors.New("boom")
	registry.Register('F', "blink_stop", func(CommandArgs) error { return boom })

	if err := registry.Dispatch([]byte("!F3")); err != boom {
		t.Errorf("Expected handler error, got %v", err)
	}
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		param string
		hex   uint32
	}{
		{"no parameter", "!0", "", 0},
		{"digit", "!D1", "1", 1},
		{"hex", "!tFa0", "Fa0", 0xfa0},
		{"channel", "!G3", "3", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got CommandArgs
			registry := NewCommandRegistry()
			registry.Register(tt.line[1], tt.name, func(args CommandArgs) error {
				got = args
				return nil
			})
			if err := registry.Dispatch([]byte(tt.line)); err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}
			if string(got.Line) != tt.line {
				t.Errorf("Expected line %q, got %q", tt.line, got.Line)
			}
			if string(got.Param) != tt.param {
				t.Errorf("Expected param %q, got %q", tt.param, got.Param)
			}
			if got.Hex() != tt.hex {
				t.Errorf("Expected hex 0x%x, got 0x%x", tt.hex, got.Hex())
			}
		})
	}
}
