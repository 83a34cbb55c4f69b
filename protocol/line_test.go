package protocol

import (
	"strings"
	"testing"
)

func collectLines(input string) []string {
	var lines []string
	r := NewLineReader(func(line []byte) {
		lines = append(lines, string(line))
	})
	r.Receive([]byte(input))
	return lines
}

func TestLineReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"lf", "!0\n", []string{"!0"}},
		{"cr", "!D1\r", []string{"!D1"}},
		{"crlf", "!d\r\n!T\r\n", []string{"!d", "!T"}},
		{"empty lines", "\n\r\n\n!G7\n", []string{"!G7"}},
		{"unterminated", "!D0", nil},
		{"control byte", "!D\x011\n!D0\n", []string{"!D0"}},
		{"high byte", "!D\x901\n!T\n", []string{"!T"}},
		{"0x80 allowed", "a\x80b\n", []string{"a\x80b"}},
		{"tab rejected", "!t\t3e8\n", nil},
		{"too long", strings.Repeat("a", LineMax+1) + "\n!0\n", []string{"!0"}},
		{"max length", strings.Repeat("a", LineMax) + "\n", []string{strings.Repeat("a", LineMax)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectLines(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d lines %q, got %d lines %q", len(tt.want), tt.want, len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Line %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestLineReaderByteAtATime(t *testing.T) {
	var lines []string
	r := NewLineReader(func(line []byte) {
		lines = append(lines, string(line))
	})
	for _, b := range []byte("!D1\n!d\n") {
		r.Feed(b)
	}
	if len(lines) != 2 || lines[0] != "!D1" || lines[1] != "!d" {
		t.Errorf("Expected [!D1 !d], got %q", lines)
	}

	r.Receive([]byte("partial"))
	r.Reset()
	r.Receive([]byte("\n"))
	if len(lines) != 2 {
		t.Errorf("Reset should drop the partial line, got %q", lines)
	}
}

func TestHex(t *testing.T) {
	parseTests := []struct {
		in   string
		want uint32
	}{
		{"", 0},
		{"0", 0},
		{"3e8", 1000},
		{"3E8", 1000},
		{"ff zz", 255},
		{"xyz", 0},
		{"ffffffff", 0xffffffff},
		{"123456789", 0x23456789},
	}
	for _, tt := range parseTests {
		if got := ParseHex(tt.in); got != tt.want {
			t.Errorf("ParseHex(%q): expected %d, got %d", tt.in, tt.want, got)
		}
	}

	if got := FormatHex(0x384, 9); got != "000000384" {
		t.Errorf("Expected 000000384, got %s", got)
	}
	if got := FormatHex(0xdeadbeef, 8); got != "deadbeef" {
		t.Errorf("Expected deadbeef, got %s", got)
	}
	if got := FormatHex(0x1234, 2); got != "34" {
		t.Errorf("Expected 34, got %s", got)
	}
}
