// Package facts turns raw switch CLI output into structured values.
//
// Every extractor is a pure function of its input text. A pattern that does
// not match yields an empty slice or ok=false, never an error; the caller
// decides whether that means the feature is absent or the output could not be
// understood.
package facts

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/khanhnv2901/seca-switch/internal/pager"
)

// Interface link states reported by "show interfaces status".
const (
	StateConnected  = "connected"
	StateNotConnect = "notconnect"
	StateDisabled   = "disabled"
)

// InterfaceState pairs an interface name with its link state.
type InterfaceState struct {
	Name  string
	State string
}

// VLAN is one active row of "show vlan brief".
type VLAN struct {
	ID   int
	Name string
}

// The state is the last status word on the row, so a description such as
// "to-disabled" never shadows the Status column.
var (
	interfaceRow = regexp.MustCompile(`(?m)^\s*((?:Fa|Gi|Te|Eth)[A-Za-z]*[0-9]+(?:/[0-9]+)*)\b.*\s(notconnect|connected|disabled)\b`)
	vlanRow      = regexp.MustCompile(`(?m)^\s*([0-9]+)\s+(\S+)\s+active\b`)

	// A continuation prompt, optionally followed by the backspace run the
	// device prints to erase it before the next page.
	paginationPrompt = regexp.MustCompile(regexp.QuoteMeta(pager.MorePrompt) + `(?:\x08+ *\x08+|\x08+)?`)
)

// StripPagination removes continuation prompts and their erase sequences so
// the first row of every page starts its own line again. Line breaks are
// kept, so line counts and offsets are unchanged.
func StripPagination(text string) string {
	if !strings.Contains(text, strings.TrimSpace(pager.MorePrompt)) {
		return text
	}
	return paginationPrompt.ReplaceAllString(text, "")
}

// Interfaces extracts (name, state) pairs in the order they appear.
func Interfaces(text string) []InterfaceState {
	matches := interfaceRow.FindAllStringSubmatch(StripPagination(text), -1)
	out := make([]InterfaceState, 0, len(matches))
	for _, m := range matches {
		out = append(out, InterfaceState{Name: m[1], State: m[2]})
	}
	return out
}

// Connected keeps only interfaces whose state is exactly "connected".
func Connected(ifaces []InterfaceState) []InterfaceState {
	out := make([]InterfaceState, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.State == StateConnected {
			out = append(out, iface)
		}
	}
	return out
}

// VLANs extracts the active VLANs in the order they appear.
func VLANs(text string) []VLAN {
	matches := vlanRow.FindAllStringSubmatch(StripPagination(text), -1)
	out := make([]VLAN, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, VLAN{ID: id, Name: m[2]})
	}
	return out
}

// VLANName returns the name column of the row for id in "show vlan" output.
func VLANName(text string, id int) (string, bool) {
	re := regexp.MustCompile(`(?m)^\s*` + strconv.Itoa(id) + `\s+(\S+)`)
	m := re.FindStringSubmatch(StripPagination(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Field returns the value of a "Name : value" line, trimmed.
func Field(text, name string) (string, bool) {
	re := regexp.MustCompile(`(?m)^\s*` + regexp.QuoteMeta(name) + `\s*:[ \t]*(.*?)\s*$`)
	m := re.FindStringSubmatch(StripPagination(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// LineCount is the number of newline-separated lines in text, blank lines
// included. Filtered show commands answer with the echoed command, a blank
// line, the matches and the prompt, so a count below four means no match.
func LineCount(text string) int {
	return len(strings.Split(text, "\n"))
}

// LineAt returns line i of text with surrounding whitespace trimmed.
func LineAt(text string, i int) (string, bool) {
	lines := strings.Split(StripPagination(text), "\n")
	if i < 0 || i >= len(lines) {
		return "", false
	}
	return strings.TrimSpace(lines[i]), true
}

// ConfigLines returns the matched configuration lines of a filtered
// running-config command: the echoed command, blank lines and the trailing
// prompt are dropped.
func ConfigLines(text string) []string {
	lines := strings.Split(StripPagination(text), "\n")
	if len(lines) <= 1 {
		return []string{}
	}
	lines = lines[1:]
	if last := strings.TrimSpace(lines[len(lines)-1]); isPrompt(last) {
		lines = lines[:len(lines)-1]
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ConfigValue returns the whitespace-separated token at index of line.
func ConfigValue(line string, index int) (string, bool) {
	fields := strings.Fields(line)
	if index < 0 || index >= len(fields) {
		return "", false
	}
	return fields[index], true
}

// ConfigBlock returns the indented lines that follow the first line starting
// with marker, trimmed. ok is false when the marker is missing.
func ConfigBlock(text, marker string) ([]string, bool) {
	lines := strings.Split(StripPagination(text), "\n")
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), marker) && !strings.HasPrefix(line, " ") {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	block := []string{}
	for _, line := range lines[start+1:] {
		if line == "" || (line[0] != ' ' && line[0] != '\t') {
			break
		}
		block = append(block, strings.TrimSpace(line))
	}
	return block, true
}

func isPrompt(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t") && (strings.HasSuffix(s, "#") || strings.HasSuffix(s, ">"))
}
