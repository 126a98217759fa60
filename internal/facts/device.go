package facts

import (
	"regexp"
	"strconv"
	"strings"
)

// IPInterface is one row of "show ip interface brief".
type IPInterface struct {
	Name     string
	Address  string
	OK       bool
	Method   string
	Status   string
	Protocol string
}

// DetectCause is one row of "show errdisable detect".
type DetectCause struct {
	Cause   string
	Enabled bool
}

var (
	ipInterfaceRow = regexp.MustCompile(`(?m)^\s*((?:FastEthernet|GigabitEthernet|TenGigabitEthernet|Vlan)[0-9/.]*)[ \t]+(.*?)\s*$`)
	detectRow      = regexp.MustCompile(`(?m)^\s*([A-Za-z0-9][A-Za-z0-9._-]*)\s+(Enabled|Disabled)\b`)
	dtpCount       = regexp.MustCompile(`(?m)^\s*([0-9]+)\s+interfaces?\s+using\s+DTP`)
	cdpLine        = regexp.MustCompile(`(?m)^\s*\S+ is ([a-z ]+?),`)
	privilegeLevel = regexp.MustCompile(`(?i)privilege level is\s+([0-9]+)`)
)

// IPInterfaces extracts the rows of "show ip interface brief". The status
// column may hold several words ("administratively down").
func IPInterfaces(text string) []IPInterface {
	matches := ipInterfaceRow.FindAllStringSubmatch(StripPagination(text), -1)
	out := make([]IPInterface, 0, len(matches))
	for _, m := range matches {
		row := IPInterface{Name: m[1]}
		cols := strings.Fields(m[2])
		if len(cols) > 0 {
			row.Address = cols[0]
		}
		if len(cols) > 1 {
			row.OK = cols[1] == "YES"
		}
		if len(cols) > 2 {
			row.Method = cols[2]
		}
		if len(cols) > 4 {
			row.Status = strings.Join(cols[3:len(cols)-1], " ")
			row.Protocol = cols[len(cols)-1]
		} else if len(cols) == 4 {
			row.Status = cols[3]
		}
		out = append(out, row)
	}
	return out
}

// DetectCauses extracts errdisable detection causes and whether each is on.
func DetectCauses(text string) []DetectCause {
	matches := detectRow.FindAllStringSubmatch(StripPagination(text), -1)
	out := make([]DetectCause, 0, len(matches))
	for _, m := range matches {
		out = append(out, DetectCause{Cause: m[1], Enabled: m[2] == "Enabled"})
	}
	return out
}

// DTPInterfaceCount reads the "N interfaces using DTP" summary of "show dtp".
func DTPInterfaceCount(text string) (int, bool) {
	m := dtpCount.FindStringSubmatch(StripPagination(text))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// CDPLineState returns the link state ("up", "down", "administratively
// down") from "show cdp interface X". ok is false when CDP is not running on
// the interface and the device prints no status line.
func CDPLineState(text string) (string, bool) {
	m := cdpLine.FindStringSubmatch(StripPagination(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Banner extracts the text of a "banner <kind> <delim>text<delim>" line.
// The delimiter is "^C" as IOS prints it, or any single character.
func Banner(text, kind string) (string, bool) {
	prefix := "banner " + kind + " "
	for _, line := range ConfigLines(text) {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(line, prefix))
		switch {
		case strings.HasPrefix(body, "^C"):
			body = strings.TrimSuffix(strings.TrimPrefix(body, "^C"), "^C")
		case len(body) >= 2:
			delim := body[:1]
			body = strings.TrimSuffix(body[1:], delim)
		}
		return strings.TrimSpace(body), true
	}
	return "", false
}

// PrivilegeLevel reads "Current privilege level is N".
func PrivilegeLevel(text string) (int, bool) {
	m := privilegeLevel.FindStringSubmatch(StripPagination(text))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
