package rules

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
	"github.com/khanhnv2901/seca-switch/internal/pager"
	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
)

// fakeSwitch answers commands from a fixed table and records what was asked.
type fakeSwitch struct {
	answers map[string]string
	errs    map[string]error
	queried []string
}

func (f *fakeSwitch) Execute(ctx context.Context, req pager.Request) (pager.Response, error) {
	f.queried = append(f.queried, req.Command)
	if err, ok := f.errs[req.Command]; ok {
		var limitErr *pager.PaginationLimitError
		if errors.As(err, &limitErr) {
			return pager.Response{Command: req.Command, Text: limitErr.Partial}, err
		}
		return pager.Response{Command: req.Command}, err
	}
	text, ok := f.answers[req.Command]
	if !ok {
		// Filtered commands with no match: echo, blank line, prompt.
		text = req.Command + "\n\nSwitch#"
	}
	return pager.Response{Command: req.Command, Text: text}, nil
}

func (f *fakeSwitch) asked(command string) int {
	n := 0
	for _, q := range f.queried {
		if q == command {
			n++
		}
	}
	return n
}

func evaluate(t *testing.T, id string, sw *fakeSwitch) audit.Finding {
	t.Helper()
	r, ok := Lookup(id)
	if !ok {
		t.Fatalf("rule %q not in catalog", id)
	}
	f, err := r.Evaluate(context.Background(), NewDevice(sw, DeviceOptions{}))
	if err != nil {
		t.Fatalf("Evaluate(%s) error = %v", id, err)
	}
	return f
}

const twoInterfaces = `show interfaces status

Port      Name               Status       Vlan       Duplex  Speed Type
Gi1/0/1                      connected    10         a-full a-1000 10/100/1000BaseTX
Gi1/0/2                      notconnect   1            auto   auto 10/100/1000BaseTX
Switch#`

func TestPortSecurityNamesOnlyConnectedViolators(t *testing.T) {
	sw := &fakeSwitch{answers: map[string]string{
		"show interfaces status":               twoInterfaces,
		"show port-security interface Gi1/0/1": "show port-security interface Gi1/0/1\nPort Security              : Disabled\nViolation Mode             : Shutdown\nSwitch#",
		"show port-security interface Gi1/0/2": "show port-security interface Gi1/0/2\nPort Security              : Disabled\nSwitch#",
	}}

	f := evaluate(t, "port-security", sw)
	if f.Severity != audit.SeverityFail {
		t.Fatalf("Severity = %s, want fail", f.Severity)
	}
	if !reflect.DeepEqual(f.Affected, []string{"Gi1/0/1"}) {
		t.Fatalf("Affected = %v, want [Gi1/0/1]", f.Affected)
	}
	if !strings.Contains(f.Message, "Gi1/0/1") || strings.Contains(f.Message, "Gi1/0/2") {
		t.Errorf("Message = %q", f.Message)
	}
	if n := sw.asked("show port-security interface Gi1/0/2"); n != 0 {
		t.Fatalf("notconnect interface was queried %d times", n)
	}
}

func TestPortSecurityViolationMode(t *testing.T) {
	tests := []struct {
		mode string
		want audit.Severity
	}{
		{"Shutdown", audit.SeverityPass},
		{"Restrict", audit.SeverityPass},
		{"Protect", audit.SeverityFail},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			sw := &fakeSwitch{answers: map[string]string{
				"show interfaces status":               twoInterfaces,
				"show port-security interface Gi1/0/1": "Port Security              : Enabled\nViolation Mode             : " + tt.mode + "\nSwitch#",
			}}
			if f := evaluate(t, "port-security-violation", sw); f.Severity != tt.want {
				t.Fatalf("Severity = %s, want %s", f.Severity, tt.want)
			}
		})
	}
}

func TestPerInterfaceMissingFieldIsUnparseable(t *testing.T) {
	sw := &fakeSwitch{answers: map[string]string{
		"show interfaces status":               twoInterfaces,
		"show port-security interface Gi1/0/1": "% Invalid input detected at '^' marker.\nSwitch#",
	}}
	f := evaluate(t, "port-security", sw)
	if f.Severity != audit.SeverityUnparseable {
		t.Fatalf("Severity = %s, want unparseable", f.Severity)
	}
	if !strings.Contains(f.Evidence, "Invalid input") {
		t.Errorf("Evidence = %q, want device text", f.Evidence)
	}
}

func TestDeviceReadsInterfacesOnce(t *testing.T) {
	sw := &fakeSwitch{answers: map[string]string{
		"show interfaces status":               twoInterfaces,
		"show port-security interface Gi1/0/1": "Port Security              : Enabled\nViolation Mode             : Shutdown\nSwitch#",
	}}
	d := NewDevice(sw, DeviceOptions{})
	for _, id := range []string{"port-security", "port-security-violation"} {
		r, _ := Lookup(id)
		if _, err := r.Evaluate(context.Background(), d); err != nil {
			t.Fatalf("Evaluate(%s) error = %v", id, err)
		}
	}
	if n := sw.asked("show interfaces status"); n != 1 {
		t.Errorf("interface table read %d times, want 1", n)
	}
	if n := sw.asked("show port-security interface Gi1/0/1"); n != 1 {
		t.Errorf("port-security queried %d times, want 1", n)
	}
}

func TestConsolePassword(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  audit.Severity
	}{
		{"encrypted with login", " password 7 0822455D0A16\n login\n", audit.SeverityPass},
		{"cleartext", " password cisco\n login\n", audit.SeverityWarn},
		{"no login", " password 7 0822455D0A16\n", audit.SeverityWarn},
		{"nothing", " exec-timeout 5 0\n", audit.SeverityWarn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command := "show running-config | begin line con 0"
			sw := &fakeSwitch{answers: map[string]string{
				command: command + "\n\nline con 0\n" + tt.block + "line vty 0 4\n login\nSwitch#",
			}}
			if f := evaluate(t, "console-password", sw); f.Severity != tt.want {
				t.Fatalf("Severity = %s, want %s (%s)", f.Severity, tt.want, f.Message)
			}
		})
	}
}

func TestVTPPassword(t *testing.T) {
	tests := []struct {
		name         string
		mode         string
		password     string
		want         audit.Severity
		wantEvidence string
		wantQueried  bool
	}{
		{"server without password", "Server", "The VTP password is not configured.", audit.SeverityFail, "no password configured", true},
		{"server with password", "Server", "VTP Password: s3cret", audit.SeverityPass, "", true},
		{"transparent", "Transparent", "", audit.SeverityPass, "VTP Operating Mode : Transparent", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := &fakeSwitch{answers: map[string]string{
				"show vtp status":   "show vtp status\nVTP Version                     : 2\nVTP Operating Mode              : " + tt.mode + "\nSwitch#",
				"show vtp password": "show vtp password\n" + tt.password + "\nSwitch#",
			}}
			f := evaluate(t, "vtp-password", sw)
			if f.Severity != tt.want {
				t.Fatalf("Severity = %s, want %s", f.Severity, tt.want)
			}
			if f.Evidence != tt.wantEvidence {
				t.Errorf("Evidence = %q, want %q", f.Evidence, tt.wantEvidence)
			}
			if got := sw.asked("show vtp password") > 0; got != tt.wantQueried {
				t.Errorf("password queried = %v, want %v", got, tt.wantQueried)
			}
		})
	}
}

func TestIGMPSnoopingFailsFast(t *testing.T) {
	igmp := func(id, state string) string {
		return "show ip igmp snooping vlan " + id + " | begin Vlan " + id + "\nVlan " + id + ":\n--------\nIGMP snooping                       : " + state + "\nSwitch#"
	}
	sw := &fakeSwitch{answers: map[string]string{
		"show vlan brief": "show vlan brief\n\n1    default    active    Gi1/0/2\n10   USERS      active    Gi1/0/1\n20   VOICE      active\nSwitch#",
		"show ip igmp snooping vlan 1 | begin Vlan 1":   igmp("1", "Enabled"),
		"show ip igmp snooping vlan 10 | begin Vlan 10": igmp("10", "Disabled"),
		"show ip igmp snooping vlan 20 | begin Vlan 20": igmp("20", "Disabled"),
	}}

	f := evaluate(t, "igmp-snooping", sw)
	if f.Severity != audit.SeverityFail {
		t.Fatalf("Severity = %s, want fail", f.Severity)
	}
	if !reflect.DeepEqual(f.Affected, []string{"VLAN 10"}) {
		t.Fatalf("Affected = %v, want [VLAN 10]", f.Affected)
	}
	if n := sw.asked("show ip igmp snooping vlan 20 | begin Vlan 20"); n != 0 {
		t.Fatal("scan must stop at the first violating VLAN")
	}
}

func TestPresenceAndAbsence(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		command string
		match   string
		want    audit.Severity
	}{
		{"dhcp snooping missing", "dhcp-snooping", "show running-config | include ip dhcp snooping", "", audit.SeverityFail},
		{"dhcp snooping present", "dhcp-snooping", "show running-config | include ip dhcp snooping", "ip dhcp snooping", audit.SeverityPass},
		{"aaa missing is advisory", "aaa", "show running-config | include aaa", "", audit.SeverityWarn},
		{"telnet present", "telnet", "show running-config | include telnet", " transport input telnet", audit.SeverityWarn},
		{"telnet absent", "telnet", "show running-config | include telnet", "", audit.SeverityPass},
		{"finger present", "finger", "show running-config | include finger", "service finger", audit.SeverityWarn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := &fakeSwitch{answers: map[string]string{}}
			if tt.match != "" {
				sw.answers[tt.command] = tt.command + "\n\n" + tt.match + "\nSwitch#"
			}
			if f := evaluate(t, tt.id, sw); f.Severity != tt.want {
				t.Fatalf("Severity = %s, want %s", f.Severity, tt.want)
			}
		})
	}
}

func TestToggleRules(t *testing.T) {
	tests := []struct {
		id     string
		answer string
		want   audit.Severity
	}{
		{"dot1x", "Sysauthcontrol              Disabled", audit.SeverityFail},
		{"dot1x", "Sysauthcontrol              Enabled", audit.SeverityPass},
		{"bpdu-guard", "BPDU Guard Default           is disabled", audit.SeverityFail},
		{"loop-guard", "Loopguard Default            is enabled", audit.SeverityPass},
	}
	for _, tt := range tests {
		t.Run(tt.id+"/"+tt.answer, func(t *testing.T) {
			r, _ := Lookup(tt.id)
			sw := &fakeSwitch{answers: map[string]string{r.Commands[0]: r.Commands[0] + "\n" + tt.answer + "\nSwitch#"}}
			if f := evaluate(t, tt.id, sw); f.Severity != tt.want {
				t.Fatalf("Severity = %s, want %s", f.Severity, tt.want)
			}
		})
	}
}

func TestTableRules(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		command string
		answer  string
		want    audit.Severity
	}{
		{"native vlan default", "native-vlan", "show vlan", "show vlan\n\n1    default    active\nSwitch#", audit.SeverityWarn},
		{"native vlan renamed", "native-vlan", "show vlan", "show vlan\n\n1    UNUSED     active\nSwitch#", audit.SeverityPass},
		{"acl deny any", "acl-deny-any", "show access-lists", "Standard IP access list 10\n    10 permit 10.0.0.0, wildcard bits 0.0.0.255\n    20 deny   any\nSwitch#", audit.SeverityWarn},
		{"acl clean", "acl-deny-any", "show access-lists", "Extended IP access list 101\n    10 deny   tcp any any eq 23\nSwitch#", audit.SeverityPass},
		{"enable cleartext", "enable-password", "show running-config | include enable password", "show running-config | include enable password\n\nenable password cisco\nSwitch#", audit.SeverityWarn},
		{"enable encrypted", "enable-password", "show running-config | include enable password", "show running-config | include enable password\n\nenable password 7 0822455D0A16\nSwitch#", audit.SeverityPass},
		{"dtp off", "dtp", "show dtp", "show dtp\nGlobal DTP information\n\t0 interfaces using DTP\nSwitch#", audit.SeverityPass},
		{"dtp on", "dtp", "show dtp", "show dtp\nGlobal DTP information\n\t3 interfaces using DTP\nSwitch#", audit.SeverityFail},
		{"dtp garbled", "dtp", "show dtp", "show dtp\n% Invalid input\nSwitch#", audit.SeverityUnparseable},
		{"errdisable gap", "errdisable", "show errdisable detect", "bpduguard     Enabled    port\nlink-flap     Disabled   port\nSwitch#", audit.SeverityWarn},
		{"tacacs without key", "tacacs", "show running-config | include tacacs-server", "x\n\ntacacs-server host 10.0.0.9\nSwitch#", audit.SeverityWarn},
		{"tacacs with key", "tacacs", "show running-config | include tacacs-server", "x\n\ntacacs-server host 10.0.0.9\ntacacs-server key 7 0822\nSwitch#", audit.SeverityPass},
		{"interface unhealthy", "interface-health", "show ip interface brief", "Vlan1   10.0.0.2   YES NVRAM up up\nFastEthernet0/1 unassigned NO unset down down\nSwitch#", audit.SeverityWarn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := &fakeSwitch{answers: map[string]string{tt.command: tt.answer}}
			if f := evaluate(t, tt.id, sw); f.Severity != tt.want {
				t.Fatalf("Severity = %s, want %s (%s)", f.Severity, tt.want, f.Message)
			}
		})
	}
}

func TestInformationalRules(t *testing.T) {
	tests := []struct {
		id         string
		command    string
		answer     string
		annotation string
	}{
		{"hostname", "show running-config | include hostname", "x\n\nhostname CoreSw01\nCoreSw01#", "CoreSw01"},
		{"banner-login", "show running-config | include banner login", "x\n\nbanner login ^CAuthorized only^C\nSwitch#", "Authorized only"},
		{"privilege", "show privilege", "show privilege\nCurrent privilege level is 15\nSwitch#", "15"},
		{"default-gateway", "show running-config | include ip default-gateway", "x\n\nip default-gateway 10.0.0.1\nSwitch#", "10.0.0.1"},
		{"ip-addresses", "show ip interface brief | exclude unassigned", "x\nVlan1   10.0.0.2   YES NVRAM up up\nSwitch#", "Vlan1: 10.0.0.2"},
		{"active-vlans", "show vlan brief", "x\n\n1    default    active\n10   USERS      active\nSwitch#", "VLAN1 <-> default, VLAN10 <-> USERS"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			sw := &fakeSwitch{answers: map[string]string{tt.command: tt.answer}}
			f := evaluate(t, tt.id, sw)
			if f.Severity != audit.SeverityPass {
				t.Fatalf("Severity = %s, want pass", f.Severity)
			}
			if f.Annotation != tt.annotation {
				t.Fatalf("Annotation = %q, want %q", f.Annotation, tt.annotation)
			}
		})
	}
}

func TestPaginationLimitIsUnparseable(t *testing.T) {
	command := "show running-config | begin line con 0"
	sw := &fakeSwitch{errs: map[string]error{
		command: &pager.PaginationLimitError{Command: command, Limit: 5, Partial: "line con 0\n--More-- "},
	}}
	f := evaluate(t, "console-password", sw)
	if f.Severity != audit.SeverityUnparseable {
		t.Fatalf("Severity = %s, want unparseable", f.Severity)
	}
	if f.Evidence != "line con 0\n--More-- " {
		t.Errorf("Evidence = %q, want partial text", f.Evidence)
	}
}

func TestUnexpectedErrorIsReturned(t *testing.T) {
	sw := &fakeSwitch{errs: map[string]error{"show dtp": sharedErrors.ErrSessionClosed}}
	r, _ := Lookup("dtp")
	f, err := r.Evaluate(context.Background(), NewDevice(sw, DeviceOptions{}))

	var execErr *RuleExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected RuleExecutionError, got %v", err)
	}
	if !errors.Is(err, sharedErrors.ErrRuleExecution) || !errors.Is(err, sharedErrors.ErrSessionClosed) {
		t.Errorf("error chain incomplete: %v", err)
	}
	if f.RuleID != "dtp" {
		t.Errorf("RuleID = %q", f.RuleID)
	}
	if ef := r.ErrorFinding(err, 0); ef.Severity != audit.SeverityError {
		t.Errorf("ErrorFinding severity = %s", ef.Severity)
	}
}

func TestCatalogOrderAndSeverities(t *testing.T) {
	wantOrder := []string{
		"native-vlan", "port-security", "port-security-violation", "cdp", "acl-deny-any",
		"console-password", "enable-password", "vtp-password", "telnet", "dtp", "dhcp-snooping",
		"tcp-small-servers", "udp-small-servers", "finger", "interface-health", "dot1x",
		"bpdu-guard", "root-guard", "loop-guard", "igmp-snooping", "aaa", "errdisable", "vmps",
		"tacacs", "ip-addresses", "active-vlans", "banner-login", "banner-motd", "hostname",
		"privilege", "default-gateway",
	}
	catalog := Catalog()
	var got []string
	for _, r := range catalog {
		got = append(got, r.ID)
		if r.Check == nil {
			t.Errorf("rule %s has no check", r.ID)
		}
		if len(r.Commands) == 0 {
			t.Errorf("rule %s lists no commands", r.ID)
		}
	}
	if !reflect.DeepEqual(got, wantOrder) {
		t.Fatalf("catalog order = %v", got)
	}

	fail := []string{"port-security", "port-security-violation", "cdp", "vtp-password", "dtp",
		"dhcp-snooping", "dot1x", "bpdu-guard", "loop-guard", "igmp-snooping"}
	for _, r := range catalog {
		switch {
		case slices.Contains(fail, r.ID):
			if r.Severity != audit.SeverityFail {
				t.Errorf("%s severity = %s, want fail", r.ID, r.Severity)
			}
		case r.Family == FamilyInformational:
			if r.Severity != audit.SeverityPass {
				t.Errorf("%s severity = %s, want pass", r.ID, r.Severity)
			}
		default:
			if r.Severity != audit.SeverityWarn {
				t.Errorf("%s severity = %s, want warn", r.ID, r.Severity)
			}
		}
	}
}

func TestUnreadableTablesAreUnparseable(t *testing.T) {
	longNames := `show interfaces status

Port                   Status   Vlan
GigabitEthernet1/0/1   up       10
GigabitEthernet1/0/2   down     1
Switch#`
	driftedVLANs := `show vlan brief

VLAN  Name     State
1     default  enabled
10    USERS    enabled
Switch#`

	tests := []struct {
		id      string
		command string
		answer  string
	}{
		{"port-security", "show interfaces status", longNames},
		{"port-security-violation", "show interfaces status", longNames},
		{"cdp", "show interfaces status", longNames},
		{"igmp-snooping", "show vlan brief", driftedVLANs},
		{"active-vlans", "show vlan brief", driftedVLANs},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			sw := &fakeSwitch{answers: map[string]string{tt.command: tt.answer}}
			f := evaluate(t, tt.id, sw)
			if f.Severity != audit.SeverityUnparseable {
				t.Fatalf("Severity = %s, want unparseable (%s)", f.Severity, f.Message)
			}
			if f.Evidence != tt.answer {
				t.Errorf("Evidence = %q, want the unreadable table", f.Evidence)
			}
		})
	}
}

func TestEmptyTablesStillPass(t *testing.T) {
	sw := &fakeSwitch{answers: map[string]string{
		"show interfaces status": "show interfaces status\n\nPort      Name               Status       Vlan\nSwitch#",
	}}
	if f := evaluate(t, "port-security", sw); f.Severity != audit.SeverityPass {
		t.Fatalf("Severity = %s, want pass for a header-only table", f.Severity)
	}
}

func TestHeaderRowsArePerRule(t *testing.T) {
	command := "show running-config | include ip dhcp snooping"
	// Echo, match and prompt: a device that prints no blank line after the echo.
	compact := command + "\nip dhcp snooping\nSwitch#"

	tests := []struct {
		name       string
		headerRows int
		want       audit.Severity
	}{
		{"default treats three lines as absent", 0, audit.SeverityFail},
		{"catalog value", headerRows, audit.SeverityFail},
		{"rule with a shorter header", 3, audit.SeverityPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := Lookup("dhcp-snooping")
			r.HeaderRows = tt.headerRows
			sw := &fakeSwitch{answers: map[string]string{command: compact}}
			f, err := r.Evaluate(context.Background(), NewDevice(sw, DeviceOptions{}))
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if f.Severity != tt.want {
				t.Fatalf("Severity = %s, want %s", f.Severity, tt.want)
			}
		})
	}
}

func TestPortSecurityQueriesInterfaceOnLaterPage(t *testing.T) {
	paged := "show interfaces status\n\nPort      Name               Status       Vlan       Duplex  Speed Type\n" +
		"Gi1/0/1                      notconnect   1            auto   auto 10/100/1000BaseTX\n" +
		pager.MorePrompt + "\b\b\b\b\b\b\b\b\b         \b\b\b\b\b\b\b\b\b" +
		"Gi1/0/2                      connected    10         a-full a-1000 10/100/1000BaseTX\nSwitch#"
	sw := &fakeSwitch{answers: map[string]string{
		"show interfaces status":               paged,
		"show port-security interface Gi1/0/2": "show port-security interface Gi1/0/2\nPort Security              : Disabled\nSwitch#",
	}}
	f := evaluate(t, "port-security", sw)
	if f.Severity != audit.SeverityFail {
		t.Fatalf("Severity = %s, want fail (%s)", f.Severity, f.Message)
	}
	if !reflect.DeepEqual(f.Affected, []string{"Gi1/0/2"}) {
		t.Fatalf("Affected = %v, want [Gi1/0/2]", f.Affected)
	}
}
