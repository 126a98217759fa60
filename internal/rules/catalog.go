package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
	"github.com/khanhnv2901/seca-switch/internal/facts"
)

// igmpStatusRow is the row of "show ip igmp snooping vlan N | begin Vlan N"
// holding the snooping state: echo, "Vlan N:", a rule line, then the status.
const igmpStatusRow = 3

var aclDenyAny = regexp.MustCompile(`\bdeny\s+any\b`)

// Catalog returns every rule in the order an audit runs them. The severity of
// each rule is fixed here: a missing control that enables a direct layer-2
// attack is a Fail, hardening and hygiene gaps are a Warn.
func Catalog() []Rule {
	return []Rule{
		{
			ID:          "native-vlan",
			Title:       "Native VLAN",
			Family:      FamilyTable,
			Severity:    audit.SeverityWarn,
			Commands:    []string{"show vlan"},
			Remediation: "Move user traffic off VLAN 1, e.g. Switch(config)#default vlan <id>",
			Check:       checkNativeVLAN,
		},
		perInterface("port-security", "Port security", audit.SeverityFail,
			"show port-security interface", "Port Security", []string{"Enabled"},
			"Port security is not enabled for interfaces",
			"Enable port security on access ports: Switch(config-if)#switchport port-security"),
		perInterface("port-security-violation", "Port security violation mode", audit.SeverityFail,
			"show port-security interface", "Violation Mode", []string{"Restrict", "Shutdown"},
			"Port security violation mode is not restrict or shutdown for interfaces",
			"Switch(config-if)#switchport port-security violation shutdown"),
		{
			ID:          "cdp",
			Title:       "CDP",
			Family:      FamilyInterface,
			Severity:    audit.SeverityFail,
			Commands:    []string{"show interfaces status", "show cdp interface <interface>"},
			Remediation: "CDP advertisements are unauthenticated cleartext: Switch(config)#no cdp run",
			Check:       checkCDP,
		},
		{
			ID:          "acl-deny-any",
			Title:       "Access list deny any",
			Family:      FamilyTable,
			Severity:    audit.SeverityWarn,
			Commands:    []string{"show access-lists"},
			Remediation: "Every access list ends with an implicit deny; review explicit deny any entries",
			Check:       checkACLDenyAny,
		},
		{
			ID:          "console-password",
			Title:       "Console password",
			Family:      FamilyTable,
			Severity:    audit.SeverityWarn,
			Commands:    []string{"show running-config | begin line con 0"},
			Remediation: "Switch(config-line)#login and Switch(config-line)#password <secret> with service password-encryption",
			Check:       checkConsolePassword,
		},
		{
			ID:          "enable-password",
			Title:       "Enable password",
			Family:      FamilyPresence,
			Severity:    audit.SeverityWarn,
			Commands:    []string{"show running-config | include enable password"},
			HeaderRows:  headerRows,
			Remediation: "Set an encrypted enable password or use enable secret",
			Check:       checkEnablePassword,
		},
		{
			ID:          "vtp-password",
			Title:       "VTP password",
			Family:      FamilyTable,
			Severity:    audit.SeverityFail,
			Commands:    []string{"show vtp status", "show vtp password"},
			Remediation: "Protect VTP against spoofing: Switch(config)#vtp password <secret>",
			Check:       checkVTPPassword,
		},
		absence("telnet", "Telnet access", audit.SeverityWarn,
			"show running-config | include telnet",
			"Telnet is enabled; management traffic is unencrypted",
			"Switch(config-line)#transport input ssh"),
		{
			ID:          "dtp",
			Title:       "DTP",
			Family:      FamilyTable,
			Severity:    audit.SeverityFail,
			Commands:    []string{"show dtp"},
			Remediation: "Disable trunk negotiation: Switch(config-if)#switchport nonegotiate",
			Check:       checkDTP,
		},
		presence("dhcp-snooping", "DHCP snooping", audit.SeverityFail,
			"show running-config | include ip dhcp snooping",
			"DHCP snooping is not enabled; the switch is exposed to DHCP starvation and rogue servers",
			"Switch(config)#ip dhcp snooping"),
		absence("tcp-small-servers", "TCP small servers", audit.SeverityWarn,
			"show running-config | include service tcp-small-servers",
			"TCP small servers are running",
			"Switch(config)#no service tcp-small-servers"),
		absence("udp-small-servers", "UDP small servers", audit.SeverityWarn,
			"show running-config | include service udp-small-servers",
			"UDP small servers are running",
			"Switch(config)#no service udp-small-servers"),
		absence("finger", "Finger service", audit.SeverityWarn,
			"show running-config | include finger",
			"Finger service is running",
			"Switch(config)#no service finger"),
		{
			ID:          "interface-health",
			Title:       "Interface health",
			Family:      FamilyTable,
			Severity:    audit.SeverityWarn,
			Commands:    []string{"show ip interface brief"},
			Remediation: "Investigate interfaces whose OK? column is not YES",
			Check:       checkInterfaceHealth,
		},
		toggle("dot1x", "802.1X", audit.SeverityFail,
			"show dot1x | include Sysauthcontrol", "Disabled",
			"802.1X system authentication control is disabled",
			"Switch(config)#dot1x system-auth-control"),
		toggle("bpdu-guard", "BPDU guard", audit.SeverityFail,
			"show spanning-tree summary totals | include BPDU Guard", "disabled",
			"BPDU guard is disabled; the switch is exposed to STP attacks",
			"Switch(config)#spanning-tree portfast bpduguard default"),
		presence("root-guard", "STP root guard", audit.SeverityWarn,
			"show running-config | include spanning-tree guard root",
			"STP root guard is not enabled on any interface",
			"Switch(config-if)#spanning-tree guard root"),
		toggle("loop-guard", "STP loop guard", audit.SeverityFail,
			"show spanning-tree summary totals | include Loopguard Default", "disabled",
			"Loop guard is disabled; the switch is exposed to STP attacks",
			"Switch(config)#spanning-tree loopguard default"),
		perVLAN("igmp-snooping", "IGMP snooping", audit.SeverityFail,
			"show ip igmp snooping vlan %s | begin Vlan %s", igmpStatusRow, "Disabled",
			"IGMP snooping is not enabled",
			"Switch(config)#ip igmp snooping vlan <id>"),
		presence("aaa", "AAA", audit.SeverityWarn,
			"show running-config | include aaa",
			"AAA is not enabled",
			"Switch(config)#aaa new-model"),
		{
			ID:          "errdisable",
			Title:       "Errdisable detection",
			Family:      FamilyTable,
			Severity:    audit.SeverityWarn,
			Commands:    []string{"show errdisable detect"},
			Remediation: "Switch(config)#errdisable detect cause <cause>",
			Check:       checkErrdisable,
		},
		{
			ID:          "vmps",
			Title:       "VMPS server",
			Family:      FamilyPresence,
			Severity:    audit.SeverityWarn,
			Commands:    []string{"show running-config | include vmps server"},
			HeaderRows:  headerRows,
			Remediation: "Switch(config)#vmps server <address>",
			Check:       checkVMPS,
		},
		{
			ID:          "tacacs",
			Title:       "TACACS+ server",
			Family:      FamilyTable,
			Severity:    audit.SeverityWarn,
			Commands:    []string{"show running-config | include tacacs-server"},
			Remediation: "Switch(config)#tacacs-server host <address> key <secret>",
			Check:       checkTACACS,
		},
		informational("ip-addresses", "Interface addresses",
			[]string{"show ip interface brief | exclude unassigned"}, checkIPAddresses),
		informational("active-vlans", "Active VLANs",
			[]string{"show vlan brief"}, checkActiveVLANs),
		informational("banner-login", "Login banner",
			[]string{"show running-config | include banner login"}, bannerCheck("login")),
		informational("banner-motd", "MOTD banner",
			[]string{"show running-config | include banner motd"}, bannerCheck("motd")),
		informational("hostname", "Hostname",
			[]string{"show running-config | include hostname"}, checkHostname),
		informational("privilege", "Session privilege",
			[]string{"show privilege"}, checkPrivilege),
		informational("default-gateway", "Default gateway",
			[]string{"show running-config | include ip default-gateway"}, checkDefaultGateway),
	}
}

// Lookup returns the catalog rule with id.
func Lookup(id string) (Rule, bool) {
	for _, r := range Catalog() {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

func checkNativeVLAN(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.Run(ctx, "show vlan")
	if err != nil {
		return Outcome{}, err
	}
	name, ok := facts.VLANName(text, 1)
	if !ok {
		return Outcome{}, mismatch("a VLAN 1 row", text)
	}
	if name == "default" {
		return Outcome{
			Violation: true,
			Message:   "VLAN 1 is still the default VLAN carrying user traffic and DTP, VTP, CDP and BPDU frames",
			Evidence:  "1 " + name,
		}, nil
	}
	return Outcome{Message: "VLAN 1 has been renamed to " + name}, nil
}

func checkCDP(ctx context.Context, d *Device) (Outcome, error) {
	ifaces, err := d.ConnectedInterfaces(ctx)
	if err != nil {
		return Outcome{}, err
	}
	var running, evidence []string
	for _, iface := range ifaces {
		text, err := d.Run(ctx, "show cdp interface "+iface.Name)
		if err != nil {
			return Outcome{}, err
		}
		state, ok := facts.CDPLineState(text)
		if !ok {
			continue
		}
		if state == "up" {
			running = append(running, iface.Name)
			evidence = append(evidence, iface.Name+" is "+state)
		}
	}
	if len(running) > 0 {
		return Outcome{
			Violation: true,
			Message:   "CDP is enabled for interfaces: " + strings.Join(running, ", "),
			Evidence:  strings.Join(evidence, "\n"),
			Affected:  running,
		}, nil
	}
	return Outcome{Message: "CDP is not running on connected interfaces"}, nil
}

func checkACLDenyAny(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.Run(ctx, "show access-lists")
	if err != nil {
		return Outcome{}, err
	}
	var hits []string
	for _, line := range strings.Split(facts.StripPagination(text), "\n") {
		if aclDenyAny.MatchString(line) {
			hits = append(hits, strings.TrimSpace(line))
		}
	}
	if len(hits) > 0 {
		return Outcome{
			Violation: true,
			Message:   "access lists contain an explicit deny any entry",
			Evidence:  strings.Join(hits, "\n"),
		}, nil
	}
	return Outcome{Message: "no explicit deny any entries"}, nil
}

func checkConsolePassword(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.RunConfig(ctx, "show running-config | begin line con 0")
	if err != nil {
		return Outcome{}, err
	}
	block, ok := facts.ConfigBlock(text, "line con 0")
	if !ok {
		return Outcome{}, mismatch(`"line con 0" block`, text)
	}

	var login, password, encrypted bool
	for _, line := range block {
		switch {
		case strings.Contains(line, "login"):
			login = true
		case strings.Contains(line, "password"):
			password = true
			// "password 7 <hash>" carries the encryption type token.
			if len(strings.Fields(line)) > 2 {
				encrypted = true
			}
		}
	}

	var problems []string
	if !login {
		problems = append(problems, "login is not enabled on the console line")
	}
	switch {
	case !password:
		problems = append(problems, "no console password is set")
	case !encrypted:
		problems = append(problems, "the console password is stored unencrypted")
	}
	evidence := strings.Join(block, "\n")
	if len(problems) > 0 {
		return Outcome{Violation: true, Message: strings.Join(problems, "; "), Evidence: evidence}, nil
	}
	return Outcome{Message: "console login requires an encrypted password", Evidence: evidence}, nil
}

func checkEnablePassword(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.RunConfig(ctx, "show running-config | include enable password")
	if err != nil {
		return Outcome{}, err
	}
	lines := facts.ConfigLines(text)
	if d.Unmatched(text) || len(lines) == 0 {
		return Outcome{Violation: true, Message: "no enable password is set; anyone can reach configuration mode", Evidence: text}, nil
	}
	if len(strings.Fields(lines[0])) < 4 {
		return Outcome{Violation: true, Message: "the enable password is stored unencrypted", Evidence: lines[0]}, nil
	}
	return Outcome{Message: "enable password is encrypted", Evidence: lines[0]}, nil
}

func checkVTPPassword(ctx context.Context, d *Device) (Outcome, error) {
	status, err := d.Run(ctx, "show vtp status")
	if err != nil {
		return Outcome{}, err
	}
	mode, ok := facts.Field(status, "VTP Operating Mode")
	if !ok {
		return Outcome{}, mismatch(`"VTP Operating Mode"`, status)
	}
	if mode == "Transparent" {
		return Outcome{Message: "VTP is in transparent mode", Evidence: "VTP Operating Mode : " + mode}, nil
	}

	text, err := d.Run(ctx, "show vtp password")
	if err != nil {
		return Outcome{}, err
	}
	if !strings.Contains(text, ":") {
		return Outcome{
			Violation: true,
			Message:   fmt.Sprintf("VTP runs in %s mode without a password", mode),
			Evidence:  "no password configured",
		}, nil
	}
	return Outcome{Message: "VTP password is configured"}, nil
}

func checkDTP(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.Run(ctx, "show dtp")
	if err != nil {
		return Outcome{}, err
	}
	n, ok := facts.DTPInterfaceCount(text)
	if !ok {
		return Outcome{}, mismatch(`"interfaces using DTP" summary`, text)
	}
	if n > 0 {
		return Outcome{
			Violation: true,
			Message:   fmt.Sprintf("DTP is running on %d port(s); an attacker can negotiate a trunk", n),
			Evidence:  fmt.Sprintf("%d interfaces using DTP", n),
		}, nil
	}
	return Outcome{Message: "DTP is not running"}, nil
}

func checkInterfaceHealth(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.Run(ctx, "show ip interface brief")
	if err != nil {
		return Outcome{}, err
	}
	rows := facts.IPInterfaces(text)
	var unhealthy, evidence []string
	for _, row := range rows {
		if !row.OK {
			unhealthy = append(unhealthy, row.Name)
			evidence = append(evidence, fmt.Sprintf("%s %s %s", row.Name, row.Status, row.Protocol))
		}
	}
	if len(unhealthy) > 0 {
		return Outcome{
			Violation: true,
			Message:   "interfaces are not OK: " + strings.Join(unhealthy, ", "),
			Evidence:  strings.Join(evidence, "\n"),
			Affected:  unhealthy,
		}, nil
	}
	return Outcome{Message: fmt.Sprintf("%d interfaces are OK", len(rows))}, nil
}

func checkErrdisable(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.Run(ctx, "show errdisable detect")
	if err != nil {
		return Outcome{}, err
	}
	causes := facts.DetectCauses(text)
	if len(causes) == 0 {
		return Outcome{}, mismatch("errdisable detection rows", text)
	}
	var disabled []string
	for _, c := range causes {
		if !c.Enabled {
			disabled = append(disabled, c.Cause)
		}
	}
	if len(disabled) > 0 {
		return Outcome{
			Violation: true,
			Message:   "errdisable detection is disabled for: " + strings.Join(disabled, ", "),
			Affected:  disabled,
		}, nil
	}
	return Outcome{Message: fmt.Sprintf("errdisable detection is enabled for all %d causes", len(causes))}, nil
}

func checkVMPS(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.RunConfig(ctx, "show running-config | include vmps server")
	if err != nil {
		return Outcome{}, err
	}
	lines := facts.ConfigLines(text)
	if d.Unmatched(text) || len(lines) == 0 {
		return Outcome{Violation: true, Message: "VMPS is not enabled", Evidence: text}, nil
	}
	server, ok := facts.ConfigValue(lines[0], 2)
	if !ok {
		return Outcome{}, mismatch("a VMPS server address", text)
	}
	return Outcome{Message: "VMPS is enabled", Evidence: lines[0], Annotation: server}, nil
}

func checkTACACS(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.RunConfig(ctx, "show running-config | include tacacs-server")
	if err != nil {
		return Outcome{}, err
	}
	var hosts []string
	var key bool
	for _, line := range facts.ConfigLines(text) {
		fields := strings.Fields(line)
		switch {
		case strings.Contains(line, "host"):
			hosts = append(hosts, fields[len(fields)-1])
		case strings.Contains(line, "key"):
			key = true
		}
	}
	switch {
	case len(hosts) == 0:
		return Outcome{Violation: true, Message: "no TACACS+ server is configured"}, nil
	case !key:
		return Outcome{
			Violation:  true,
			Message:    "TACACS+ servers are used without an authentication key",
			Affected:   hosts,
			Annotation: strings.Join(hosts, ", "),
		}, nil
	}
	return Outcome{Message: "TACACS+ server configured with a key", Annotation: strings.Join(hosts, ", ")}, nil
}

func checkIPAddresses(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.Run(ctx, "show ip interface brief | exclude unassigned")
	if err != nil {
		return Outcome{}, err
	}
	rows := facts.IPInterfaces(text)
	pairs := make([]string, 0, len(rows))
	for _, row := range rows {
		pairs = append(pairs, row.Name+": "+row.Address)
	}
	if len(pairs) == 0 {
		return Outcome{Message: "no interface has an address"}, nil
	}
	return Outcome{
		Message:    fmt.Sprintf("%d interfaces have addresses", len(pairs)),
		Annotation: strings.Join(pairs, ", "),
	}, nil
}

func checkActiveVLANs(ctx context.Context, d *Device) (Outcome, error) {
	vlans, err := d.VLANs(ctx)
	if err != nil {
		return Outcome{}, err
	}
	pairs := make([]string, 0, len(vlans))
	for _, v := range vlans {
		pairs = append(pairs, fmt.Sprintf("VLAN%d <-> %s", v.ID, v.Name))
	}
	return Outcome{
		Message:    fmt.Sprintf("%d active VLANs", len(vlans)),
		Annotation: strings.Join(pairs, ", "),
	}, nil
}

func bannerCheck(kind string) Check {
	return func(ctx context.Context, d *Device) (Outcome, error) {
		text, err := d.RunConfig(ctx, "show running-config | include banner "+kind)
		if err != nil {
			return Outcome{}, err
		}
		if d.Unmatched(text) {
			return Outcome{Message: "no " + kind + " banner configured"}, nil
		}
		banner, ok := facts.Banner(text, kind)
		if !ok {
			return Outcome{}, mismatch("a banner "+kind+" line", text)
		}
		return Outcome{Message: kind + " banner configured", Annotation: banner}, nil
	}
}

func checkHostname(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.RunConfig(ctx, "show running-config | include hostname")
	if err != nil {
		return Outcome{}, err
	}
	lines := facts.ConfigLines(text)
	if d.Unmatched(text) || len(lines) == 0 {
		return Outcome{Message: "no hostname configured"}, nil
	}
	name, ok := facts.ConfigValue(lines[0], 1)
	if !ok {
		return Outcome{}, mismatch("a hostname value", text)
	}
	return Outcome{Message: "hostname " + name, Annotation: name}, nil
}

func checkPrivilege(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.Run(ctx, "show privilege")
	if err != nil {
		return Outcome{}, err
	}
	level, ok := facts.PrivilegeLevel(text)
	if !ok {
		return Outcome{}, mismatch(`"privilege level is"`, text)
	}
	return Outcome{
		Message:    fmt.Sprintf("current privilege level is %d", level),
		Annotation: fmt.Sprint(level),
	}, nil
}

func checkDefaultGateway(ctx context.Context, d *Device) (Outcome, error) {
	text, err := d.RunConfig(ctx, "show running-config | include ip default-gateway")
	if err != nil {
		return Outcome{}, err
	}
	lines := facts.ConfigLines(text)
	if d.Unmatched(text) || len(lines) == 0 {
		return Outcome{Message: "no default gateway; the switch is not reachable from other networks"}, nil
	}
	gateway, ok := facts.ConfigValue(lines[0], 2)
	if !ok {
		return Outcome{}, mismatch("a default gateway address", text)
	}
	return Outcome{
		Message:    "switch is reachable from other networks through " + gateway,
		Annotation: gateway,
	}, nil
}
