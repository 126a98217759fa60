package compliance

import "sort"

// Mapping ties one audit rule to framework requirements.
type Mapping struct {
	RuleID     string
	Frameworks map[string][]string // Framework ID -> Requirement IDs
	Priority   string              // Critical, High, Medium, Low
}

// annexA builds a mapping whose requirements use the ISO/IEC 27001:2022
// Annex A numbering, which JIS Q 27001:2023 adopts unchanged.
func annexA(ruleID, priority string, controls ...string) Mapping {
	return Mapping{
		RuleID: ruleID,
		Frameworks: map[string][]string{
			"iso27001":  controls,
			"jisq27001": controls,
		},
		Priority: priority,
	}
}

// GetComplianceMappings returns the mapping of audit rules to compliance requirements
func GetComplianceMappings() map[string]Mapping {
	list := []Mapping{
		// Layer 2 segmentation and trunking
		annexA("native-vlan", "High", "A.8.22"),
		annexA("dtp", "High", "A.8.20", "A.8.22"),
		annexA("vtp-password", "High", "A.8.9", "A.8.20"),
		annexA("vmps", "Low", "A.8.22"),
		annexA("active-vlans", "Low", "A.8.22"),

		// Edge port protection
		annexA("port-security", "Critical", "A.8.20"),
		annexA("port-security-violation", "High", "A.8.20", "A.8.16"),
		annexA("dhcp-snooping", "High", "A.8.20"),
		annexA("dot1x", "Critical", "A.5.15", "A.8.5", "A.8.20"),
		annexA("acl-deny-any", "High", "A.8.20", "A.8.22"),

		// Spanning tree and multicast stability
		annexA("bpdu-guard", "High", "A.8.20"),
		annexA("root-guard", "Medium", "A.8.20"),
		annexA("loop-guard", "High", "A.8.14", "A.8.20"),
		annexA("igmp-snooping", "Medium", "A.8.6", "A.8.20"),
		annexA("errdisable", "Medium", "A.8.16", "A.8.20"),
		annexA("interface-health", "Medium", "A.8.6", "A.8.16"),

		// Management plane access
		annexA("console-password", "Critical", "A.5.17", "A.8.5"),
		annexA("enable-password", "Critical", "A.5.17", "A.8.2", "A.8.24"),
		annexA("telnet", "Critical", "A.8.21", "A.8.24"),
		annexA("aaa", "High", "A.5.15", "A.8.5"),
		annexA("tacacs", "High", "A.5.15", "A.8.5", "A.8.15"),
		annexA("privilege", "Medium", "A.8.2"),
		annexA("banner-login", "Low", "A.5.10"),
		annexA("banner-motd", "Low", "A.5.10"),

		// Service hardening
		annexA("cdp", "Medium", "A.8.12", "A.8.20"),
		annexA("tcp-small-servers", "Medium", "A.8.9"),
		annexA("udp-small-servers", "Medium", "A.8.9"),
		annexA("finger", "Medium", "A.8.9", "A.8.12"),

		// Inventory
		annexA("hostname", "Low", "A.5.9"),
		annexA("ip-addresses", "Low", "A.5.9", "A.8.9"),
		annexA("default-gateway", "Low", "A.8.9"),
	}

	mappings := make(map[string]Mapping, len(list))
	for _, m := range list {
		mappings[m.RuleID] = m
	}
	return mappings
}

// GetMappingForRule returns compliance mapping for a specific rule
func GetMappingForRule(ruleID string) *Mapping {
	if mapping, ok := GetComplianceMappings()[ruleID]; ok {
		return &mapping
	}
	return nil
}

// GetRulesForFramework returns the sorted IDs of rules relevant to a framework
func GetRulesForFramework(frameworkID string) []string {
	var ids []string
	for id, mapping := range GetComplianceMappings() {
		if _, ok := mapping.Frameworks[frameworkID]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// GetRequirementsForFramework returns requirement ID -> sorted rule IDs that
// provide evidence for it.
func GetRequirementsForFramework(frameworkID string) map[string][]string {
	requirements := make(map[string][]string)
	for id, mapping := range GetComplianceMappings() {
		for _, req := range mapping.Frameworks[frameworkID] {
			requirements[req] = append(requirements[req], id)
		}
	}
	for _, ids := range requirements {
		sort.Strings(ids)
	}
	return requirements
}

// ControlsFor returns a lookup of the requirement IDs each rule maps to under
// frameworkID. Unknown rules and frameworks map to nothing.
func ControlsFor(frameworkID string) func(ruleID string) []string {
	mappings := GetComplianceMappings()
	return func(ruleID string) []string {
		reqs := mappings[ruleID].Frameworks[frameworkID]
		if len(reqs) == 0 {
			return nil
		}
		return append([]string(nil), reqs...)
	}
}
