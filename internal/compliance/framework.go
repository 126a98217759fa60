// Package compliance maps audit rules onto the requirements of the
// information security frameworks a switch audit is usually reported against.
package compliance

// Framework represents a compliance or regulatory framework
type Framework struct {
	ID          string   // Unique identifier (e.g., "iso27001")
	Name        string   // Display name (e.g., "ISO/IEC 27001:2022")
	Description string   // Brief description
	Region      string   // Geographic region (e.g., "Global", "Japan")
	Categories  []string // Annex A themes the mapped rules fall under
}

// DefaultFramework is attached to findings when none is configured.
const DefaultFramework = "iso27001"

// SupportedFrameworks returns all compliance frameworks supported by the tool
func SupportedFrameworks() []Framework {
	return []Framework{
		{
			ID:          "iso27001",
			Name:        "ISO/IEC 27001:2022",
			Description: "Information Security Management System standard",
			Region:      "Global",
			Categories:  []string{"Organizational", "Technological"},
		},
		{
			ID:          "jisq27001",
			Name:        "JIS Q 27001:2023",
			Description: "Japanese Industrial Standard for Information Security Management (aligned with ISO 27001)",
			Region:      "Japan",
			Categories:  []string{"Organizational", "Technological"},
		},
	}
}

// GetFramework returns a specific framework by ID
func GetFramework(id string) *Framework {
	for _, fw := range SupportedFrameworks() {
		if fw.ID == id {
			return &fw
		}
	}
	return nil
}

// GetFrameworksByRegion returns all frameworks for a specific region
func GetFrameworksByRegion(region string) []Framework {
	var frameworks []Framework
	for _, fw := range SupportedFrameworks() {
		if fw.Region == region || fw.Region == "Global" {
			frameworks = append(frameworks, fw)
		}
	}
	return frameworks
}
