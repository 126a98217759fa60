package cmd

import (
	"github.com/fatih/color"

	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorUnknown = color.New(color.FgMagenta).SprintFunc()
	colorFatal   = color.New(color.FgWhite, color.BgRed, color.Bold).SprintFunc()
)

// formatSeverityWithColor renders a severity label. Unparseable and Error
// never share a color with Pass.
func formatSeverityWithColor(sev audit.Severity) string {
	label := string(sev)
	switch sev {
	case audit.SeverityPass:
		return colorSuccess(label)
	case audit.SeverityWarn:
		return colorWarn(label)
	case audit.SeverityFail:
		return colorError(label)
	case audit.SeverityUnparseable:
		return colorUnknown(label)
	case audit.SeverityError:
		return colorFatal(label)
	default:
		return label
	}
}

func formatStatusWithColor(status audit.Status) string {
	switch status {
	case audit.StatusCompleted:
		return colorSuccess(string(status))
	case audit.StatusFailed:
		return colorError(string(status))
	default:
		return colorInfo(string(status))
	}
}
