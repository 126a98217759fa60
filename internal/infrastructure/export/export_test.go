package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
)

func finishedReport(t *testing.T) *audit.Report {
	t.Helper()
	r, err := audit.NewReport("lab/core 1", "10.0.0.1:23", "telnet")
	if err != nil {
		t.Fatalf("NewReport() error = %v", err)
	}
	if err := r.Start(2); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	findings := []audit.Finding{
		{RuleID: "port-security", Title: "Port security", Severity: audit.SeverityFail,
			Message: "port security disabled", Affected: []string{"Gi1/0/1", "Gi1/0/2"},
			Controls: []string{"A.8.20"}, Duration: 1500 * time.Millisecond},
		{RuleID: "hostname", Title: "Hostname", Severity: audit.SeverityPass,
			Message: "hostname recorded", Annotation: "Switch, \"lab\""},
	}
	for _, f := range findings {
		if err := r.AddFinding(f); err != nil {
			t.Fatalf("AddFinding() error = %v", err)
		}
	}
	if err := r.Complete(); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	return r
}

func TestExportWritesReportAndDigest(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML, FormatCSV} {
		for _, algo := range []HashAlgorithm{HashAlgorithmSHA256, HashAlgorithmSHA512} {
			t.Run(string(format)+"/"+algo.String(), func(t *testing.T) {
				dir := t.TempDir()
				exp, err := NewExporter(dir, algo)
				if err != nil {
					t.Fatalf("NewExporter() error = %v", err)
				}
				report := finishedReport(t)

				before := report.Metadata()
				artifact, err := exp.Export(report, format)
				if err != nil {
					t.Fatalf("Export() error = %v", err)
				}
				path := artifact.Path
				want := filepath.Join(dir, "lab_core_1", report.ID()+"."+string(format))
				if path != want {
					t.Fatalf("path = %s, want %s", path, want)
				}

				ok, err := Verify(path, algo)
				if err != nil || !ok {
					t.Fatalf("Verify() = %v, %v", ok, err)
				}
				if artifact.Algorithm != algo || artifact.Format != format {
					t.Fatalf("artifact = %+v", artifact)
				}
				sidecar, _ := os.ReadFile(path + "." + algo.String())
				if !strings.HasSuffix(strings.TrimSpace(string(sidecar)), filepath.Base(path)) {
					t.Fatalf("sidecar %q does not name the report file", sidecar)
				}
				if !strings.HasPrefix(string(sidecar), artifact.Digest+"  ") {
					t.Fatalf("sidecar %q does not carry digest %s", sidecar, artifact.Digest)
				}
				if report.Metadata() != before {
					t.Fatalf("export changed the finished report: %+v -> %+v", before, report.Metadata())
				}
			})
		}
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	exp, _ := NewExporter(t.TempDir(), HashAlgorithmSHA256)
	artifact, err := exp.Export(finishedReport(t), FormatJSON)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	path := artifact.Path
	if err := os.WriteFile(path, []byte(`{"status":"completed"}`), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	ok, err := Verify(path, HashAlgorithmSHA256)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ok {
		t.Fatal("Verify() accepted a modified report")
	}
}

func TestEncodeJSON(t *testing.T) {
	data, err := Encode(finishedReport(t), FormatJSON)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var doc struct {
		Device   string         `json:"device"`
		Status   string         `json:"status"`
		Summary  map[string]int `json:"summary"`
		Findings []struct {
			RuleID   string   `json:"rule_id"`
			Severity string   `json:"severity"`
			Affected []string `json:"affected"`
			Controls []string `json:"controls"`
		} `json:"findings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Device != "lab/core 1" || doc.Status != "completed" {
		t.Fatalf("header = %s %s", doc.Device, doc.Status)
	}
	if doc.Summary["fail"] != 1 || doc.Summary["pass"] != 1 || doc.Summary["error"] != 0 {
		t.Fatalf("summary = %v", doc.Summary)
	}
	if len(doc.Findings) != 2 || doc.Findings[0].RuleID != "port-security" || len(doc.Findings[0].Affected) != 2 {
		t.Fatalf("findings = %+v", doc.Findings)
	}
}

func TestEncodeYAML(t *testing.T) {
	data, err := Encode(finishedReport(t), FormatYAML)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	findings, ok := doc["findings"].([]any)
	if !ok || len(findings) != 2 {
		t.Fatalf("findings = %#v", doc["findings"])
	}
	first := findings[0].(map[string]any)
	if first["rule_id"] != "port-security" || first["severity"] != "fail" {
		t.Fatalf("first finding = %v", first)
	}
}

func TestEncodeCSV(t *testing.T) {
	data, err := Encode(finishedReport(t), FormatCSV)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(csvHeader, ",") {
		t.Fatalf("header = %v", records[0])
	}
	if records[1][5] != "Gi1/0/1 Gi1/0/2" || records[1][7] != "A.8.20" || records[1][8] != "1.500" {
		t.Fatalf("row = %v", records[1])
	}
	if records[2][6] != "Switch, \"lab\"" {
		t.Fatalf("annotation = %q", records[2][6])
	}
}

func TestExportRejectsUnfinishedReport(t *testing.T) {
	r, _ := audit.NewReport("sw", "10.0.0.1:23", "telnet")
	exp, _ := NewExporter(t.TempDir(), "")
	if _, err := exp.Export(r, FormatJSON); !errors.Is(err, sharedErrors.ErrInvalidInput) {
		t.Fatalf("Export() error = %v", err)
	}
}

func TestParse(t *testing.T) {
	if f, err := ParseFormat(" YML "); err != nil || f != FormatYAML {
		t.Fatalf("ParseFormat(yml) = %s, %v", f, err)
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, sharedErrors.ErrInvalidInput) {
		t.Fatalf("ParseFormat(xml) error = %v", err)
	}
	if h, err := ParseHashAlgorithm(""); err != nil || h != HashAlgorithmSHA256 {
		t.Fatalf("ParseHashAlgorithm(\"\") = %s, %v", h, err)
	}
	if _, err := ParseHashAlgorithm("md5"); err == nil {
		t.Fatal("md5 should be rejected")
	}
	if _, err := NewExporter("", HashAlgorithmSHA256); !errors.Is(err, sharedErrors.ErrMissingRequired) {
		t.Fatalf("NewExporter(\"\") error = %v", err)
	}
}
