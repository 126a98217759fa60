// Package export writes finished audit reports to the results directory
// together with a digest sidecar file.
package export

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
	consts "github.com/khanhnv2901/seca-switch/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
	"github.com/khanhnv2901/seca-switch/internal/shared/security"
)

// Format selects the report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a flag value onto a Format.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: export format %q (use json, yaml or csv)", sharedErrors.ErrInvalidInput, value)
}

// HashAlgorithm names the digest written next to each export.
type HashAlgorithm string

const (
	HashAlgorithmSHA256 HashAlgorithm = "sha256"
	HashAlgorithmSHA512 HashAlgorithm = "sha512"
)

func (h HashAlgorithm) String() string {
	return string(h)
}

// ParseHashAlgorithm validates a configured algorithm name.
func ParseHashAlgorithm(value string) (HashAlgorithm, error) {
	switch h := HashAlgorithm(strings.ToLower(value)); h {
	case HashAlgorithmSHA256, HashAlgorithmSHA512:
		return h, nil
	case "":
		return HashAlgorithmSHA256, nil
	}
	return "", fmt.Errorf("%w: hash algorithm %q", sharedErrors.ErrInvalidInput, value)
}

func (h HashAlgorithm) new() hash.Hash {
	if h == HashAlgorithmSHA512 {
		return sha512.New()
	}
	return sha256.New()
}

// Exporter writes reports under a results directory.
type Exporter struct {
	resultsDir string
	algorithm  HashAlgorithm
}

// NewExporter creates an exporter rooted at resultsDir.
func NewExporter(resultsDir string, algorithm HashAlgorithm) (*Exporter, error) {
	if resultsDir == "" {
		return nil, fmt.Errorf("%w: results directory cannot be empty", sharedErrors.ErrMissingRequired)
	}
	if algorithm == "" {
		algorithm = HashAlgorithmSHA256
	}
	if _, err := ParseHashAlgorithm(string(algorithm)); err != nil {
		return nil, err
	}
	return &Exporter{resultsDir: resultsDir, algorithm: algorithm}, nil
}

// Artifact is one written export and the digest recorded next to it.
type Artifact struct {
	Path      string
	Format    Format
	Algorithm HashAlgorithm
	Digest    string
}

// Export encodes report as format and writes it to
// <results>/<device>/<report id>.<format> with a digest sidecar. The report
// itself is only read.
func (e *Exporter) Export(report *audit.Report, format Format) (Artifact, error) {
	if report.Status() == audit.StatusPending || report.Status() == audit.StatusRunning {
		return Artifact{}, fmt.Errorf("%w: report %s has not finished", sharedErrors.ErrInvalidInput, report.ID())
	}

	data, err := Encode(report, format)
	if err != nil {
		return Artifact{}, err
	}

	dir := security.SafeName(report.Device())
	path, err := security.ResolveWithin(e.resultsDir, dir, report.ID()+"."+string(format))
	if err != nil {
		return Artifact{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), consts.DefaultDirPerm); err != nil {
		return Artifact{}, fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, consts.DefaultFilePerm); err != nil {
		return Artifact{}, fmt.Errorf("failed to write report: %w", err)
	}

	h := e.algorithm.new()
	h.Write(data)
	digest := hex.EncodeToString(h.Sum(nil))
	sidecar := fmt.Sprintf("%s  %s\n", digest, filepath.Base(path))
	if err := os.WriteFile(path+"."+e.algorithm.String(), []byte(sidecar), consts.DefaultFilePerm); err != nil {
		return Artifact{}, fmt.Errorf("failed to write hash file: %w", err)
	}
	return Artifact{Path: path, Format: format, Algorithm: e.algorithm, Digest: digest}, nil
}

// Verify recomputes the digest of an exported report and compares it with
// the sidecar written by Export.
func Verify(path string, algorithm HashAlgorithm) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read report: %w", err)
	}
	sidecar, err := os.ReadFile(path + "." + algorithm.String())
	if err != nil {
		return false, fmt.Errorf("read hash file: %w", err)
	}
	fields := strings.Fields(string(sidecar))
	if len(fields) == 0 {
		return false, fmt.Errorf("%w: empty hash file", sharedErrors.ErrInvalidInput)
	}

	h := algorithm.new()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)) == fields[0], nil
}

type document struct {
	ID          string          `json:"id" yaml:"id"`
	Device      string          `json:"device" yaml:"device"`
	Address     string          `json:"address" yaml:"address"`
	Protocol    string          `json:"protocol" yaml:"protocol"`
	Status      audit.Status    `json:"status" yaml:"status"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time       `json:"completed_at" yaml:"completed_at"`
	Failure     string          `json:"failure,omitempty" yaml:"failure,omitempty"`
	Summary     audit.Summary   `json:"summary" yaml:"summary"`
	Findings    []audit.Finding `json:"findings" yaml:"findings"`
}

func newDocument(r *audit.Report) document {
	return document{
		ID:          r.ID(),
		Device:      r.Device(),
		Address:     r.Address(),
		Protocol:    r.Protocol(),
		Status:      r.Status(),
		StartedAt:   r.StartedAt(),
		CompletedAt: r.CompletedAt(),
		Failure:     r.Failure(),
		Summary:     r.Summary(),
		Findings:    r.Findings(),
	}
}

var csvHeader = []string{
	"rule_id",
	"title",
	"severity",
	"message",
	"evidence",
	"affected",
	"annotation",
	"controls",
	"duration_seconds",
}

// Encode renders report in format without touching the filesystem.
func Encode(report *audit.Report, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(newDocument(report)); err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(newDocument(report)); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
	case FormatCSV:
		w := csv.NewWriter(&buf)
		if err := w.Write(csvHeader); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		for _, f := range report.Findings() {
			record := []string{
				f.RuleID,
				f.Title,
				string(f.Severity),
				f.Message,
				f.Evidence,
				strings.Join(f.Affected, " "),
				f.Annotation,
				strings.Join(f.Controls, " "),
				strconv.FormatFloat(f.Duration.Seconds(), 'f', 3, 64),
			}
			if err := w.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write finding: %w", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("flush csv: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: export format %q", sharedErrors.ErrInvalidInput, format)
	}
	return buf.Bytes(), nil
}
