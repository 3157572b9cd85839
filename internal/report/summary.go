package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/proteobench/benchcore/internal/store"
)

// SummaryReport describes one stored benchmark run
type SummaryReport struct {
	GeneratedAt time.Time
	Run         *store.Run

	// Input file, when it is still on disk
	InputSize   int64
	InputExists bool

	// Per-cutoff metrics, ascending by cutoff
	Cutoffs []CutoffSummary

	// Details from the event log
	TopErrors    []ErrorSummary
	Warnings     int
	EventLogPath string
	DatabasePath string
}

// CutoffSummary holds the metrics of one cutoff
type CutoffSummary struct {
	Cutoff  int
	Metrics map[string]float64
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// summaryColumns are the metrics rendered in the cutoff table
var summaryColumns = []struct {
	key   string
	title string
}{
	{"nr_prec", "Features"},
	{"median_abs_epsilon_global", "Median abs ε"},
	{"mean_abs_epsilon_global", "Mean abs ε"},
	{"median_abs_epsilon_eq_species", "Median abs ε (eq. species)"},
	{"CV_median", "CV median"},
	{"roc_auc", "ROC AUC"},
	{"roc_auc_directional", "Directional ROC AUC"},
}

// GenerateSummaryReport loads a run and the events logged for it
func GenerateSummaryReport(db *store.Store, runID, eventLogPath string) (*SummaryReport, error) {
	run, err := db.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}

	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		Run:          run,
		EventLogPath: eventLogPath,
		TopErrors:    make([]ErrorSummary, 0),
	}

	if info, err := os.Stat(run.InputPath); err == nil {
		report.InputExists = true
		report.InputSize = info.Size()
	}

	if eventLogPath != "" {
		report.TopErrors, report.Warnings = gatherTopErrors(eventLogPath, run.EventRunID, 10)
	}
	return report, nil
}

// AddCutoff attaches the metrics of cutoff k
func (r *SummaryReport) AddCutoff(k int, metrics map[string]float64) {
	r.Cutoffs = append(r.Cutoffs, CutoffSummary{Cutoff: k, Metrics: metrics})
	sort.Slice(r.Cutoffs, func(i, j int) bool {
		return r.Cutoffs[i].Cutoff < r.Cutoffs[j].Cutoff
	})
}

// gatherTopErrors counts the error events of runID in a JSONL log and
// returns the most common ones plus the number of warnings
func gatherTopErrors(path, runID string, limit int) ([]ErrorSummary, int) {
	errs := make([]ErrorSummary, 0)
	f, err := os.Open(path)
	if err != nil {
		return errs, 0
	}
	defer f.Close()

	counts := make(map[string]int)
	warnings := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if runID != "" && ev.RunID != runID {
			continue
		}
		switch ev.Level {
		case LevelError:
			if ev.Error != "" {
				counts[ev.Error]++
			}
		case LevelWarning:
			warnings++
		}
	}

	for msg, count := range counts {
		errs = append(errs, ErrorSummary{Error: msg, Count: count})
	}
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Count != errs[j].Count {
			return errs[i].Count > errs[j].Count
		}
		return errs[i].Error < errs[j].Error
	})
	if len(errs) > limit {
		errs = errs[:limit]
	}
	return errs, warnings
}

// RenderMarkdown renders the report as Markdown
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder
	run := report.Run

	md.WriteString("# ProteoBench Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}
	md.WriteString("---\n\n")

	md.WriteString("## Run\n\n")
	md.WriteString("| Field | Value |\n")
	md.WriteString("|-------|-------|\n")
	md.WriteString(fmt.Sprintf("| ID | `%s` |\n", run.ID))
	md.WriteString(fmt.Sprintf("| Module | %s |\n", run.ModuleID))
	md.WriteString(fmt.Sprintf("| Tool | %s |\n", run.Tool))
	md.WriteString(fmt.Sprintf("| Status | %s |\n", run.Status))
	md.WriteString(fmt.Sprintf("| Intermediate hash | `%s` |\n", run.IntermediateHash))
	if run.InputPath != "" {
		size := "missing"
		if report.InputExists {
			size = humanize.Bytes(uint64(report.InputSize))
		}
		md.WriteString(fmt.Sprintf("| Input | `%s` (%s) |\n", truncatePath(run.InputPath, 60), size))
	}
	md.WriteString(fmt.Sprintf("| Created | %s (%s) |\n", run.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(run.CreatedAt)))
	if run.PRURL != "" {
		md.WriteString(fmt.Sprintf("| Pull request | %s |\n", run.PRURL))
	}
	if run.Error != "" {
		md.WriteString(fmt.Sprintf("| Error | %s |\n", run.Error))
	}
	md.WriteString("\n")

	if len(report.Cutoffs) > 0 {
		md.WriteString("## Metrics by cutoff\n\n")
		md.WriteString("| Min. observed |")
		for _, c := range summaryColumns {
			md.WriteString(" " + c.title + " |")
		}
		md.WriteString("\n|---|")
		md.WriteString(strings.Repeat("---|", len(summaryColumns)))
		md.WriteString("\n")
		for _, cut := range report.Cutoffs {
			md.WriteString(fmt.Sprintf("| %d |", cut.Cutoff))
			for _, c := range summaryColumns {
				md.WriteString(" " + formatMetric(c.key, cut.Metrics) + " |")
			}
			md.WriteString("\n")
		}
		md.WriteString("\n")
	}

	if len(report.TopErrors) > 0 || report.Warnings > 0 {
		md.WriteString("## Problems\n\n")
		if report.Warnings > 0 {
			md.WriteString(fmt.Sprintf("%s logged.\n\n", humanize.Comma(int64(report.Warnings))+" warning(s)"))
		}
		if len(report.TopErrors) > 0 {
			md.WriteString("| Count | Error |\n")
			md.WriteString("|-------|-------|\n")
			for _, err := range report.TopErrors {
				md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, err.Error))
			}
			md.WriteString("\n")
		}
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by pbench*\n")
	return md.String()
}

func formatMetric(key string, m map[string]float64) string {
	v, ok := m[key]
	if !ok {
		return "-"
	}
	if key == "nr_prec" {
		return humanize.Comma(int64(v))
	}
	return fmt.Sprintf("%.4f", v)
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
