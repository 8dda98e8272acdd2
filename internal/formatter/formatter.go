// package formatter renders batch reports and history in various formats (plain text, Markdown, CSV, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
	"github.com/desertthunder/libsync/internal/tasks"
	"github.com/dustin/go-humanize"
)

// Format selects a report renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

// ParseFormat accepts a format name or the usual file extension ("md", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, s)
	}
}

// Report renders result in the given format.
func Report(result *tasks.BatchResult, format Format) ([]byte, error) {
	switch format {
	case FormatText:
		return ReportToText(result)
	case FormatMarkdown:
		return ReportToMarkdown(result)
	case FormatCSV:
		return ReportToCSV(result)
	case FormatJSON:
		return ReportToJSON(result)
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteReport renders result and writes it to path.
func WriteReport(result *tasks.BatchResult, path string, format Format) error {
	data, err := Report(result, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReportToText lists the batch summary followed by what is needed to fix each unresolved track by hand.
func ReportToText(result *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Batch: %s (%s)\n", result.ID, result.Mode))
	buf.WriteString(fmt.Sprintf("Playlist: %s\n", playlistSummary(result)))
	buf.WriteString(fmt.Sprintf("Status: %s\n", result.Status()))
	buf.WriteString(fmt.Sprintf("Tracks: %s\n", trackSummary(result)))
	if d := result.Duration(); d > 0 {
		buf.WriteString(fmt.Sprintf("Duration: %s\n", d.Round(time.Second)))
	}
	if result.Err != nil {
		buf.WriteString(fmt.Sprintf("Error: %v\n", result.Err))
	}

	failed := result.Failed()
	if len(failed) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("\nUnresolved:\n")
	for _, o := range failed {
		buf.WriteString(fmt.Sprintf("%d. %s\n", o.Position+1, o.Label()))
		if o.Track != nil && o.Track.SourcePath != "" {
			buf.WriteString(fmt.Sprintf("   source: %s\n", o.Track.SourcePath))
		}
		if o.Track != nil && o.Track.LibraryPath() != "" {
			buf.WriteString(fmt.Sprintf("   filed: %s\n", o.Track.LibraryPath()))
		}
		buf.WriteString(fmt.Sprintf("   %s: %v\n", o.Kind(), o.Err))
		if terms := o.Terms(); len(terms) > 0 {
			buf.WriteString(fmt.Sprintf("   tried: %s\n", quoteAll(terms)))
		}
		for _, c := range o.Candidates() {
			buf.WriteString(fmt.Sprintf("   candidate %s: %s\n", c.ID, c.Path))
		}
	}

	return buf.Bytes(), nil
}

// ReportToMarkdown renders the summary as a table followed by the unresolved and resolved tracks.
func ReportToMarkdown(result *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", result.PlaylistName))

	buf.WriteString("| | |\n|---|---|\n")
	buf.WriteString(fmt.Sprintf("| Batch | `%s` |\n", result.ID))
	buf.WriteString(fmt.Sprintf("| Mode | %s |\n", result.Mode))
	buf.WriteString(fmt.Sprintf("| Status | **%s** |\n", result.Status()))
	buf.WriteString(fmt.Sprintf("| Tracks | %s |\n", trackSummary(result)))
	buf.WriteString(fmt.Sprintf("| Playlist | %s |\n", playlistSummary(result)))
	if !result.FinishedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("| Finished | %s |\n", result.FinishedAt.Format(time.RFC3339)))
	}
	if result.Err != nil {
		buf.WriteString(fmt.Sprintf("| Error | %s |\n", escapeCell(result.Err.Error())))
	}

	if failed := result.Failed(); len(failed) > 0 {
		buf.WriteString("\n## Unresolved\n\n")
		for _, o := range failed {
			buf.WriteString(fmt.Sprintf("%d. **%s** (`%s`)\n", o.Position+1, o.Label(), o.Kind()))
			if o.Track != nil && o.Track.SourcePath != "" {
				buf.WriteString(fmt.Sprintf("   - source: `%s`\n", o.Track.SourcePath))
			}
			buf.WriteString(fmt.Sprintf("   - error: %v\n", o.Err))
			if terms := o.Terms(); len(terms) > 0 {
				buf.WriteString(fmt.Sprintf("   - tried: %s\n", quoteAll(terms)))
			}
			for _, c := range o.Candidates() {
				buf.WriteString(fmt.Sprintf("   - candidate `%s`: `%s`\n", c.ID, c.Path))
			}
		}
	}

	if resolved := result.Resolved(); len(resolved) > 0 {
		buf.WriteString("\n## Resolved\n\n")
		for _, o := range resolved {
			buf.WriteString(fmt.Sprintf("%d. %s [`%s`]\n", o.Position+1, o.Label(), o.RemoteID()))
		}
	}

	return buf.Bytes(), nil
}

// ReportToCSV writes one row per track with columns: Position, Status, Title, Artist, Album, Source,
// Library Path, Remote ID, Error Kind, Error, Terms
func ReportToCSV(result *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Status", "Title", "Artist", "Album", "Source", "Library Path", "Remote ID", "Error Kind", "Error", "Terms"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range toTrackReports(result) {
		record := []string{
			strconv.Itoa(rec.Position + 1),
			rec.Status,
			rec.Title,
			rec.Artist,
			rec.Album,
			rec.SourcePath,
			rec.LibraryPath,
			rec.RemoteID,
			rec.ErrorKind,
			rec.Error,
			strings.Join(rec.Terms, " | "),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

type batchReport struct {
	ID              string        `json:"id"`
	Mode            string        `json:"mode"`
	Status          string        `json:"status"`
	Playlist        string        `json:"playlist"`
	PlaylistID      string        `json:"playlist_id,omitempty"`
	PlaylistCreated bool          `json:"playlist_created"`
	Added           int           `json:"added"`
	FinalCount      int           `json:"final_count"`
	Total           int           `json:"total"`
	Resolved        int           `json:"resolved"`
	Failed          int           `json:"failed"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
	DurationSeconds float64       `json:"duration_seconds"`
	Error           string        `json:"error,omitempty"`
	Tracks          []trackReport `json:"tracks"`
}

type trackReport struct {
	Position    int                `json:"position"`
	Status      string             `json:"status"`
	Title       string             `json:"title"`
	Artist      string             `json:"artist"`
	Album       string             `json:"album"`
	SourcePath  string             `json:"source_path,omitempty"`
	LibraryPath string             `json:"library_path,omitempty"`
	RemoteID    string             `json:"remote_id,omitempty"`
	ErrorKind   string             `json:"error_kind,omitempty"`
	Error       string             `json:"error,omitempty"`
	Terms       []string           `json:"terms,omitempty"`
	Candidates  []models.Candidate `json:"candidates,omitempty"`
}

// ReportToJSON renders the full result, including search terms and candidates of unresolved tracks.
func ReportToJSON(result *tasks.BatchResult) ([]byte, error) {
	report := batchReport{
		ID:              result.ID,
		Mode:            string(result.Mode),
		Status:          string(result.Status()),
		Playlist:        result.PlaylistName,
		PlaylistID:      result.PlaylistID,
		PlaylistCreated: result.PlaylistCreated,
		Added:           result.Added,
		FinalCount:      result.FinalCount,
		Total:           len(result.Outcomes),
		Resolved:        len(result.Resolved()),
		Failed:          len(result.Failed()),
		StartedAt:       result.StartedAt,
		DurationSeconds: result.Duration().Seconds(),
		Tracks:          toTrackReports(result),
	}
	if !result.FinishedAt.IsZero() {
		finished := result.FinishedAt
		report.FinishedAt = &finished
	}
	if result.Err != nil {
		report.Error = result.Err.Error()
	}
	return shared.MarshalJSON(report, true)
}

func toTrackReports(result *tasks.BatchResult) []trackReport {
	records := result.OutcomeRecords()
	reports := make([]trackReport, len(records))
	for i, rec := range records {
		o := result.Outcomes[i]
		reports[i] = trackReport{
			Position:    rec.Position,
			Status:      string(rec.Status),
			Title:       rec.Title,
			Artist:      rec.Artist,
			Album:       rec.Album,
			SourcePath:  rec.SourcePath,
			LibraryPath: rec.LibraryPath,
			RemoteID:    rec.RemoteID,
			ErrorKind:   rec.ErrorKind,
			Error:       rec.Error,
			Terms:       o.Terms(),
			Candidates:  o.Candidates(),
		}
	}
	return reports
}

// HistoryTable renders batches as an aligned table with times relative to now.
func HistoryTable(batches []*models.BatchRun, now time.Time) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "#\tSTARTED\tMODE\tPLAYLIST\tSTATUS\tRESOLVED\tCOUNT\tDURATION")
	for _, b := range batches {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			b.Sequence(),
			humanize.RelTime(b.StartedAt, now, "ago", "from now"),
			b.Mode,
			b.PlaylistName,
			b.Status,
			b.Resolved,
			b.Total,
			humanize.Comma(int64(b.FinalCount)),
			b.Duration().Round(time.Second),
		)
	}
	w.Flush()

	return buf.Bytes()
}

// OutcomeList renders the tracks of one batch, failures with their error.
func OutcomeList(outcomes []*models.TrackOutcomeRecord) []byte {
	var buf bytes.Buffer
	for _, o := range outcomes {
		label := fmt.Sprintf("%s - %s", o.Artist, o.Title)
		if o.Title == "" {
			label = o.SourcePath
		}
		switch o.Status {
		case models.OutcomeResolved:
			buf.WriteString(fmt.Sprintf("%3d. ok    %s [%s]\n", o.Position+1, label, o.RemoteID))
		default:
			buf.WriteString(fmt.Sprintf("%3d. FAIL  %s (%s)\n", o.Position+1, label, o.ErrorKind))
			if o.SourcePath != "" {
				buf.WriteString(fmt.Sprintf("           source: %s\n", o.SourcePath))
			}
			if o.Error != "" {
				buf.WriteString(fmt.Sprintf("           %s\n", o.Error))
			}
		}
	}
	return buf.Bytes()
}

func playlistSummary(result *tasks.BatchResult) string {
	if result.PlaylistID == "" {
		return fmt.Sprintf("%s (not written)", result.PlaylistName)
	}
	verb := "added"
	if result.PlaylistCreated {
		verb = "created, added"
	}
	return fmt.Sprintf("%s (%s %s, now %s tracks)", result.PlaylistName, verb,
		humanize.Comma(int64(result.Added)), humanize.Comma(int64(result.FinalCount)))
}

func trackSummary(result *tasks.BatchResult) string {
	return fmt.Sprintf("%d of %d resolved (%.1f%%)", len(result.Resolved()), len(result.Outcomes), result.MatchPercentage())
}

func quoteAll(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = strconv.Quote(t)
	}
	return strings.Join(quoted, ", ")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
