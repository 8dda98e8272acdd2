package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/libsync/internal/matcher"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/shared"
	"github.com/desertthunder/libsync/internal/tasks"
	th "github.com/desertthunder/libsync/internal/testing"
)

var started = time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)

func sampleResult(t *testing.T) *tasks.BatchResult {
	t.Helper()

	home := &models.Track{Title: "Home", Artist: "Cavetown", Album: "Lemon Boy", SourcePath: "/import/home.mp3"}
	if err := home.AssignLibraryPath("/music/Cavetown/Lemon Boy/home.mp3"); err != nil {
		t.Fatalf("failed to assign path: %v", err)
	}
	if err := home.AssignRemoteID("id1"); err != nil {
		t.Fatalf("failed to assign id: %v", err)
	}

	blueberry := &models.Track{Title: "Blueberry", Artist: "Manatee Commune", Album: "s", SourcePath: "/import/blueberry.mp3"}
	noMatch := &matcher.NoMatchError{
		Track: *blueberry,
		Key:   "blueberry.mp3",
		Attempts: []matcher.Attempt{
			{Query: matcher.Query{Level: "title+album", Term: "Blueberry s"}},
			{Query: matcher.Query{Level: "title", Term: "Blueberry"}, Candidates: []models.Candidate{{ID: "x9", Path: "/music/Other/Blueberry Pie.mp3"}}},
		},
	}

	return &tasks.BatchResult{
		ID:              "batch-1",
		Mode:            models.ModeImport,
		PlaylistName:    "2024 01 January",
		PlaylistID:      "pl-1",
		PlaylistCreated: true,
		Added:           1,
		FinalCount:      1,
		StartedAt:       started,
		FinishedAt:      started.Add(95 * time.Second),
		Outcomes: []tasks.TrackOutcome{
			{Position: 0, Track: home},
			{Position: 1, Track: blueberry, Err: noMatch},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"txt", FormatText, false},
		{"MD", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"csv", FormatCSV, false},
		{" json ", FormatJSON, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestReports(t *testing.T) {
	t.Run("ReportToText", func(t *testing.T) {
		data, err := ReportToText(sampleResult(t))
		if err != nil {
			t.Fatalf("ReportToText failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"Batch: batch-1 (import)",
			"Playlist: 2024 01 January (created, added 1, now 1 tracks)",
			"Status: partial",
			"Tracks: 1 of 2 resolved (50.0%)",
			"Duration: 1m35s",
			"2. Manatee Commune - Blueberry (s)",
			"source: /import/blueberry.mp3",
			`tried: "Blueberry s", "Blueberry"`,
			"candidate x9: /music/Other/Blueberry Pie.mp3",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected text report to contain %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "1. Cavetown") {
			t.Errorf("expected resolved tracks to be omitted, got:\n%s", output)
		}
	})

	t.Run("ReportToText without failures", func(t *testing.T) {
		result := sampleResult(t)
		result.Outcomes = result.Outcomes[:1]

		data, err := ReportToText(result)
		if err != nil {
			t.Fatalf("ReportToText failed: %v", err)
		}
		if strings.Contains(string(data), "Unresolved") {
			t.Errorf("expected no unresolved section, got:\n%s", data)
		}
	})

	t.Run("ReportToText for a stopped batch", func(t *testing.T) {
		result := sampleResult(t)
		result.PlaylistID = ""
		result.Err = fmt.Errorf("%w: refused", shared.ErrServiceUnavailable)

		data, err := ReportToText(result)
		if err != nil {
			t.Fatalf("ReportToText failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "(not written)") || !strings.Contains(output, "Error: service unavailable") {
			t.Errorf("expected stopped batch details, got:\n%s", output)
		}
	})

	t.Run("ReportToMarkdown", func(t *testing.T) {
		data, err := ReportToMarkdown(sampleResult(t))
		if err != nil {
			t.Fatalf("ReportToMarkdown failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# 2024 01 January",
			"| Status | **partial** |",
			"## Unresolved",
			"2. **Manatee Commune - Blueberry (s)** (`no_match`)",
			"## Resolved",
			"1. Cavetown - Home (Lemon Boy) [`id1`]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected markdown report to contain %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ReportToCSV", func(t *testing.T) {
		data, err := ReportToCSV(sampleResult(t))
		if err != nil {
			t.Fatalf("ReportToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("failed to parse CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header and 2 rows, got %d", len(records))
		}
		if records[0][0] != "Position" || records[0][10] != "Terms" {
			t.Errorf("unexpected headers %v", records[0])
		}
		if records[1][1] != "resolved" || records[1][7] != "id1" {
			t.Errorf("unexpected resolved row %v", records[1])
		}
		if records[2][8] != "no_match" || records[2][10] != "Blueberry s | Blueberry" {
			t.Errorf("unexpected failed row %v", records[2])
		}
	})

	t.Run("ReportToJSON", func(t *testing.T) {
		data, err := ReportToJSON(sampleResult(t))
		if err != nil {
			t.Fatalf("ReportToJSON failed: %v", err)
		}

		var report batchReport
		if err := json.Unmarshal(data, &report); err != nil {
			t.Fatalf("failed to parse JSON: %v", err)
		}
		if report.Status != "partial" || report.Total != 2 || report.Failed != 1 {
			t.Errorf("unexpected summary %+v", report)
		}
		if report.DurationSeconds != 95 {
			t.Errorf("expected 95 seconds, got %v", report.DurationSeconds)
		}
		if len(report.Tracks) != 2 || len(report.Tracks[1].Candidates) != 1 {
			t.Fatalf("expected candidates on the failed track, got %+v", report.Tracks)
		}
		if report.Tracks[0].LibraryPath != "/music/Cavetown/Lemon Boy/home.mp3" {
			t.Errorf("unexpected library path %q", report.Tracks[0].LibraryPath)
		}
	})
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()

	for _, format := range Formats {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(dir, "report."+string(format))
			if err := WriteReport(sampleResult(t), path, format); err != nil {
				t.Fatalf("WriteReport failed: %v", err)
			}
			if content := th.MustReadFile(t, path); !strings.Contains(content, "Blueberry") {
				t.Errorf("expected report to mention Blueberry, got:\n%s", content)
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		err := WriteReport(sampleResult(t), filepath.Join(dir, "report.x"), Format("x"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		th.AssertNotExists(t, filepath.Join(dir, "report.x"))
	})

	t.Run("unwritable path", func(t *testing.T) {
		if err := WriteReport(sampleResult(t), filepath.Join(dir, "missing", "report.txt"), FormatText); err == nil {
			t.Error("expected error for a missing directory")
		}
	})
}

func TestHistoryTable(t *testing.T) {
	finished := started.Add(2 * time.Minute)
	batch := models.NewBatchRun("b1", models.ModeImport, "2024 01 January", started)
	batch.SetSequence(7)
	batch.Status = models.BatchSucceeded
	batch.Total, batch.Resolved = 12, 12
	batch.FinalCount = 1234
	batch.FinishedAt = &finished

	output := string(HistoryTable([]*models.BatchRun{batch}, started.Add(3*time.Hour)))

	for _, want := range []string{"#", "STARTED", "7", "3 hours ago", "2024 01 January", "succeeded", "12/12", "1,234", "2m0s"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected table to contain %q, got:\n%s", want, output)
		}
	}
}

func TestOutcomeList(t *testing.T) {
	outcomes := []*models.TrackOutcomeRecord{
		{Position: 0, Title: "Home", Artist: "Cavetown", RemoteID: "id1", Status: models.OutcomeResolved},
		{Position: 1, SourcePath: "/import/x.mp3", Status: models.OutcomeFailed, ErrorKind: "filing_failed", Error: "filing failed: bad tags"},
	}

	output := string(OutcomeList(outcomes))
	for _, want := range []string{"1. ok    Cavetown - Home [id1]", "2. FAIL  /import/x.mp3 (filing_failed)", "filing failed: bad tags"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected list to contain %q, got:\n%s", want, output)
		}
	}
}
