package perception

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestApplicationContextJSONRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		snap *ApplicationContext
	}{
		{
			name: "browser",
			snap: &ApplicationContext{
				Type:        AppBrowser,
				Name:        "Google Chrome",
				Executable:  "chrome.exe",
				WindowTitle: "Go slices - Google Chrome",
				Variant: &BrowserVariant{
					URL:   "https://go.dev/blog/slices",
					Title: "Go slices",
				},
				Timestamp:  ts,
				Confidence: 0.9,
			},
		},
		{
			name: "editor",
			snap: &ApplicationContext{
				Type:        AppCodeEditor,
				Name:        "Visual Studio Code",
				WindowTitle: "main.go - glance - Visual Studio Code",
				Variant: &EditorVariant{
					FileName: "main.go",
					Language: "go",
				},
				Timestamp:  ts,
				Confidence: 0.9,
			},
		},
		{
			name: "office",
			snap: &ApplicationContext{
				Type: AppOfficePowerPoint,
				Name: "Microsoft PowerPoint",
				Variant: &OfficeVariant{
					DocumentName: "quarterly.pptx",
					CurrentSlide: 7,
				},
				Timestamp:  ts,
				Confidence: 0.9,
			},
		},
		{
			name: "file explorer",
			snap: &ApplicationContext{
				Type: AppFileExplorer,
				Name: "File Explorer",
				Variant: &FileExplorerVariant{
					CurrentPath:   `C:\Users\demo\Downloads`,
					SelectedFiles: []string{"a.pdf", "b.pdf"},
				},
				Timestamp:  ts,
				Confidence: 0.9,
			},
		},
		{
			name: "terminal",
			snap: &ApplicationContext{
				Type: AppTerminal,
				Name: "Windows Terminal",
				Variant: &TerminalVariant{
					CurrentDirectory: "~/src/glance",
					ShellType:        "pwsh",
				},
				Timestamp:  ts,
				Confidence: 0.9,
			},
		},
		{
			name: "no variant",
			snap: &ApplicationContext{
				Type:       AppUnknown,
				Name:       "unknown",
				Timestamp:  ts,
				Confidence: 0,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.snap)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var got ApplicationContext
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if diff := cmp.Diff(tc.snap, &got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnmarshalPicksVariantByType(t *testing.T) {
	// Both payload keys present: the one matching the declared type wins.
	raw := `{
		"type": "code-editor",
		"name": "Visual Studio Code",
		"editorContext": {"fileName": "lib.rs", "language": "rust"},
		"browserContext": {"title": "stale"},
		"timestamp": "2026-03-14T09:30:00Z",
		"confidence": 0.9
	}`

	var snap ApplicationContext
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ed := snap.Editor()
	if ed == nil {
		t.Fatalf("expected editor variant, got %T", snap.Variant)
	}
	if ed.FileName != "lib.rs" || ed.Language != "rust" {
		t.Errorf("wrong editor payload: %+v", ed)
	}
	if snap.Browser() != nil {
		t.Error("Browser() should be nil for an editor snapshot")
	}
}

func TestUnmarshalMissingTypeDefaultsUnknown(t *testing.T) {
	var snap ApplicationContext
	if err := json.Unmarshal([]byte(`{"name":"mystery","confidence":0.4}`), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Type != AppUnknown {
		t.Errorf("type = %q, want unknown", snap.Type)
	}
}

func TestUnknownSnapshot(t *testing.T) {
	snap := Unknown()
	if snap.Type != AppUnknown {
		t.Errorf("type = %q, want unknown", snap.Type)
	}
	if snap.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", snap.Confidence)
	}
	if snap.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestAppTypeValid(t *testing.T) {
	for _, at := range AllAppTypes {
		if !at.Valid() {
			t.Errorf("%q should be valid", at)
		}
	}
	if AppType("spreadsheet").Valid() {
		t.Error("unlisted type should be invalid")
	}
	if !AppOfficeExcel.IsOffice() || AppBrowser.IsOffice() {
		t.Error("IsOffice misclassifies")
	}
}
