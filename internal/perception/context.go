// Package perception models what the user is looking at: the foreground
// application, its window, and whatever variant detail the platform watcher
// managed to pull out of it (URL, open file, document, shell state).
//
// The core never inspects windows itself. Snapshots arrive from external
// carriers (a pull Detector or a push Feed) and are treated as immutable
// once constructed.
package perception

import (
	"encoding/json"
	"fmt"
	"time"
)

// AppType classifies the foreground application.
type AppType string

const (
	AppBrowser          AppType = "browser"
	AppCodeEditor       AppType = "code-editor"
	AppOfficeWord       AppType = "office-word"
	AppOfficeExcel      AppType = "office-excel"
	AppOfficePowerPoint AppType = "office-powerpoint"
	AppEmail            AppType = "email"
	AppPDFReader        AppType = "pdf-reader"
	AppFileExplorer     AppType = "file-explorer"
	AppTerminal         AppType = "terminal"
	AppTextEditor       AppType = "text-editor"
	AppChat             AppType = "chat"
	AppUnknown          AppType = "unknown"
)

// AllAppTypes lists every known application type, unknown last.
var AllAppTypes = []AppType{
	AppBrowser, AppCodeEditor, AppOfficeWord, AppOfficeExcel,
	AppOfficePowerPoint, AppEmail, AppPDFReader, AppFileExplorer,
	AppTerminal, AppTextEditor, AppChat, AppUnknown,
}

// Valid reports whether t is one of the known application types.
func (t AppType) Valid() bool {
	for _, known := range AllAppTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsOffice reports whether t is one of the office document types.
func (t AppType) IsOffice() bool {
	return t == AppOfficeWord || t == AppOfficeExcel || t == AppOfficePowerPoint
}

// ===== VARIANT PAYLOADS =====

// Variant carries the per-application detail of a context snapshot. Exactly
// one concrete payload type exists per application family; the unexported
// marker keeps the set closed so switches over it stay exhaustive.
type Variant interface {
	isVariant()
}

// BrowserVariant describes the active browser tab.
type BrowserVariant struct {
	URL          string `json:"url,omitempty"`
	Title        string `json:"title,omitempty"`
	SelectedText string `json:"selectedText,omitempty"`
}

// EditorVariant describes the file open in a code editor.
type EditorVariant struct {
	FilePath     string `json:"filePath,omitempty"`
	FileName     string `json:"fileName,omitempty"`
	Language     string `json:"language,omitempty"`
	SelectedCode string `json:"selectedCode,omitempty"`
	ProjectPath  string `json:"projectPath,omitempty"`
}

// OfficeVariant describes the active office document. CurrentSlide is only
// meaningful for presentations, ActiveCell only for spreadsheets.
type OfficeVariant struct {
	DocumentPath string `json:"documentPath,omitempty"`
	DocumentName string `json:"documentName,omitempty"`
	SelectedText string `json:"selectedText,omitempty"`
	CurrentSlide int    `json:"currentSlide,omitempty"`
	ActiveCell   string `json:"activeCell,omitempty"`
}

// FileExplorerVariant describes the folder open in a file manager.
type FileExplorerVariant struct {
	CurrentPath   string   `json:"currentPath,omitempty"`
	SelectedFiles []string `json:"selectedFiles,omitempty"`
}

// TerminalVariant describes the state of a terminal window.
type TerminalVariant struct {
	CurrentDirectory string `json:"currentDirectory,omitempty"`
	LastCommand      string `json:"lastCommand,omitempty"`
	ShellType        string `json:"shellType,omitempty"`
}

func (*BrowserVariant) isVariant()      {}
func (*EditorVariant) isVariant()       {}
func (*OfficeVariant) isVariant()       {}
func (*FileExplorerVariant) isVariant() {}
func (*TerminalVariant) isVariant()     {}

// ===== APPLICATION CONTEXT =====

// ApplicationContext is a snapshot of the foreground application at a point
// in time. Snapshots are immutable: carriers build a fresh value per
// detection and consumers never write back into one.
type ApplicationContext struct {
	Type         AppType   `json:"type"`
	Name         string    `json:"name"`
	Executable   string    `json:"executable,omitempty"`
	WindowTitle  string    `json:"windowTitle,omitempty"`
	Variant      Variant   `json:"-"`
	SelectedText string    `json:"selectedText,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Confidence   float64   `json:"confidence"`
}

// Browser returns the browser payload, or nil when the snapshot carries a
// different variant.
func (c *ApplicationContext) Browser() *BrowserVariant {
	v, _ := c.Variant.(*BrowserVariant)
	return v
}

// Editor returns the code editor payload, or nil.
func (c *ApplicationContext) Editor() *EditorVariant {
	v, _ := c.Variant.(*EditorVariant)
	return v
}

// Office returns the office document payload, or nil.
func (c *ApplicationContext) Office() *OfficeVariant {
	v, _ := c.Variant.(*OfficeVariant)
	return v
}

// FileExplorer returns the file manager payload, or nil.
func (c *ApplicationContext) FileExplorer() *FileExplorerVariant {
	v, _ := c.Variant.(*FileExplorerVariant)
	return v
}

// Terminal returns the terminal payload, or nil.
func (c *ApplicationContext) Terminal() *TerminalVariant {
	v, _ := c.Variant.(*TerminalVariant)
	return v
}

// Unknown builds the null snapshot used when detection fails or no watcher
// is attached: type unknown, confidence zero, current timestamp.
func Unknown() *ApplicationContext {
	return &ApplicationContext{
		Type:       AppUnknown,
		Name:       "unknown",
		Timestamp:  time.Now(),
		Confidence: 0,
	}
}

// ===== JSON ENCODING =====

// wireContext is the JSON shape of a snapshot. The variant travels under a
// per-family key so the payload type is recoverable without a type tag on
// the payload itself.
type wireContext struct {
	Type         AppType              `json:"type"`
	Name         string               `json:"name"`
	Executable   string               `json:"executable,omitempty"`
	WindowTitle  string               `json:"windowTitle,omitempty"`
	Browser      *BrowserVariant      `json:"browserContext,omitempty"`
	Editor       *EditorVariant       `json:"editorContext,omitempty"`
	Office       *OfficeVariant       `json:"officeContext,omitempty"`
	FileExplorer *FileExplorerVariant `json:"fileExplorerContext,omitempty"`
	Terminal     *TerminalVariant     `json:"terminalContext,omitempty"`
	SelectedText string               `json:"selectedText,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
	Confidence   float64              `json:"confidence"`
}

// MarshalJSON encodes the snapshot with its variant under the matching
// per-family key.
func (c *ApplicationContext) MarshalJSON() ([]byte, error) {
	w := wireContext{
		Type:         c.Type,
		Name:         c.Name,
		Executable:   c.Executable,
		WindowTitle:  c.WindowTitle,
		SelectedText: c.SelectedText,
		Timestamp:    c.Timestamp,
		Confidence:   c.Confidence,
	}
	switch v := c.Variant.(type) {
	case nil:
	case *BrowserVariant:
		w.Browser = v
	case *EditorVariant:
		w.Editor = v
	case *OfficeVariant:
		w.Office = v
	case *FileExplorerVariant:
		w.FileExplorer = v
	case *TerminalVariant:
		w.Terminal = v
	default:
		return nil, fmt.Errorf("unhandled context variant %T", c.Variant)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a snapshot, picking the variant from whichever
// per-family key is present. When several are present the one matching the
// declared type wins.
func (c *ApplicationContext) UnmarshalJSON(data []byte) error {
	var w wireContext
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Type = w.Type
	c.Name = w.Name
	c.Executable = w.Executable
	c.WindowTitle = w.WindowTitle
	c.SelectedText = w.SelectedText
	c.Timestamp = w.Timestamp
	c.Confidence = w.Confidence
	if c.Type == "" {
		c.Type = AppUnknown
	}

	switch {
	case c.Type == AppBrowser && w.Browser != nil:
		c.Variant = w.Browser
	case c.Type == AppCodeEditor && w.Editor != nil:
		c.Variant = w.Editor
	case c.Type.IsOffice() && w.Office != nil:
		c.Variant = w.Office
	case c.Type == AppFileExplorer && w.FileExplorer != nil:
		c.Variant = w.FileExplorer
	case c.Type == AppTerminal && w.Terminal != nil:
		c.Variant = w.Terminal
	case w.Browser != nil:
		c.Variant = w.Browser
	case w.Editor != nil:
		c.Variant = w.Editor
	case w.Office != nil:
		c.Variant = w.Office
	case w.FileExplorer != nil:
		c.Variant = w.FileExplorer
	case w.Terminal != nil:
		c.Variant = w.Terminal
	default:
		c.Variant = nil
	}
	return nil
}
