package perception

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// ErrDetectionFailed is returned by carriers when no snapshot could be
// produced. Callers absorb it and fall back to the unknown context.
var ErrDetectionFailed = errors.New("context detection failed")

// DetectOptions tune a single pull detection.
type DetectOptions struct {
	// CaptureSelectedText asks the carrier to include the current text
	// selection. Selection capture is invasive on some platforms, so it is
	// opt-in.
	CaptureSelectedText bool
	// RefreshRate hints how stale a cached snapshot may be before the
	// carrier must re-detect. Zero means always fresh.
	RefreshRate time.Duration
}

// Detector is the pull side of context sensing. DetectContext returns a
// fresh immutable snapshot of the foreground application.
type Detector interface {
	DetectContext(ctx context.Context, opts DetectOptions) (*ApplicationContext, error)
}

// ===== PROCESS CLASSIFICATION =====

// processTable maps lowercase process names (extension stripped) to app
// types. Derived from the watcher's platform probes plus the usual suspects
// per platform.
var processTable = map[string]AppType{
	// Browsers
	"chrome":  AppBrowser,
	"msedge":  AppBrowser,
	"firefox": AppBrowser,
	"brave":   AppBrowser,
	"opera":   AppBrowser,
	"safari":  AppBrowser,
	"vivaldi": AppBrowser,

	// Code editors and IDEs
	"code":         AppCodeEditor,
	"cursor":       AppCodeEditor,
	"zed":          AppCodeEditor,
	"sublime_text": AppCodeEditor,
	"idea64":       AppCodeEditor,
	"goland64":     AppCodeEditor,
	"pycharm64":    AppCodeEditor,
	"webstorm64":   AppCodeEditor,

	// Office
	"winword":  AppOfficeWord,
	"excel":    AppOfficeExcel,
	"powerpnt": AppOfficePowerPoint,

	// Mail
	"outlook":     AppEmail,
	"thunderbird": AppEmail,

	// PDF readers
	"acrord32":    AppPDFReader,
	"acrobat":     AppPDFReader,
	"sumatrapdf":  AppPDFReader,
	"foxitreader": AppPDFReader,
	"evince":      AppPDFReader,
	"okular":      AppPDFReader,

	// File managers
	"explorer": AppFileExplorer,
	"nautilus": AppFileExplorer,
	"dolphin":  AppFileExplorer,
	"thunar":   AppFileExplorer,
	"finder":   AppFileExplorer,

	// Terminals
	"windowsterminal": AppTerminal,
	"wt":              AppTerminal,
	"cmd":             AppTerminal,
	"powershell":      AppTerminal,
	"pwsh":            AppTerminal,
	"alacritty":       AppTerminal,
	"kitty":           AppTerminal,
	"konsole":         AppTerminal,
	"gnome-terminal":  AppTerminal,
	"iterm2":          AppTerminal,
	"wezterm":         AppTerminal,

	// Plain text editors
	"notepad":   AppTextEditor,
	"notepad++": AppTextEditor,
	"gedit":     AppTextEditor,
	"textedit":  AppTextEditor,
	"kate":      AppTextEditor,

	// Chat
	"slack":    AppChat,
	"discord":  AppChat,
	"teams":    AppChat,
	"telegram": AppChat,
	"signal":   AppChat,
}

// friendlyNames overrides the display name for processes whose binary name
// is not what users call the application.
var friendlyNames = map[string]string{
	"chrome":          "Google Chrome",
	"msedge":          "Microsoft Edge",
	"firefox":         "Firefox",
	"code":            "Visual Studio Code",
	"cursor":          "Cursor",
	"winword":         "Microsoft Word",
	"excel":           "Microsoft Excel",
	"powerpnt":        "Microsoft PowerPoint",
	"outlook":         "Microsoft Outlook",
	"explorer":        "File Explorer",
	"windowsterminal": "Windows Terminal",
	"notepad":         "Notepad",
	"slack":           "Slack",
	"discord":         "Discord",
}

// normalizeProcess lowercases a process name and strips any directory part
// and executable extension.
func normalizeProcess(process string) string {
	base := filepath.Base(strings.ReplaceAll(process, "\\", "/"))
	base = strings.ToLower(base)
	base = strings.TrimSuffix(base, ".exe")
	base = strings.TrimSuffix(base, ".app")
	return base
}

// ClassifyProcess maps a process name to an application type. Unmatched
// processes classify as unknown.
func ClassifyProcess(process string) AppType {
	if t, ok := processTable[normalizeProcess(process)]; ok {
		return t
	}
	return AppUnknown
}

// DisplayName returns the user-facing application name for a process.
func DisplayName(process string) string {
	key := normalizeProcess(process)
	if name, ok := friendlyNames[key]; ok {
		return name
	}
	if key == "" {
		return "unknown"
	}
	return key
}

// ===== WINDOW TITLE PARSING =====

// languageByExt maps file extensions to editor language names.
var languageByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".jsx":  "javascript",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cs":   "csharp",
	".rb":   "ruby",
	".php":  "php",
	".sh":   "shell",
	".sql":  "sql",
	".html": "html",
	".css":  "css",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".md":   "markdown",
}

// LanguageForFile guesses the programming language from a file name.
func LanguageForFile(name string) string {
	return languageByExt[strings.ToLower(filepath.Ext(name))]
}

// parseVariant builds a best-effort variant payload from the window title.
// Editors and browsers encode useful detail there ("main.go - glance -
// Visual Studio Code", "Page Title - Google Chrome"); everything else keeps
// a nil or empty payload until a richer probe fills it in.
func parseVariant(appType AppType, title string) Variant {
	parts := splitTitle(title)

	switch appType {
	case AppBrowser:
		v := &BrowserVariant{}
		if len(parts) >= 2 {
			// Last segment is the browser name.
			v.Title = strings.Join(parts[:len(parts)-1], " - ")
		} else {
			v.Title = title
		}
		return v

	case AppCodeEditor:
		v := &EditorVariant{}
		if len(parts) > 0 {
			// Unsaved-changes marker.
			first := strings.TrimPrefix(parts[0], "● ")
			first = strings.TrimSpace(first)
			if strings.Contains(first, ".") {
				v.FileName = first
				v.Language = LanguageForFile(first)
			}
		}
		return v

	case AppOfficeWord, AppOfficeExcel, AppOfficePowerPoint:
		v := &OfficeVariant{}
		if len(parts) > 0 {
			v.DocumentName = parts[0]
		}
		return v

	case AppFileExplorer:
		return &FileExplorerVariant{CurrentPath: strings.TrimSpace(title)}

	case AppTerminal:
		v := &TerminalVariant{}
		// "user@host: ~/dir" is the common shell title form.
		if i := strings.Index(title, ": "); i >= 0 && strings.Contains(title[:i], "@") {
			v.CurrentDirectory = strings.TrimSpace(title[i+2:])
		}
		return v
	}
	return nil
}

func splitTitle(title string) []string {
	raw := strings.Split(title, " - ")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// variantHasDetail reports whether the payload carries anything beyond the
// window title itself. Used to grade detection confidence.
func variantHasDetail(v Variant) bool {
	switch p := v.(type) {
	case *BrowserVariant:
		return p != nil && (p.URL != "" || p.Title != "")
	case *EditorVariant:
		return p != nil && (p.FilePath != "" || p.FileName != "")
	case *OfficeVariant:
		return p != nil && (p.DocumentPath != "" || p.DocumentName != "")
	case *FileExplorerVariant:
		return p != nil && p.CurrentPath != ""
	case *TerminalVariant:
		return p != nil && (p.CurrentDirectory != "" || p.LastCommand != "")
	}
	return false
}

// FromWindow builds a snapshot from raw window facts. Confidence grading:
// a recognized application with variant detail scores 0.9, a recognized
// application alone 0.7, anything unrecognized 0.
func FromWindow(process, windowTitle string) *ApplicationContext {
	appType := ClassifyProcess(process)
	snap := &ApplicationContext{
		Type:        appType,
		Name:        DisplayName(process),
		Executable:  process,
		WindowTitle: windowTitle,
		Timestamp:   time.Now(),
	}
	if appType == AppUnknown {
		return snap
	}

	snap.Variant = parseVariant(appType, windowTitle)
	if variantHasDetail(snap.Variant) {
		snap.Confidence = 0.9
	} else {
		snap.Confidence = 0.7
	}
	return snap
}

// ===== STATIC DETECTOR =====

// StaticDetector serves a fixed snapshot. It backs tests and the CLI's
// --app flag, where the caller already knows what context to simulate.
type StaticDetector struct {
	snapshot *ApplicationContext
}

// NewStaticDetector wraps a snapshot in a Detector. A nil snapshot makes
// every detection fail.
func NewStaticDetector(snapshot *ApplicationContext) *StaticDetector {
	return &StaticDetector{snapshot: snapshot}
}

// DetectContext returns a copy of the fixed snapshot with a fresh
// timestamp. Without CaptureSelectedText the selection fields are dropped.
func (d *StaticDetector) DetectContext(_ context.Context, opts DetectOptions) (*ApplicationContext, error) {
	if d.snapshot == nil {
		return nil, ErrDetectionFailed
	}

	snap := *d.snapshot
	snap.Timestamp = time.Now()
	if !opts.CaptureSelectedText {
		snap.SelectedText = ""
		switch v := snap.Variant.(type) {
		case *BrowserVariant:
			stripped := *v
			stripped.SelectedText = ""
			snap.Variant = &stripped
		case *EditorVariant:
			stripped := *v
			stripped.SelectedCode = ""
			snap.Variant = &stripped
		case *OfficeVariant:
			stripped := *v
			stripped.SelectedText = ""
			snap.Variant = &stripped
		}
	}
	return &snap, nil
}
