package routing

import (
	"fmt"
	"net/url"
	"strings"

	"glance/internal/perception"
)

// Variables pulls the named substitution variables out of a context.
// app_name, window_title, and selected_text are always present; the rest
// depend on the variant.
func Variables(ctx *perception.ApplicationContext) map[string]string {
	vars := map[string]string{
		"app_name":      ctx.Name,
		"window_title":  ctx.WindowTitle,
		"selected_text": selectedText(ctx),
	}

	switch v := ctx.Variant.(type) {
	case *perception.BrowserVariant:
		vars["url"] = v.URL
		vars["domain"] = hostOf(v.URL)
		vars["page_title"] = v.Title

	case *perception.EditorVariant:
		vars["language"] = v.Language
		vars["file_name"] = v.FileName
		vars["file_path"] = v.FilePath
		vars["project_path"] = v.ProjectPath

	case *perception.OfficeVariant:
		vars["document_name"] = v.DocumentName
		vars["document_path"] = v.DocumentPath
		vars["document_type"] = officeType(ctx.Type)
		if v.CurrentSlide > 0 {
			vars["current_slide"] = fmt.Sprintf("%d", v.CurrentSlide)
		}
		if v.ActiveCell != "" {
			vars["active_cell"] = v.ActiveCell
		}

	case *perception.FileExplorerVariant:
		vars["current_path"] = v.CurrentPath
		vars["selected_files"] = strings.Join(v.SelectedFiles, ", ")

	case *perception.TerminalVariant:
		vars["current_directory"] = v.CurrentDirectory
		vars["last_command"] = v.LastCommand
		vars["shell_type"] = v.ShellType
	}

	return vars
}

// selectedText prefers the top-level selection and falls back to the
// variant's own selection field.
func selectedText(ctx *perception.ApplicationContext) string {
	if ctx.SelectedText != "" {
		return ctx.SelectedText
	}
	switch v := ctx.Variant.(type) {
	case *perception.BrowserVariant:
		return v.SelectedText
	case *perception.EditorVariant:
		return v.SelectedCode
	case *perception.OfficeVariant:
		return v.SelectedText
	}
	return ""
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}

func officeType(t perception.AppType) string {
	switch t {
	case perception.AppOfficeWord:
		return "word"
	case perception.AppOfficeExcel:
		return "excel"
	case perception.AppOfficePowerPoint:
		return "powerpoint"
	}
	return ""
}
