package routing

import (
	"glance/internal/perception"
	"glance/internal/template"
)

// allAppTypes is used by the content rules, which apply regardless of
// which application is in front.
var allAppTypes = perception.AllAppTypes

// defaultRules is the built-in routing table. Content predicates sit above
// the pure app-type rules so that, say, a math worksheet in a browser still
// routes to the math template. Priorities feed the confidence formula, so
// they double as a confidence statement about each signal.
func defaultRules() []Rule {
	return []Rule{
		{
			AppTypes:   allAppTypes,
			Condition:  hasMathContent,
			TemplateID: template.Math,
			Priority:   120,
			Reason:     "math content detected",
		},
		{
			AppTypes:   allAppTypes,
			Condition:  hasAcademicContent,
			TemplateID: template.Academic,
			Priority:   110,
			Reason:     "academic content detected",
		},
		{
			AppTypes:   allAppTypes,
			Condition:  hasCodeContent,
			TemplateID: template.Technical,
			Priority:   100,
			Reason:     "code content detected",
		},
		{
			AppTypes:   []perception.AppType{perception.AppCodeEditor},
			TemplateID: template.Technical,
			Priority:   90,
			Reason:     "code editor active",
		},
		{
			AppTypes:   []perception.AppType{perception.AppOfficeWord},
			TemplateID: template.Document,
			Priority:   80,
			Reason:     "word processor active",
		},
		{
			AppTypes:   []perception.AppType{perception.AppOfficeExcel},
			TemplateID: template.Spreadsheet,
			Priority:   80,
			Reason:     "spreadsheet active",
		},
		{
			AppTypes:   []perception.AppType{perception.AppOfficePowerPoint},
			TemplateID: template.Presentation,
			Priority:   80,
			Reason:     "presentation active",
		},
		{
			AppTypes:   []perception.AppType{perception.AppEmail},
			TemplateID: template.Email,
			Priority:   75,
			Reason:     "email client active",
		},
		{
			AppTypes:   []perception.AppType{perception.AppPDFReader},
			TemplateID: template.Document,
			Priority:   70,
			Reason:     "pdf reader active",
		},
		{
			AppTypes:   []perception.AppType{perception.AppTerminal},
			TemplateID: template.Shell,
			Priority:   65,
			Reason:     "terminal active",
		},
		{
			AppTypes:   []perception.AppType{perception.AppBrowser},
			TemplateID: template.Web,
			Priority:   60,
			Reason:     "browser active",
		},
		{
			AppTypes:   []perception.AppType{perception.AppFileExplorer},
			TemplateID: template.Files,
			Priority:   60,
			Reason:     "file manager active",
		},
		{
			AppTypes:   []perception.AppType{perception.AppTextEditor},
			TemplateID: template.General,
			Priority:   50,
			Reason:     "text editor active",
		},
		{
			AppTypes:   []perception.AppType{perception.AppChat},
			TemplateID: template.General,
			Priority:   40,
			Reason:     "chat app active",
		},
	}
}
