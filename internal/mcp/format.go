package mcp

import (
	"fmt"
	"strings"

	"github.com/a3tai/mcp-affidavit/internal/assembly"
	"github.com/a3tai/mcp-affidavit/internal/publish"
)

func formatArtifact(a *publish.Artifact) string {
	text := fmt.Sprintf("Artifact: %s\n", a.Name)
	text += fmt.Sprintf("Content type: %s\n", a.ContentType)
	text += fmt.Sprintf("Size: %d bytes\n", a.Size)
	text += fmt.Sprintf("ID: %s\n", a.ID)
	if a.URL != "" {
		text += fmt.Sprintf("Download: %s\n", a.URL)
	}
	if a.Path != "" {
		text += fmt.Sprintf("Written to: %s\n", a.Path)
	}
	return text
}

func formatManifest(items []assembly.ManifestItem) string {
	if len(items) == 0 {
		return "Exhibits: none\n"
	}
	text := fmt.Sprintf("Exhibits (%d):\n", len(items))
	for _, item := range items {
		text += fmt.Sprintf("  %s. %s (%d bytes)\n", strings.ToUpper(item.Letter), item.Name, item.Size)
	}
	return text
}

func formatComposeResult(result *assembly.ComposeResult) string {
	text := "Editable affidavit assembled\n"
	text += fmt.Sprintf("Run: %s\n", result.RunID)
	text += formatArtifact(result.Artifact)
	text += formatManifest(result.Manifest)

	parts := make([]string, len(result.Sections))
	for i, sec := range result.Sections {
		parts[i] = sec.Template
		if sec.Letter != "" {
			parts[i] += " " + sec.Letter
		}
	}
	text += fmt.Sprintf("Sections: %s\n", strings.Join(parts, " -> "))
	text += fmt.Sprintf("Body elements: %d\n", result.Elements)
	return text
}

func formatPDFResult(result *assembly.PDFResult) string {
	text := "Fixed-layout affidavit assembled\n"
	text += fmt.Sprintf("Run: %s\n", result.RunID)
	text += formatArtifact(result.Artifact)
	text += formatManifest(result.Manifest)
	text += fmt.Sprintf("Pages: %d\n", result.Pages)

	text += "Page layout:\n"
	page := 1
	for _, sec := range result.Sections {
		label := sec.Kind
		if sec.Letter != "" {
			label += " " + sec.Letter
		}
		if sec.Name != "" {
			label += " (" + sec.Name + ")"
		}
		last := page + sec.Pages - 1
		if sec.Pages == 1 {
			text += fmt.Sprintf("  page %d: %s\n", page, label)
		} else {
			text += fmt.Sprintf("  pages %d-%d: %s\n", page, last, label)
		}
		page = last + 1
	}
	return text
}

func formatServerInfo(info *assembly.ServerInfo) string {
	text := fmt.Sprintf("%s v%s - Server Information\n", info.Name, info.Version)
	text += fmt.Sprintf("Template directory: %s\n", info.TemplateDir)
	text += fmt.Sprintf("Max exhibit size: %d MB\n", info.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("Exhibit label policy: %s\n", info.LabelPolicy)
	text += fmt.Sprintf("Artifact store: %s\n", info.Store)

	if info.ConverterAvailable {
		text += fmt.Sprintf("Converter: %s (available)\n", info.Converter)
	} else {
		text += fmt.Sprintf("Converter: %s (unavailable: %s)\n", info.Converter, info.ConverterError)
	}

	text += "\nTemplates:\n"
	for _, st := range info.Templates {
		status := "ok"
		if !st.Available {
			status = "missing: " + st.Error
		}
		text += fmt.Sprintf("  %s -> %s [%s]\n", st.ID, st.File, status)
		text += fmt.Sprintf("    placeholders: %s\n", strings.Join(st.Placeholders, ", "))
		if len(st.Undeclared) > 0 {
			text += fmt.Sprintf("    undeclared in manifest: %s\n", strings.Join(st.Undeclared, ", "))
		}
	}

	text += "\nOutputs:\n"
	text += fmt.Sprintf("  editable: %s\n", info.Outputs["editable"])
	text += fmt.Sprintf("  fixed layout: %s\n", info.Outputs["fixed_layout"])

	text += "\nTools:\n"
	text += fmt.Sprintf("  %s: editable .docx from the case record and exhibits\n", ToolComposeDocx)
	text += fmt.Sprintf("  %s: merged PDF from the case record and exhibits\n", ToolAssemblePDF)
	text += fmt.Sprintf("  %s: merged PDF with an uploaded .docx as the cover affidavit\n", ToolConvertUploaded)
	return text
}
