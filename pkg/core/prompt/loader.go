package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// LoadFromDirectory registers every prompt found under baseDir/prompts,
// replacing built-ins with the same ID. It returns the number of files loaded.
// Expected structure:
//
//	baseDir/
//	  prompts/
//	    extraction/
//	      fields.json
//	    search/
//	      catalog.json
func (r *Registry) LoadFromDirectory(baseDir string) (int, error) {
	dir := filepath.Join(baseDir, "prompts")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, fmt.Errorf("prompts directory not found: %s", dir)
	}

	loaded := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip directories and non-JSON files
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var pt PromptTemplate
		if err := json.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		// Auto-generate ID from path if not specified
		if pt.ID == "" {
			pt.ID = generateIDFromPath(path, dir)
		}
		if pt.Category == "" {
			pt.Category = detectCategory(path, dir)
		}

		// A file may override only one of the two templates.
		if existing, err := r.GetPrompt(pt.ID); err == nil {
			if pt.SystemPrompt == "" {
				pt.SystemPrompt = existing.SystemPrompt
			}
			if pt.UserPromptTmpl == "" {
				pt.UserPromptTmpl = existing.UserPromptTmpl
			}
			if len(pt.Variables) == 0 {
				pt.Variables = existing.Variables
			}
		}

		if err := r.Register(&pt); err != nil {
			return fmt.Errorf("failed to register %s: %w", pt.ID, err)
		}
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("failed to load prompts: %w", err)
	}
	return loaded, nil
}

// generateIDFromPath creates a prompt ID from the file path
// e.g., "prompts/extraction/fields.json" -> "extraction.fields"
func generateIDFromPath(path string, baseDir string) string {
	relPath, _ := filepath.Rel(baseDir, path)
	relPath = strings.TrimSuffix(relPath, ".json")
	return strings.ReplaceAll(relPath, string(filepath.Separator), ".")
}

// detectCategory extracts the category from the folder structure
func detectCategory(path string, baseDir string) string {
	relPath, _ := filepath.Rel(baseDir, path)
	parts := strings.Split(relPath, string(filepath.Separator))
	if len(parts) > 1 {
		return parts[0]
	}
	return "default"
}

// RenderUserPrompt executes the user prompt template with the given context
func RenderUserPrompt(pt *PromptTemplate, ctx *PromptExecutionContext) (string, error) {
	return execute(pt.ID, pt.UserPromptTmpl, ctx)
}

func execute(name, body string, ctx *PromptExecutionContext) (string, error) {
	if body == "" {
		return "", nil
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx.Variables); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
