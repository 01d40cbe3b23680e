package export

import (
	"fmt"
	"time"

	"crewops/api/internal/catalog"
	"crewops/api/internal/guide"
)

// Service renders reconciled guide sections into a printable PDF.
type Service struct{}

// NewService creates a new export service
func NewService() *Service {
	return &Service{}
}

var categoryLabels = map[string]string{
	catalog.CategoryBefore: "Before the Session",
	catalog.CategoryDuring: "During the Session",
	catalog.CategoryAfter:  "After the Session",
}

// ExportGuide renders the given sections (already reconciled and ordered) as
// a PDF for the named activity.
func (s *Service) ExportGuide(activityName, generatedBy string, sections []guide.Section) (*Result, error) {
	data := TemplateData{
		ActivityName: activityName,
		GeneratedAt:  time.Now(),
		GeneratedBy:  generatedBy,
	}

	var current *TemplateCategory
	for _, section := range sections {
		label := categoryLabels[section.Category]
		if label == "" {
			label = section.Category
		}
		if current == nil || current.Label != label {
			data.Categories = append(data.Categories, TemplateCategory{Label: label})
			current = &data.Categories[len(data.Categories)-1]
		}
		color := section.Color
		if color == "" {
			color = "#999999"
		}
		current.Sections = append(current.Sections, TemplateSection{
			Title:     section.Title,
			Body:      section.Body,
			Color:     color,
			IsDefault: section.IsDefault,
			MediaRefs: section.MediaRefs,
		})
	}

	html, err := RenderGuideHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render guide template: %w", err)
	}

	return exportPDF(html, activityName+"-guide")
}
