package usecase

import (
	"errors"
	"fmt"

	"github.com/saralhq/saral/internal/core/domain"
	"github.com/saralhq/saral/internal/core/ports"
)

// analysisPlan pairs the prompt with the response schema for one category.
// The schema is authoritative for which optional document fields may be
// populated by the run.
type analysisPlan struct {
	prompt string
	schema ports.JSONSchema
}

// extractionSchema requests a single text_content field from the gateway's
// structured extraction endpoint.
func extractionSchema() ports.JSONSchema {
	return ports.JSONSchema{
		"type": "object",
		"properties": map[string]any{
			"text_content": map[string]any{
				"type":        "string",
				"description": "Extracted text content from the document",
			},
		},
	}
}

// buildAnalysisPlan maps a category to its prompt template and response
// schema. The mapping is closed over the category enumeration; an unknown
// category is an input error, never a silent fallback.
func buildAnalysisPlan(category domain.Category, language domain.Language, text string) (analysisPlan, error) {
	langName := language.DisplayName()

	switch category {
	case domain.CategoryMedical:
		return analysisPlan{
			prompt: fmt.Sprintf(`You are an expert medical document analyst. Analyze this medical document for a common person and provide:
1. A clear, simple summary in %s.
2. 3-5 key bullet points highlighting the most important information.
3. An estimated severity percentage with a brief explanation (e.g., "Severity: 75%% - High. This indicates a condition that requires prompt medical attention.").
4. Practical, safe, and clear next steps for the user. IMPORTANT: Always advise the user to consult a qualified medical professional and that this is not a substitute for professional medical advice.

Document content:
%s

Make the language extremely simple and accessible. Avoid technical jargon.`, langName, text),
			schema: ports.JSONSchema{
				"type": "object",
				"properties": map[string]any{
					"simplified_summary": map[string]any{"type": "string"},
					"key_points":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"medical_severity": map[string]any{
						"type":        "string",
						"description": "The estimated severity, including percentage and a short description.",
					},
					"suggested_next_steps": map[string]any{
						"type":        "string",
						"description": "Clear next steps for the user, including consulting a doctor.",
					},
				},
			},
		}, nil

	case domain.CategoryLegal:
		return analysisPlan{
			prompt: fmt.Sprintf(`You are an expert legal document analyst. Analyze this legal document for a common person and provide:
1. A clear, simple summary in %s.
2. 3-5 key bullet points highlighting the most important information.
3. A summary of potentially applicable rights, laws, or legal sections relevant to the document's content.
4. Practical next steps the user might consider. IMPORTANT: Always include a disclaimer that you are an AI assistant, not a lawyer, and the user should consult with a qualified legal professional for advice.

Document content:
%s

Make the language extremely simple and accessible. Avoid technical jargon.`, langName, text),
			schema: ports.JSONSchema{
				"type": "object",
				"properties": map[string]any{
					"simplified_summary": map[string]any{"type": "string"},
					"key_points":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"legal_rights_summary": map[string]any{
						"type":        "string",
						"description": "A summary of relevant rights and laws.",
					},
					"suggested_next_steps": map[string]any{
						"type":        "string",
						"description": "Suggested next steps, including consulting a lawyer.",
					},
				},
			},
		}, nil

	case domain.CategoryGovernment, domain.CategoryFinancial, domain.CategoryEmployment, domain.CategoryAcademic:
		return analysisPlan{
			prompt: fmt.Sprintf(`You are an expert document simplifier. Analyze this %s document and provide:
1. A clear, simple summary in %s
2. 3-5 key bullet points highlighting the most important information

Document content:
%s

Make the language simple and accessible for common people. Avoid technical jargon.`, category, langName, text),
			schema: ports.JSONSchema{
				"type": "object",
				"properties": map[string]any{
					"simplified_summary": map[string]any{"type": "string"},
					"key_points":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		}, nil

	default:
		return analysisPlan{}, domain.WrapError(
			domain.ErrInvalidInput,
			"build analysis plan",
			errors.New("unknown category: "+string(category)),
		)
	}
}
