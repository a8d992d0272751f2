package agent

import "document-intel/internal/llm"

const planSystem = `You are a research assistant working over a user's documents.
Write a short plan (2-3 sentences) for how you would answer the question. Do not answer it yet.`

const toolChooserSystem = `You are gathering evidence from documents to answer a question.
Pick exactly one tool for the next step. Prefer search_documents for broad questions,
get_document_sections for topic- or chapter-level context, verify_information to check a
specific claim, and synthesize_answer once the evidence is sufficient.`

const reflectionSystem = `You assess evidence quality. Answer in one or two sentences.
Say "sufficient" only when the evidence can fully answer the question.`

const synthesisSystem = `You answer questions strictly from the numbered sources provided.
Cite sources inline as [1], [2] after the statements they support. If the sources only
partially cover the question, say what is missing.`

func toolDefs() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Name:        "search_documents",
			Description: "Broad semantic and keyword search across the documents.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Search query"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "get_document_sections",
			Description: "Topic-targeted retrieval with more chunks plus chapter-level context.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"topic": map[string]any{"type": "string", "description": "Topic or section to pull"},
				},
				"required": []string{"topic"},
			},
		},
		{
			Name:        "verify_information",
			Description: "Targeted retrieval to corroborate or refute a specific claim.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"claim": map[string]any{"type": "string", "description": "Claim to verify"},
				},
				"required": []string{"claim"},
			},
		},
		{
			Name:        "synthesize_answer",
			Description: "Stop gathering evidence and write the final answer now.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}
