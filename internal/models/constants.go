package models

// Document processing statuses.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// Source kinds accepted by the ingestion pipeline.
const (
	SourceFile  = "file"
	SourceURL   = "url"
	SourceVideo = "video"
	SourceText  = "text"
)

// Agent tool names. SynthesizeAnswer is a terminal signal, never an
// executed retrieval tool.
const (
	ToolSearchDocuments     = "search_documents"
	ToolGetDocumentSections = "get_document_sections"
	ToolVerifyInformation   = "verify_information"
	ToolSynthesizeAnswer    = "synthesize_answer"
)
