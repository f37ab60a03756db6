package constants

// Tool names. The set is closed: the catalog may only describe these tools.
const (
	ToolSocraticDialogue     = "socratic_dialogue"
	ToolLearningPath         = "generate_learning_path"
	ToolConceptPrerequisites = "map_concept_prerequisites"
	ToolKnowledgeGaps        = "assess_knowledge_gaps"
	ToolCodeReview           = "review_code"
	ToolPracticeProblems     = "generate_practice_problems"
	ToolResearchPaper        = "summarize_research_paper"
	ToolStudySchedule        = "create_study_schedule"
	ToolNewsNewsletter       = "generate_news_newsletter"
)

// ToolNames lists every known tool in registration order.
var ToolNames = []string{
	ToolSocraticDialogue,
	ToolLearningPath,
	ToolConceptPrerequisites,
	ToolKnowledgeGaps,
	ToolCodeReview,
	ToolPracticeProblems,
	ToolResearchPaper,
	ToolStudySchedule,
	ToolNewsNewsletter,
}

// Server transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Idempotency cache key strategies.
const (
	CacheKeyStrategyAuto          = "auto"
	CacheKeyStrategyCorrelationID = "correlation_id"
	CacheKeyStrategyArgumentsHash = "arguments_hash"
)

// Capability names reported in error payloads.
const (
	CapabilityModel = "model"
	CapabilityNews  = "news"
)
