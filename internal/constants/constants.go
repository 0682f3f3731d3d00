package constants

// Log field names
const (
	LOG_REQUEST_ID = "request_id"
	LOG_METHOD     = "method"
	LOG_URI        = "uri"
	LOG_USER_AGENT = "user_agent"
	LOG_REMOTE_ADR = "remote_addr"
	LOG_USER       = "remote_user"
	LOG_REFERER    = "referer"
	LOG_RUN_ID     = "run_id"
	LOG_BACKEND    = "backend"
)

// Path and query parameters of the local API
const (
	PATH_PARAMETER_RUN_ID   = "run_id"
	QUERY_PARAMETER_LIMIT   = "limit"
	QUERY_PARAMETER_OFFSET  = "offset"
	QUERY_PARAMETER_STATE   = "state"
	QUERY_PARAMETER_QUERY   = "query"
	QUERY_PARAMETER_HISTORY = "history"
	QUERY_PARAMETER_USE_RAG = "use_rag"
)

const (
	EnvVarTerminationFile = "TERMINATION_FILE"

	// DefaultPageLimit is used when the limit query parameter is missing
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)
