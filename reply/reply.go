// Package reply carries structured result and error codes from the core to
// the transport layer. The core never produces user-facing strings; the
// dispatcher renders codes through the locale tables.
package reply

// Code identifies one renderable outcome.
type Code string

const (
	CodeAnswer    Code = "answer"
	CodeMediaFile Code = "media_file"

	CodeSessionCreated  Code = "session_created"
	CodeSessionSwitched Code = "session_switched"
	CodeSessionRenamed  Code = "session_renamed"
	CodeSessionDeleted  Code = "session_deleted"
	CodeSessionCleared  Code = "session_cleared"
	CodeSessionList     Code = "session_list"
	CodeSessionStats    Code = "session_stats"

	CodeInstructionSet     Code = "instruction_set"
	CodeInstructionShown   Code = "instruction_shown"
	CodeInstructionDeleted Code = "instruction_deleted"

	CodeModelStatus  Code = "model_status"
	CodeModelChanged Code = "model_changed"

	CodeErrNotFound          Code = "err_not_found"
	CodeErrAlreadyExists     Code = "err_already_exists"
	CodeErrInvalidName       Code = "err_invalid_name"
	CodeErrLastSession       Code = "err_last_session"
	CodeErrUnknownCapability Code = "err_unknown_capability"
	CodeErrAdminOnly         Code = "err_admin_only"
	CodeErrBackendFailed     Code = "err_backend_failed"
	CodeErrToolLoopExceeded  Code = "err_tool_loop_exceeded"
	CodeErrCancelled         Code = "err_cancelled"
	CodeErrInternal          Code = "err_internal"
	CodeErrUsage             Code = "err_usage"
)

// Reply is one outcome: a code plus named parameters for the renderer and,
// for media outcomes, a local file to upload.
type Reply struct {
	Code      Code
	Params    map[string]any
	MediaPath string
	MediaMIME string
}

func New(code Code, params map[string]any) Reply {
	return Reply{Code: code, Params: params}
}

func Text(code Code, text string) Reply {
	return Reply{Code: code, Params: map[string]any{"text": text}}
}
