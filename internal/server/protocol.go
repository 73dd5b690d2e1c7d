package server

// Wire protocol: newline-delimited JSON over a plain TCP connection.
// Every message carries a "type" field; the server answers each request with
// exactly one response message.

// Request is the envelope for all client messages. Unused fields stay empty
// depending on Type.
type Request struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
	Command  string `json:"command,omitempty"`
}

// Request types.
const (
	TypeAuth       = "auth"
	TypeCommand    = "command"
	TypeSystemInfo = "system_info"
)

// Welcome is pushed by the server immediately after accept.
type Welcome struct {
	Type       string `json:"type"` // "welcome"
	Message    string `json:"message"`
	ServerTime string `json:"server_time"`
}

type AuthResponse struct {
	Type    string `json:"type"` // "auth_response"
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

type CommandResponse struct {
	Type       string `json:"type"` // "command_response"
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
}

type SystemInfoResponse struct {
	Type        string `json:"type"` // "system_info_response"
	Hostname    string `json:"hostname"`
	Platform    string `json:"platform"`
	GoVersion   string `json:"go_version"`
	CurrentTime string `json:"current_time"`
}

type ErrorResponse struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

func errorMsg(msg string) ErrorResponse {
	return ErrorResponse{Type: "error", Message: msg}
}
