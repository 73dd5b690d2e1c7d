package client

// request is the wire request envelope. Only the fields relevant to the
// message type are populated.
type request struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
	Command  string `json:"command,omitempty"`
}

// Welcome is the banner the host sends on connect.
type Welcome struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	ServerTime string `json:"server_time"`
}

type AuthResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

type CommandResponse struct {
	Type       string `json:"type"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
}

type SystemInfoResponse struct {
	Type        string `json:"type"`
	Hostname    string `json:"hostname"`
	Platform    string `json:"platform"`
	GoVersion   string `json:"go_version"`
	CurrentTime string `json:"current_time"`
}

// ServerError is an error message returned by the host.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "server: " + e.Message }
