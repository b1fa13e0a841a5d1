package response

// Response is the JSON envelope returned by every API handler.
type Response struct {
	Status string `json:"status"`
	Detail string `json:"error,omitempty"`
}

const (
	statusOK    = "OK"
	statusError = "Error"
)

func OK() Response {
	return Response{Status: statusOK}
}

func Error(msg string) Response {
	return Response{Status: statusError, Detail: msg}
}
