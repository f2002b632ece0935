package handler

// successResponse is the canonical envelope for successful API responses.
type successResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func success(data any, message string) successResponse {
	return successResponse{Status: "success", Data: data, Message: message}
}
