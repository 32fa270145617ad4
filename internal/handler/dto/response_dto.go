package dto

type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type APIErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func OK(data any) APIResponse {
	return APIResponse{Success: true, Data: data}
}

func OKWithMessage(data any, message string) APIResponse {
	return APIResponse{Success: true, Data: data, Message: message}
}
