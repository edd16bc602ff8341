package model

// Envelope wraps every message sent to a subscriber.
type Envelope struct {
	Success      bool   `json:"success"`
	Data         any    `json:"data,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

func Success(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

func Failure(msg string) Envelope {
	return Envelope{Success: false, ErrorMessage: msg}
}
