package result

// Response is the transport body for a Result.
type Response struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// Flash is the subset of a Result carried across a redirect.
type Flash struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// ToResponse returns the response body and the status code to send with it.
func (r Result) ToResponse() (Response, int) {
	return Response{
		Success: r.success,
		Data:    r.data,
		Message: r.message,
		Errors:  copyErrors(r.errors),
	}, r.statusCode
}

// ToFlatMap maps each failing field to its first message.
func (r Result) ToFlatMap() map[string]string {
	out := make(map[string]string, len(r.errors))
	for field, msgs := range r.errors {
		if len(msgs) > 0 {
			out[field] = msgs[0]
		}
	}
	return out
}

// ToFlash returns the data flashed to the session on a web redirect.
func (r Result) ToFlash() Flash {
	return Flash{
		Success: r.success,
		Message: r.message,
		Errors:  copyErrors(r.errors),
	}
}

// ToMap returns every field of the Result, including the status code.
func (r Result) ToMap() map[string]any {
	return map[string]any{
		"success":     r.success,
		"data":        r.data,
		"message":     r.message,
		"errors":      copyErrors(r.errors),
		"status_code": r.statusCode,
	}
}

// Handlers receives the outcome of a Result in UI components.
type Handlers struct {
	OnSuccess func(data any)
	OnError   func(r Result)
	// AddError binds a single message to a form field.
	AddError func(field, message string)
}

// Handle dispatches r to h and returns the payload on success, nil otherwise.
// Field errors are bound before OnError runs.
func (r Result) Handle(h Handlers) any {
	if r.success {
		if h.OnSuccess != nil {
			h.OnSuccess(r.data)
		}
		return r.data
	}
	if h.AddError != nil {
		for field, msg := range r.ToFlatMap() {
			h.AddError(field, msg)
		}
	}
	if h.OnError != nil {
		h.OnError(r)
	}
	return nil
}
