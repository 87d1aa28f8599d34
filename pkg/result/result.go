// Package result provides the immutable outcome value returned by every
// action. A Result normalizes success and failure for HTTP handlers, form
// binders, redirect flashes and schedulers so none of them need to inspect
// error types.
package result

import "net/http"

const (
	DefaultSuccessMessage    = "Operation succeeded"
	DefaultErrorMessage      = "An error occurred"
	DefaultValidationMessage = "Validation error"
)

// Result is the outcome of a business operation. The zero value is not a
// valid Result; use Success, Error or ValidationError.
type Result struct {
	success    bool
	data       any
	message    string
	statusCode int
	errors     map[string][]string
}

type settings struct {
	message    string
	statusCode int
	errors     map[string][]string
	data       any
	hasData    bool
}

// Option customizes a Result at construction time.
type Option func(*settings)

// WithMessage overrides the constructor's default message.
func WithMessage(message string) Option {
	return func(s *settings) { s.message = message }
}

// WithStatus overrides the status code. Ignored by ValidationError.
func WithStatus(code int) Option {
	return func(s *settings) { s.statusCode = code }
}

// WithErrors attaches field errors. Ignored by Success.
func WithErrors(errs map[string][]string) Option {
	return func(s *settings) { s.errors = errs }
}

// WithData attaches a payload to an error result.
func WithData(data any) Option {
	return func(s *settings) {
		s.data = data
		s.hasData = true
	}
}

func apply(opts []Option) settings {
	var s settings
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// Success builds a successful result carrying data. Defaults to status 200.
func Success(data any, opts ...Option) Result {
	s := apply(opts)
	status := s.statusCode
	if status < 200 || status > 299 {
		status = http.StatusOK
	}
	return Result{
		success:    true,
		data:       data,
		message:    orDefault(s.message, DefaultSuccessMessage),
		statusCode: status,
		errors:     map[string][]string{},
	}
}

// Error builds a failed result. Defaults to status 400 with no field errors.
// Status codes outside 4xx/5xx fall back to 400.
func Error(message string, opts ...Option) Result {
	s := apply(opts)
	status := s.statusCode
	if status < 400 || status > 599 {
		status = http.StatusBadRequest
	}
	var data any
	if s.hasData {
		data = s.data
	}
	return Result{
		success:    false,
		data:       data,
		message:    orDefault(orDefault(s.message, message), DefaultErrorMessage),
		statusCode: status,
		errors:     normalizeErrors(s.errors),
	}
}

// ValidationError builds a failed result for rejected input. The status code
// is always 422.
func ValidationError(errs map[string][]string, opts ...Option) Result {
	s := apply(opts)
	return Result{
		success:    false,
		message:    orDefault(s.message, DefaultValidationMessage),
		statusCode: http.StatusUnprocessableEntity,
		errors:     normalizeErrors(errs),
	}
}

// IsSuccess reports whether the operation succeeded.
func (r Result) IsSuccess() bool { return r.success }

// IsError reports whether the operation failed.
func (r Result) IsError() bool { return !r.success }

// Data returns the payload, or nil when none was attached.
func (r Result) Data() any { return r.data }

// Message returns the human readable summary.
func (r Result) Message() string { return r.message }

// StatusCode returns the HTTP-style outcome code.
func (r Result) StatusCode() int { return r.statusCode }

// Errors returns a copy of the field errors. Never nil.
func (r Result) Errors() map[string][]string { return copyErrors(r.errors) }

// DataAs returns the payload asserted to T.
func DataAs[T any](r Result) (T, bool) {
	v, ok := r.data.(T)
	return v, ok
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// normalizeErrors deep-copies errs and drops fields without messages.
func normalizeErrors(errs map[string][]string) map[string][]string {
	out := make(map[string][]string, len(errs))
	for field, msgs := range errs {
		if len(msgs) == 0 {
			continue
		}
		out[field] = append([]string(nil), msgs...)
	}
	return out
}

func copyErrors(errs map[string][]string) map[string][]string {
	out := make(map[string][]string, len(errs))
	for field, msgs := range errs {
		out[field] = append([]string(nil), msgs...)
	}
	return out
}
