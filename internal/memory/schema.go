package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-playground/validator/v10"
)

// CreateRequest is the body of a create call.
type CreateRequest struct {
	UserID    *int64          `json:"userId" validate:"required"`
	Source    *string         `json:"source" validate:"required"`
	SourceID  *string         `json:"sourceId" validate:"required"`
	Timestamp *Timestamp      `json:"timestamp" validate:"required"`
	Content   *string         `json:"content" validate:"required"`
	Metadata  *CreateMetadata `json:"metadata" validate:"required"`
}

// CreateMetadata requires tags and category; the rest is optional.
type CreateMetadata struct {
	Title    *string   `json:"title"`
	Origin   *string   `json:"origin"`
	Tags     *string   `json:"tags" validate:"required"`
	Category []*string `json:"category" validate:"required,dive,required"`
	Others   *string   `json:"others"`
}

// UpdateRequest is a partial update. Only ID is required; nil fields are
// left untouched.
type UpdateRequest struct {
	ID        *int64          `json:"id" validate:"required"`
	UserID    *int64          `json:"userId"`
	Source    *string         `json:"source"`
	SourceID  *string         `json:"sourceId"`
	Timestamp *Timestamp      `json:"timestamp"`
	Content   *string         `json:"content"`
	Metadata  *UpdateMetadata `json:"metadata"`
}

type UpdateMetadata struct {
	Title    *string   `json:"title"`
	Origin   *string   `json:"origin"`
	Tags     *string   `json:"tags"`
	Category []*string `json:"category" validate:"omitempty,dive,required"`
	Others   *string   `json:"others"`
}

type DeleteRequest struct {
	ID     *int64 `json:"id" validate:"required"`
	UserID *int64 `json:"userId" validate:"required"`
}

type GetRequest struct {
	ID     *int64 `json:"id" validate:"required"`
	UserID *int64 `json:"userId"`
}

// GetByUserRequest takes the user id as a string, unlike every other
// request.
type GetByUserRequest struct {
	UserID *string `json:"userId" validate:"required"`
}

// Largest magnitude, in milliseconds from the epoch, a timestamp may have.
const maxTimestampMillis = 8.64e15

// Timestamp is an instant decoded from a date-like string or a number of
// milliseconds since the Unix epoch.
type Timestamp struct {
	time.Time
}

// TimestampError reports a value that cannot be read as a date.
type TimestampError struct {
	Reason string
}

func (e *TimestampError) Error() string {
	return "timestamp: " + e.Reason
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &TimestampError{Reason: "empty value"}
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &TimestampError{Reason: err.Error()}
		}
		parsed, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var millis float64
		if err := json.Unmarshal(data, &millis); err != nil {
			return &TimestampError{Reason: err.Error()}
		}
		if math.Abs(millis) > maxTimestampMillis {
			return &TimestampError{Reason: fmt.Sprintf("%v is out of range", millis)}
		}
		parsed := time.UnixMilli(int64(millis)).UTC()
		if err := checkYear(parsed); err != nil {
			return err
		}
		t.Time = parsed
		return nil
	default:
		return &TimestampError{Reason: fmt.Sprintf("cannot convert %s to a date", data)}
	}
}

// knownLayouts are tried before the general fallback. Layouts without a zone
// are read as UTC.
var knownLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	"2006-01",
	"2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RubyDate,
	time.UnixDate,
	time.ANSIC,
}

// ParseTimestamp parses a date-like string. ISO-8601 and RFC forms are
// tried first; anything else must match, in full, a layout recognised by
// dateparse and must name its year. Surrounding whitespace is ignored and
// strings without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &TimestampError{Reason: "empty string"}
	}

	parsed, err := parseLayouts(s)
	if err != nil {
		return time.Time{}, err
	}
	parsed = parsed.UTC()
	if err := checkYear(parsed); err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}

func parseLayouts(s string) (time.Time, error) {
	for _, layout := range knownLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	bad := &TimestampError{Reason: fmt.Sprintf("invalid date %q", s)}
	if strings.Trim(s, "0123456789") == "" {
		// Bare digit strings other than a year are not dates.
		return time.Time{}, bad
	}

	layout, err := dateparse.ParseFormat(s)
	if err != nil || !strings.Contains(layout, "06") {
		return time.Time{}, bad
	}
	// time.Parse fails on any input the layout does not consume.
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}, bad
	}
	return t, nil
}

// checkYear keeps instants within four-digit years so they round-trip
// through storage.
func checkYear(t time.Time) error {
	if y := t.Year(); y < 0 || y > 9999 {
		return &TimestampError{Reason: fmt.Sprintf("year %d is out of range", y)}
	}
	return nil
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned by Parse when the body does not match the
// schema.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		if f.Field == "" {
			parts[i] = f.Message
		} else {
			parts[i] = f.Field + ": " + f.Message
		}
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Use JSON tag names in error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Parse decodes a JSON body into T and validates it. Any failure is a
// *ValidationError.
func Parse[T any](body io.Reader) (*T, error) {
	if body == nil {
		return nil, invalid("", "request body is required")
	}

	var req T
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return nil, decodeError(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, invalid("", "unexpected data after JSON value")
	}

	if err := getValidator().Struct(&req); err != nil {
		return nil, fieldErrors(err)
	}
	return &req, nil
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func decodeError(err error) *ValidationError {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var tsErr *TimestampError

	switch {
	case errors.Is(err, io.EOF):
		return invalid("", "request body is empty")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			return invalid("", fmt.Sprintf("expected object, got %s", typeErr.Value))
		}
		return invalid(field, fmt.Sprintf("expected %s, got %s", describeKind(typeErr.Type), typeErr.Value))
	case errors.As(err, &syntaxErr):
		return invalid("", fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
	case errors.As(err, &tsErr):
		return invalid("timestamp", tsErr.Reason)
	default:
		return invalid("", err.Error())
	}
}

func describeKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "integer"
	case reflect.String:
		return "string"
	case reflect.Slice:
		return "array of " + describeKind(t.Elem())
	case reflect.Struct:
		return "object"
	default:
		return t.Kind().String()
	}
}

func fieldErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid("", err.Error())
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		field := fe.Namespace()
		// Drop the struct name prefix: "CreateRequest.metadata.tags" -> "metadata.tags"
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		message := fmt.Sprintf("failed %s validation", fe.Tag())
		if fe.Tag() == "required" {
			message = "is required"
		}
		out.Fields = append(out.Fields, FieldError{Field: field, Message: message})
	}
	return out
}
