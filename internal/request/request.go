// Package request binds and validates JSON request bodies that may arrive
// in either the current snake_case or the legacy camelCase field naming.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jimdaga/accomplish/internal/apierr"
)

// Normalizer converts a bound request schema to the internal input shape.
type Normalizer[T any] interface {
	Normalize() T
}

var (
	setupOnce  sync.Once
	clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// Setup registers the custom validators on gin's validator engine. It is
// safe to call more than once.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonName)
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			return IsDate(fl.Field().String())
		})
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return clockRegex.MatchString(fl.Field().String())
		})
	})
}

// IsDate reports whether s is a real calendar date in YYYY-MM-DD form.
func IsDate(s string) bool {
	if len(s) != len(time.DateOnly) {
		return false
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

// IsClock reports whether s is a wall-clock time in HH:MM form.
func IsClock(s string) bool {
	return clockRegex.MatchString(s)
}

// Bind picks one schema by the body's keys and returns its normalised
// input. Any primary key selects primary; legacy is used only when the body
// carries legacy keys and no primary ones. Keys both schemas declare do not
// count toward either. The chosen schema's validation
// error is final, so an all-optional schema never absorbs an invalid body.
func Bind[T any](c *gin.Context, primary, legacy Normalizer[T]) (T, error) {
	Setup()
	var zero T

	body, err := rawBody(c)
	if err != nil {
		return zero, apierr.BadRequest("Invalid request body")
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return zero, apierr.BadRequest("Invalid JSON body")
	}

	schema := primary
	if !hasOwnField(primary, legacy, keys) && hasOwnField(legacy, primary, keys) {
		schema = legacy
	}
	if err := binding.JSON.BindBody(body, schema); err != nil {
		return zero, Problem(err)
	}
	return schema.Normalize(), nil
}

// BindQuery binds URL query parameters into obj.
func BindQuery(c *gin.Context, obj any) error {
	Setup()
	if err := c.ShouldBindQuery(obj); err != nil {
		return Problem(err)
	}
	return nil
}

// Problem converts a binding error into a 400 with per-field details.
func Problem(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierr.Validation("Validation failed", map[string]any{"_": []string{err.Error()}})
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], message(fe))
	}
	details := make(map[string]any, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	return apierr.Validation("Validation failed", details)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be %s characters or less", fe.Param())
		}
		return fmt.Sprintf("Must be %s or less", fe.Param())
	case "uuid", "uuid4":
		return "Invalid ID"
	case "isodate":
		return "Invalid date format (YYYY-MM-DD)"
	case "hhmm":
		return "Invalid time format (HH:MM)"
	case "oneof":
		return "Must be one of: " + fe.Param()
	default:
		return "Invalid value"
	}
}

func rawBody(c *gin.Context) ([]byte, error) {
	if cached, ok := c.Get(gin.BodyBytesKey); ok {
		if b, ok := cached.([]byte); ok {
			return b, nil
		}
	}
	if c.Request.Body == nil {
		return []byte("{}"), nil
	}
	b, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		b = []byte("{}")
	}
	c.Set(gin.BodyBytesKey, b)
	return b, nil
}

// hasOwnField reports whether keys names a field of schema that other
// does not also declare.
func hasOwnField(schema, other any, keys map[string]json.RawMessage) bool {
	shared := fieldNames(other)
	for name := range fieldNames(schema) {
		if _, ok := keys[name]; ok && !shared[name] {
			return true
		}
	}
	return false
}

func fieldNames(schema any) map[string]bool {
	t := reflect.TypeOf(schema)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if name := jsonName(t.Field(i)); name != "" {
			names[name] = true
		}
	}
	return names
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
