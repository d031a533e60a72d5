// Package validation converts untyped request payloads into typed workflow
// inputs. Failures are accumulated per field rather than short-circuited, so
// a caller sees every problem with the payload at once.
package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report failures under the json field name, not the Go field name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Failure maps field names to human-readable reasons.
type Failure struct {
	Fields map[string]string
}

func (f *Failure) add(field, reason string) {
	if f.Fields == nil {
		f.Fields = map[string]string{}
	}
	if _, exists := f.Fields[field]; !exists {
		f.Fields[field] = reason
	}
}

func (f *Failure) empty() bool { return len(f.Fields) == 0 }

// Decoder walks a raw JSON body field by field. Each accessor coerces one
// field into its typed destination, recording a per-field reason on failure.
type Decoder struct {
	raw     map[string]json.RawMessage
	failure Failure
}

// NewDecoder parses the raw body. An empty body decodes as an empty object.
func NewDecoder(body []byte) *Decoder {
	d := &Decoder{raw: map[string]json.RawMessage{}}
	if len(body) == 0 {
		return d
	}
	if err := json.Unmarshal(body, &d.raw); err != nil {
		d.failure.add("body", "malformed JSON object")
	}
	return d
}

// Int64 coerces a JSON number field into dest.
func (d *Decoder) Int64(name string, required bool, dest *int64) {
	raw, ok := d.raw[name]
	if !ok || string(raw) == "null" {
		if required {
			d.failure.add(name, "required")
		}
		return
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		d.failure.add(name, "not an integer")
	}
}

// Int coerces a JSON number field into dest.
func (d *Decoder) Int(name string, required bool, dest *int) {
	raw, ok := d.raw[name]
	if !ok || string(raw) == "null" {
		if required {
			d.failure.add(name, "required")
		}
		return
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		d.failure.add(name, "not an integer")
	}
}

// String coerces a JSON string field into dest.
func (d *Decoder) String(name string, required bool, dest *string) {
	raw, ok := d.raw[name]
	if !ok || string(raw) == "null" {
		if required {
			d.failure.add(name, "required")
		}
		return
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		d.failure.add(name, "not a string")
	}
}

// Decimal coerces a JSON number (or numeric string) into dest and rejects
// negative values.
func (d *Decoder) Decimal(name string, required bool, dest *decimal.Decimal) {
	raw, ok := d.raw[name]
	if !ok || string(raw) == "null" {
		if required {
			d.failure.add(name, "required")
		}
		return
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		d.failure.add(name, "not a number")
		return
	}
	if dest.IsNegative() {
		d.failure.add(name, "must not be negative")
	}
}

// Finish runs the declared predicates on the populated input and returns the
// accumulated failure, or nil when the input is valid. Predicate failures
// never mask an earlier coercion failure on the same field.
func (d *Decoder) Finish(input any) *Failure {
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors, ok := err.(validator.ValidationErrors); ok {
			verrs = errors
		}
		for _, e := range verrs {
			d.failure.add(e.Field(), reason(e))
		}
	}
	if d.failure.empty() {
		return nil
	}
	return &d.failure
}

// PathID parses a positive integer path parameter, reporting failures under
// the parameter's field name.
func PathID(name, raw string) (int64, *Failure) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f := &Failure{}
		f.add(name, "not an integer")
		return 0, f
	}
	if id <= 0 {
		f := &Failure{}
		f.add(name, "must be positive")
		return 0, f
	}
	return id, nil
}

func reason(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", e.Param())
		}
		return fmt.Sprintf("must be at most %s", e.Param())
	default:
		return fmt.Sprintf("failed on the '%s' rule", e.Tag())
	}
}
