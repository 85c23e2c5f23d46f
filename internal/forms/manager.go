// Package forms keeps the state of a single form: its data, the validation
// errors per field and the dirty/submitting/valid flags.
package forms

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

type ValidationResult struct {
	IsValid bool
	Errors  map[string]string
}

type State[T any] struct {
	Data         T
	Errors       map[string]string
	IsDirty      bool
	IsSubmitting bool
	IsValid      bool
}

type Options[T any] struct {
	Schema      Schema[T]
	InitialData T
	// OnSubmit receives the validated data. Its error is logged, not returned.
	OnSubmit          func(ctx context.Context, data T) error
	OnValidationError func(errors map[string]string)
	Logger            logrus.FieldLogger
}

// Manager owns the state of one form. T must be a struct.
type Manager[T any] struct {
	mu    sync.Mutex
	opts  Options[T]
	state State[T]
	log   logrus.FieldLogger
}

func New[T any](opts Options[T]) (*Manager[T], error) {
	if opts.Schema == nil {
		return nil, fmt.Errorf("forms: schema is required")
	}
	if t := reflect.TypeOf(opts.InitialData); t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("forms: form data must be a struct, got %T", opts.InitialData)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	m := &Manager[T]{opts: opts, log: log.WithField("component", "forms")}
	m.state = m.initialState()
	return m, nil
}

func (m *Manager[T]) initialState() State[T] {
	return State[T]{
		Data:    m.opts.InitialData,
		Errors:  map[string]string{},
		IsValid: len(m.opts.Schema.Validate(m.opts.InitialData)) == 0,
	}
}

// Validate runs the schema against data without touching the form state.
func (m *Manager[T]) Validate(data T) ValidationResult {
	errs := m.opts.Schema.Validate(data)
	if errs == nil {
		errs = map[string]string{}
	}
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// UpdateField sets one field, then re-validates the whole form. The field is
// addressed by its json name or its Go name.
func (m *Manager[T]) UpdateField(field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := withField(m.state.Data, field, value)
	if err != nil {
		return err
	}
	result := m.Validate(data)

	m.state.Data = data
	m.state.Errors = result.Errors
	m.state.IsValid = result.IsValid
	m.state.IsDirty = !reflect.DeepEqual(data, m.opts.InitialData)
	return nil
}

// ValidateField checks value as if it were stored in field, against the
// current data. It records and returns the field's message, "" when valid.
func (m *Manager[T]) ValidateField(field string, value any) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := withField(m.state.Data, field, value)
	if err != nil {
		m.state.Errors[field] = "Invalid value"
		return "Invalid value"
	}
	key := field
	if sf, ok := lookupField(reflect.TypeOf(data), field); ok {
		key = FieldName(sf)
	}

	msg := m.Validate(data).Errors[key]
	if msg == "" {
		delete(m.state.Errors, key)
	} else {
		m.state.Errors[key] = msg
	}
	return msg
}

// SetErrors replaces the error set and notifies OnValidationError.
func (m *Manager[T]) SetErrors(errs map[string]string) {
	m.mu.Lock()
	m.state.Errors = maps.Clone(errs)
	if m.state.Errors == nil {
		m.state.Errors = map[string]string{}
	}
	m.mu.Unlock()

	if m.opts.OnValidationError != nil {
		m.opts.OnValidationError(maps.Clone(errs))
	}
}

func (m *Manager[T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.initialState()
}

// HandleSubmit validates the current data and, when valid, hands it to
// OnSubmit. It reports whether the data was valid and OnSubmit succeeded.
func (m *Manager[T]) HandleSubmit(ctx context.Context) bool {
	m.mu.Lock()
	data := m.state.Data
	m.mu.Unlock()

	result := m.Validate(data)
	if !result.IsValid {
		m.SetErrors(result.Errors)
		return false
	}
	if m.opts.OnSubmit == nil {
		return true
	}

	m.setSubmitting(true)
	defer m.setSubmitting(false)

	if err := m.submit(ctx, data); err != nil {
		m.log.WithError(err).Error("Form submission error")
		return false
	}
	return true
}

func (m *Manager[T]) submit(ctx context.Context, data T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in submit handler: %v", r)
		}
	}()
	return m.opts.OnSubmit(ctx, data)
}

func (m *Manager[T]) setSubmitting(v bool) {
	m.mu.Lock()
	m.state.IsSubmitting = v
	m.mu.Unlock()
}

// State returns a copy of the current state.
func (m *Manager[T]) State() State[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.Errors = maps.Clone(m.state.Errors)
	return s
}

func lookupField(t reflect.Type, field string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if sf.Name == field || FieldName(sf) == field {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}

// withField returns a copy of data with field set to value.
func withField[T any](data T, field string, value any) (T, error) {
	v := reflect.ValueOf(&data).Elem()
	sf, ok := lookupField(v.Type(), field)
	if !ok {
		return data, fmt.Errorf("forms: unknown field %q", field)
	}
	dst := v.FieldByIndex(sf.Index)

	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return data, nil
	}
	src := reflect.ValueOf(value)
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case convertible(src.Type(), dst.Type()):
		dst.Set(src.Convert(dst.Type()))
	default:
		return data, fmt.Errorf("forms: cannot assign %T to field %q of type %s", value, field, dst.Type())
	}
	return data, nil
}

// convertible refuses the number to string conversion reflect would allow.
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	if to.Kind() == reflect.String {
		return from.Kind() == reflect.String
	}
	return true
}
