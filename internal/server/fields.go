package server

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/therapy-booking/internal/apperr"
)

// fields reads typed values out of a request Struct. The first failure sticks
// and later reads return zero values.
type fields struct {
	m   map[string]*structpb.Value
	err error
}

func fieldsOf(req *structpb.Struct) *fields {
	return &fields{m: req.GetFields()}
}

func (f *fields) fail(key, format string, args ...any) {
	if f.err == nil {
		f.err = apperr.Validation(fmt.Sprintf("%s: %s", key, fmt.Sprintf(format, args...)), nil)
	}
}

func (f *fields) str(key string) string {
	return f.m[key].GetStringValue()
}

// int reads an optional non-negative whole number; absent means 0.
func (f *fields) int(key string) int {
	if f.err != nil || !f.has(key) {
		return 0
	}
	v, ok := f.m[key].GetKind().(*structpb.Value_NumberValue)
	if !ok || v.NumberValue < 0 || v.NumberValue != math.Trunc(v.NumberValue) {
		f.fail(key, "must be a non-negative integer")
		return 0
	}
	return int(v.NumberValue)
}

func (f *fields) has(key string) bool {
	v, ok := f.m[key]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

// uuid parses a required id.
func (f *fields) uuid(key string) uuid.UUID {
	if f.err != nil {
		return uuid.Nil
	}
	if !f.has(key) {
		f.fail(key, "is required")
		return uuid.Nil
	}
	return f.optUUID(key)
}

// optUUID returns uuid.Nil when the key is absent.
func (f *fields) optUUID(key string) uuid.UUID {
	if f.err != nil || !f.has(key) {
		return uuid.Nil
	}
	id, err := uuid.Parse(f.str(key))
	if err != nil {
		f.fail(key, "must be a uuid")
		return uuid.Nil
	}
	return id
}

// date parses a required YYYY-MM-DD civil date.
func (f *fields) date(key string) time.Time {
	if f.err != nil {
		return time.Time{}
	}
	d, err := time.ParseInLocation(time.DateOnly, f.str(key), time.UTC)
	if err != nil {
		f.fail(key, "must be a YYYY-MM-DD date")
		return time.Time{}
	}
	return d
}

func (f *fields) strings(key string) []string {
	if f.err != nil {
		return nil
	}
	list := f.m[key].GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			f.fail(key, "must be a list of strings")
			return nil
		}
		out = append(out, s.StringValue)
	}
	return out
}
