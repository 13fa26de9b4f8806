package schema

import (
	"errors"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/tendant/simple-studio/pkg/studio"
)

var timeLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

// Decode converts a front-matter map into T using the yaml struct tags of T.
// With weak set, scalar conversions such as "3" to int are allowed.
func Decode[T any](input map[string]any, weak bool) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "yaml",
		WeaklyTypedInput: weak,
		DecodeHook:       stringToTime,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(input); err != nil {
		return out, err
	}
	return out, nil
}

func stringToTime(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	s := data.(string)
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Issues converts a Decode error into validation issues, one per field.
func Issues(err error) []studio.Issue {
	var merr *mapstructure.Error
	if errors.As(err, &merr) {
		issues := make([]studio.Issue, len(merr.Errors))
		for i, msg := range merr.Errors {
			issues[i] = studio.Issue{Message: msg}
		}
		return issues
	}
	return []studio.Issue{{Message: err.Error()}}
}
