package validation

import (
	"fmt"
	"strconv"
	"strings"
)

var fixedMessages = map[string]string{
	"required":             "is required",
	"url":                  "must be a well-formed url",
	"https-url":            "must be a well-formed https:// url",
	"base64":               "must be base64",
	"same":                 "must not be the same",
	"token-not-recognized": "bearer token not recognized",
	"http-error":           "error connecting to url",
	"no-first-party":       "at least one of the leader or helper must be an aggregator operated by Divvi Up",
	"email":                "must be a valid email",
	"past":                 "must be in the future",
	"sorted":               "must be sorted",
	"unique":               "must be unique",
	"name-too-short":       "is too short",
}

// Message renders v as a form message. Unrecognized codes render as the
// bare code.
func Message(v Violation) string {
	msg, _ := message(v)
	return msg
}

// message reports false when v's code had no rendering and the bare code
// was used instead.
func message(v Violation) (string, bool) {
	if v.Message != nil && *v.Message != "" {
		return *v.Message, true
	}
	if msg, ok := fixedMessages[v.Code]; ok {
		return msg, true
	}

	switch v.Code {
	case "enum":
		values, ok := v.Params["values"].([]any)
		if !ok || len(values) == 0 {
			break
		}
		parts := make([]string, len(values))
		for i, value := range values {
			parts[i] = formatParam(value)
		}
		return "must be one of these values: " + strings.Join(parts, ", "), true
	case "length":
		if msg, ok := bounds(v.Params, "length must", true); ok {
			return msg, true
		}
		if equal, ok := v.Params["equal"]; ok {
			return "length must be " + formatParam(equal), true
		}
	case "range":
		if msg, ok := bounds(v.Params, "must", false); ok {
			return msg, true
		}
	}
	return v.Code, false
}

// bounds renders min/max params. Only length reports both bounds together;
// a range with both reports its minimum.
func bounds(params map[string]any, prefix string, between bool) (string, bool) {
	min, hasMin := params["min"]
	max, hasMax := params["max"]
	switch {
	case between && hasMin && hasMax:
		return fmt.Sprintf("%s be between %s and %s", prefix, formatParam(min), formatParam(max)), true
	case hasMin:
		return fmt.Sprintf("%s be greater than %s", prefix, formatParam(min)), true
	case hasMax:
		return fmt.Sprintf("%s be less than %s", prefix, formatParam(max)), true
	}
	return "", false
}

func formatParam(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
