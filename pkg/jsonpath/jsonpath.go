// Package jsonpath reads single values out of JSON response bodies using
// JSONPath-style expressions such as "$.access_token" or "$.data.token".
package jsonpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON is returned when the document is not valid JSON.
	ErrInvalidJSON = errors.New("jsonpath: invalid JSON document")
	// ErrNotFound is returned when the path does not resolve to a value.
	ErrNotFound = errors.New("jsonpath: path not found")
)

// Extract returns the value at path rendered as a string. Objects and arrays
// come back as raw JSON, null as "null".
func Extract(doc []byte, path string) (string, error) {
	result, err := lookup(doc, path)
	if err != nil {
		return "", err
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// String returns the value at path only when it is a non-empty JSON string.
func String(doc []byte, path string) (string, error) {
	result, err := lookup(doc, path)
	if err != nil {
		return "", err
	}
	if result.Type != gjson.String {
		return "", fmt.Errorf("jsonpath: %s is %s, not a string", path, result.Type)
	}
	if result.Str == "" {
		return "", fmt.Errorf("jsonpath: %s is empty", path)
	}
	return result.Str, nil
}

// Valid reports whether path is a usable expression.
func Valid(path string) bool {
	path = strings.TrimSpace(path)
	return path != "" && !strings.ContainsAny(path, " \t\n")
}

func lookup(doc []byte, path string) (gjson.Result, error) {
	if !Valid(path) {
		return gjson.Result{}, fmt.Errorf("jsonpath: invalid expression %q", path)
	}
	if len(doc) == 0 || !gjson.ValidBytes(doc) {
		return gjson.Result{}, ErrInvalidJSON
	}

	result := gjson.GetBytes(doc, toGjsonPath(path))
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return result, nil
}

// toGjsonPath converts "$.data.items[0]['token']" into "data.items.0.token".
// Bare gjson paths ("data.token") pass through unchanged.
func toGjsonPath(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	if path == "" {
		return "@this"
	}
	path = strings.TrimPrefix(path, ".")

	replacer := strings.NewReplacer(
		"['", ".", "']", "",
		`["`, ".", `"]`, "",
		"[", ".", "]", "",
	)
	path = replacer.Replace(path)
	return strings.TrimPrefix(path, ".")
}
