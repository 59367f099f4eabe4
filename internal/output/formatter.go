package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Formatter renders shopper exchanges and outcomes for humans.
type Formatter struct {
	Verbose bool
	NoColor bool
	scheme  *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
		scheme:  SchemeFor(!noColor),
	}
}

// Outcome is one recorded request result.
type Outcome struct {
	Name    string
	Success bool
	Elapsed time.Duration
	Bytes   int64
	Message string
}

// FormatOutcome formats a recorded success or failure as one line.
func (f *Formatter) FormatOutcome(o Outcome) string {
	name := f.formatName(o.Name)
	if o.Success {
		return fmt.Sprintf("%s %s %s", SuccessIcon(f.NoColor), name,
			f.scheme.Dim.Sprintf("(%s, %d bytes)", formatMillis(o.Elapsed), o.Bytes))
	}
	return fmt.Sprintf("%s %s %s\n    %s", ErrorIcon(f.NoColor), name,
		f.scheme.Dim.Sprintf("(%s)", formatMillis(o.Elapsed)),
		f.scheme.Error.Sprint(o.Message))
}

// formatName colors "POST /api/orders" as method and path.
func (f *Formatter) formatName(name string) string {
	method, path, ok := strings.Cut(name, " ")
	if !ok {
		return f.scheme.Highlight.Sprint(name)
	}
	return f.scheme.Method.Sprint(method) + " " + f.scheme.Path.Sprint(path)
}

// FormatRequest formats an outgoing request for display. body is the
// request body already read by the caller.
func (f *Formatter) FormatRequest(req *http.Request, body []byte) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("▶ REQUEST: %s %s\n", f.scheme.Method.Sprint(req.Method), req.URL.String()))

	if f.Verbose {
		buf.WriteString("  Headers:\n")
		for key, values := range req.Header {
			value := strings.Join(values, ", ")
			if strings.EqualFold(key, "Authorization") {
				value = redactAuthorization(value)
			}
			buf.WriteString(fmt.Sprintf("    %s: %s\n", key, value))
		}
	}

	if len(body) > 0 {
		buf.WriteString("  Body: ")
		buf.WriteString(formatJSONString(string(body)))
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatResponse formats a response for display. body is the response body
// already read by the caller.
func (f *Formatter) FormatResponse(resp *http.Response, body []byte, elapsed time.Duration) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("◀ RESPONSE: %s (%s)\n",
		f.scheme.Status(resp.StatusCode).Sprint(resp.Status),
		formatMillis(elapsed)))

	if f.Verbose {
		buf.WriteString("  Headers:\n")
		for key, values := range resp.Header {
			for _, value := range values {
				buf.WriteString(fmt.Sprintf("    %s: %s\n", key, value))
			}
		}
	}

	if len(body) > 0 {
		buf.WriteString("  Body:\n  ")
		buf.WriteString(f.scheme.JsonBody.Sprint(formatJSONString(string(body))))
		buf.WriteString("\n")
	}

	return buf.String()
}

// redactAuthorization keeps the scheme and the last four characters.
func redactAuthorization(v string) string {
	scheme, token, ok := strings.Cut(v, " ")
	if !ok {
		scheme, token = "", v
	}
	if len(token) > 4 {
		token = "…" + token[len(token)-4:]
	}
	if scheme == "" {
		return token
	}
	return scheme + " " + token
}

func formatMillis(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// formatJSONString attempts to pretty-print a JSON string
func formatJSONString(s string) string {
	var prettyJSON bytes.Buffer
	err := json.Indent(&prettyJSON, []byte(s), "  ", "  ")
	if err != nil {
		return s
	}
	return prettyJSON.String()
}
