package httplog

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// OAuth flow stages attached to redirect traces.
const (
	StageInitiation       = "oauth_initiation"
	StageCallback         = "oauth_callback"
	StageProviderRedirect = "oauth_provider_redirect"
)

// Recorder observes one request/response pair per invocation and emits a
// consolidated exchange record, plus a redirect trace when an OAuth-related
// exchange redirects. Instances are request-scoped inside the middleware
// and never shared.
type Recorder struct {
	formatter *Formatter
}

// NewRecorder creates a Recorder emitting through the given formatter.
func NewRecorder(f *Formatter) *Recorder {
	return &Recorder{formatter: f}
}

// Middleware returns an echo middleware capturing every exchange. Request
// and response bodies are buffered for logging without consuming them:
// downstream handlers and clients still see intact bodies.
func (r *Recorder) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			var reqBody []byte
			if req.Body != nil {
				reqBody, _ = io.ReadAll(req.Body)
				req.Body.Close()
				req.Body = io.NopCloser(bytes.NewReader(reqBody))
			}

			resBody := new(bytes.Buffer)
			c.Response().Writer = &teeWriter{ResponseWriter: c.Response().Writer, body: resBody}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			duration := time.Since(start)
			r.finish(c, reqBody, resBody.Bytes(), duration)
			return err
		}
	}
}

func (r *Recorder) finish(c echo.Context, reqBody, resBody []byte, duration time.Duration) {
	req := c.Request()
	res := c.Response()
	status := res.Status

	uri := req.URL.RequestURI()
	fields := []Field{
		{Key: "method", Value: req.Method},
		{Key: "uri", Value: MaskURL(uri)},
		{Key: "status", Value: status},
		{Key: "duration_ms", Value: duration.Milliseconds()},
	}
	fields = append(fields, headerFields("req_", req.Header)...)
	fields = append(fields, Field{Key: "req_body", Value: truncateBody(string(reqBody))})
	fields = append(fields, headerFields("res_", res.Header())...)
	fields = append(fields, Field{Key: "res_body", Value: truncateBody(string(resBody))})

	if status >= 300 && status < 400 && isOAuthExchange(req.URL.Path, req.URL.RawQuery) {
		r.emitRedirectTrace(c, status)
	}

	r.formatter.Emit("http_exchange", "INFO", fields)
}

// emitRedirectTrace records a 3xx hop of an OAuth flow. The redirect target
// goes through the same masking as exchange records, so secrets are never
// duplicated in clear text.
func (r *Recorder) emitRedirectTrace(c echo.Context, status int) {
	req := c.Request()
	location := c.Response().Header().Get(echo.HeaderLocation)

	fields := []Field{
		{Key: "method", Value: req.Method},
		{Key: "from_uri", Value: MaskURL(req.URL.RequestURI())},
		{Key: "to_location", Value: MaskURL(location)},
		{Key: "status", Value: status},
		{Key: "user_agent", Value: req.UserAgent()},
		{Key: "trace_id", Value: correlationID(c)},
		{Key: "flow_stage", Value: flowStage(req.URL.Path, location)},
	}
	r.formatter.Emit("oauth_redirect", "INFO", fields)
}

// isOAuthExchange reports whether the path or query marks an OAuth-related
// request.
func isOAuthExchange(path, rawQuery string) bool {
	if strings.Contains(path, "/oauth") || strings.Contains(path, "/login") || strings.Contains(path, "/auth") {
		return true
	}
	return strings.Contains(rawQuery, "code=") || strings.Contains(rawQuery, "state=")
}

// flowStage classifies a redirect within the OAuth flow. The empty string
// means no stage applies.
func flowStage(fromPath, toLocation string) string {
	switch {
	case strings.Contains(fromPath, "/oauth2/authorization/"):
		return StageInitiation
	case strings.Contains(fromPath, "/login/oauth2/code/"):
		return StageCallback
	case strings.Contains(toLocation, "oauth"):
		return StageProviderRedirect
	default:
		return ""
	}
}

func correlationID(c echo.Context) string {
	if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

// teeWriter copies the response body into a buffer while passing it through
// to the client.
type teeWriter struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
