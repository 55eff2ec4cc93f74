package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/breeze-rmm/docverify/internal/model"
)

// APIExecutor issues the HTTP call described by an api-kind assertion and
// checks its expectations.
type APIExecutor struct {
	client *http.Client
}

// NewAPIExecutor creates an APIExecutor. A nil client gets a default with a
// 30s timeout.
func NewAPIExecutor(client *http.Client) *APIExecutor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIExecutor{client: client}
}

// Execute implements Executor. target is the API base URL.
func (e *APIExecutor) Execute(ctx context.Context, a model.Assertion, target string, env model.EnvContext) model.AssertionResult {
	test, ok := a.Test.(model.APITest)
	if !ok {
		return result(a, model.StatusError, fmt.Sprintf("assertion %s: test is not api-shaped", a.ID))
	}

	method := strings.ToUpper(test.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(test.Body) > 0 {
		body = bytes.NewReader(test.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(target, "/")+test.Path, body)
	if err != nil {
		return result(a, model.StatusError, "build request: "+err.Error())
	}
	if len(test.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := env[model.EnvAuthToken]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range test.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return result(a, model.StatusError, "request failed: "+err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return result(a, model.StatusError, "read response: "+err.Error())
	}

	if reason := checkExpectations(test.Expect, resp, respBody); reason != "" {
		return result(a, model.StatusFail, reason)
	}
	return result(a, model.StatusPass, "")
}

// checkExpectations returns an empty string when every expectation is met,
// otherwise a reason naming expected vs actual.
func checkExpectations(expect model.APIExpect, resp *http.Response, body []byte) string {
	if expect.Status != 0 && resp.StatusCode != expect.Status {
		return fmt.Sprintf("expected status %d, got %d", expect.Status, resp.StatusCode)
	}

	if expect.ContentType != "" {
		ct := resp.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, expect.ContentType) {
			return fmt.Sprintf("expected content-type %q, got %q", expect.ContentType, ct)
		}
	}

	text := string(body)
	for _, want := range expect.BodyContains {
		if !strings.Contains(text, want) {
			return fmt.Sprintf("response body missing %q", want)
		}
	}
	for _, forbidden := range expect.BodyNotContains {
		if strings.Contains(text, forbidden) {
			return fmt.Sprintf("response body contains forbidden %q", forbidden)
		}
	}
	return ""
}
