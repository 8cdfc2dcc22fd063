package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/intermesh-io/intermesh/runtime/run"
	"github.com/intermesh-io/intermesh/runtime/toolerrors"
)

// CallREST performs an HTTP request against a downstream service.
//
// URL routing: a "/crm/" prefix resolves against the crm service's base URL
// and auth spec, "/wms/" against wms; any other URL is used verbatim with no
// base and no auth. The request carries x-trace-id plus the event's headers.
// The result is {status, json} where json is nil unless the response content
// type is JSON. A 5xx status is not an error here — the critic judges status
// codes; only transport failures raise.
func (t *Toolset) CallREST(ctx context.Context, rc *run.Context, params map[string]any, _ bool) (map[string]any, error) {
	url := stringParam(params, "url", "")
	if url == "" {
		return nil, toolerrors.New(toolerrors.KindHTTP, "call_rest: missing url")
	}
	method := strings.ToUpper(stringParam(params, "method", "GET"))

	headers := map[string]string{"x-trace-id": rc.Event.TraceID}
	for k, v := range rc.Event.Headers {
		headers[k] = v
	}

	var base string
	switch {
	case strings.HasPrefix(url, "/crm/"):
		base = t.routeService("crm", headers)
	case strings.HasPrefix(url, "/wms/"):
		base = t.routeService("wms", headers)
	}
	full := url
	if strings.HasPrefix(url, "/") {
		full = base + url
	}

	var body *bytes.Reader
	if raw, ok := params["body"]; ok && raw != nil {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, toolerrors.Wrap(toolerrors.KindHTTP, "call_rest: encode body", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindHTTP, "call_rest: build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, toolerrors.Wrap(toolerrors.KindHTTP, "http_error", err)
	}
	defer resp.Body.Close()

	var decoded any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if derr := json.NewDecoder(resp.Body).Decode(&decoded); derr != nil {
			decoded = nil
		}
	}
	return map[string]any{"status": resp.StatusCode, "json": decoded}, nil
}

// routeService resolves the base URL for a service key and merges its auth
// header into headers when the auth spec resolves.
func (t *Toolset) routeService(key string, headers map[string]string) string {
	svc := t.cfg.Service(key)
	if auth, ok := t.secrets.AuthHeader(svc.Auth); ok {
		headers["Authorization"] = auth
	}
	return svc.BaseURL
}
