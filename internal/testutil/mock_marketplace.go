// Package testutil provides testing utilities for the affiliate marketplace
// stack.
package testutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/affiliatekit/smartsearch/pkg/signing"
)

// MockResponse defines the behavior for one mocked gateway reply.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockMarketplace is a configurable mock of the marketplace gateway. The
// real gateway multiplexes every operation over one POST endpoint and routes
// by the method form field, so handlers here are keyed by method name, not
// by URL path.
//
// When constructed with an app key and secret it verifies the signature of
// every request by re-signing the received parameters, which makes client
// signing bugs fail loudly in tests.
type MockMarketplace struct {
	server    *httptest.Server
	appKey    string
	appSecret string

	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	verify   bool

	// Tracking
	RequestCount      int
	MethodCounts      map[string]int
	SignatureFailures int
	LastParams        url.Values
}

// NewMockMarketplace creates a mock gateway that verifies signatures against
// the given credentials.
func NewMockMarketplace(appKey, appSecret string) *MockMarketplace {
	mock := &MockMarketplace{
		appKey:       appKey,
		appSecret:    appSecret,
		handlers:     make(map[string]http.HandlerFunc),
		verify:       true,
		MethodCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.route))

	return mock
}

// URL returns the mock gateway URL, suitable for marketplace.Config.BaseURL.
func (m *MockMarketplace) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockMarketplace) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockMarketplace) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.MethodCounts = make(map[string]int)
	m.SignatureFailures = 0
	m.LastParams = nil
}

// DisableSignatureChecks turns off signature verification, for tests that
// deliberately send unsigned traffic.
func (m *MockMarketplace) DisableSignatureChecks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verify = false
}

// SetHandler sets a custom handler for a remote method name.
func (m *MockMarketplace) SetHandler(method string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = handler
}

// SetResponse configures a raw response for a method.
func (m *MockMarketplace) SetResponse(method string, resp MockResponse) {
	m.SetHandler(method, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json;charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetResult configures a success envelope carrying resultJSON for a method.
func (m *MockMarketplace) SetResult(method, resultJSON string) {
	m.SetResponse(method, MockResponse{
		StatusCode: http.StatusOK,
		Body:       SuccessEnvelope(method, resultJSON),
	})
}

// SetRemoteError configures an error_response envelope for a method,
// delivered with HTTP 200 the way the gateway does.
func (m *MockMarketplace) SetRemoteError(method string, code int, subCode, msg string) {
	m.SetResponse(method, MockResponse{
		StatusCode: http.StatusOK,
		Body:       ErrorEnvelope(code, subCode, msg),
	})
}

// GetRequestCount returns the number of requests made to the gateway.
func (m *MockMarketplace) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetMethodCount returns the number of requests for one method.
func (m *MockMarketplace) GetMethodCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.MethodCounts[method]
}

// GetLastParams returns the form parameters of the most recent request.
func (m *MockMarketplace) GetLastParams() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cloned := make(url.Values, len(m.LastParams))
	for k, vs := range m.LastParams {
		cloned[k] = append([]string(nil), vs...)
	}
	return cloned
}

// GetSignatureFailures returns how many requests failed signature checks.
func (m *MockMarketplace) GetSignatureFailures() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SignatureFailures
}

func (m *MockMarketplace) route(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	params := r.PostForm
	method := params.Get("method")

	m.mu.Lock()
	m.RequestCount++
	m.MethodCounts[method]++
	m.LastParams = params
	verify := m.verify
	m.mu.Unlock()

	if verify {
		if err := m.checkSignature(params); err != nil {
			m.mu.Lock()
			m.SignatureFailures++
			m.mu.Unlock()
			w.Header().Set("Content-Type", "application/json;charset=utf-8")
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, ErrorEnvelope(25, "IncompleteSignature", "Invalid signature: "+err.Error()))
			return
		}
	}

	m.mu.RLock()
	handler, exists := m.handlers[method]
	m.mu.RUnlock()

	if exists {
		handler(w, r)
		return
	}

	// Default: an empty success result for the requested method.
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, SuccessEnvelope(method, "{}"))
}

// checkSignature re-signs the received parameters with the shared secret and
// compares against the sign field, like the real gateway does.
func (m *MockMarketplace) checkSignature(params url.Values) error {
	got := params.Get("sign")
	if got == "" {
		return errors.New("missing sign parameter")
	}
	if params.Get("app_key") != m.appKey {
		return errors.New("unknown app_key")
	}

	signer, err := signing.New(signing.Algorithm(params.Get("sign_method")))
	if err != nil {
		return err
	}

	ps := signing.NewParameterSet()
	for k, vs := range params {
		if k == "sign" || len(vs) == 0 {
			continue
		}
		ps.SetString(k, vs[0])
	}

	want, err := signer.Sign(ps, m.appSecret)
	if err != nil {
		return err
	}
	if got != want {
		return errors.New("signature mismatch")
	}
	return nil
}

// SuccessEnvelope wraps resultJSON in the gateway's success envelope for
// method (dots become underscores in the envelope key).
func SuccessEnvelope(method, resultJSON string) string {
	key := strings.ReplaceAll(method, ".", "_") + "_response"
	return fmt.Sprintf(`{"%s":{"resp_result":{"resp_code":200,"resp_msg":"success","result":%s}}}`, key, resultJSON)
}

// RespCodeEnvelope builds a success-shaped envelope whose resp_code reports
// a failure, e.g. 7 for call limits.
func RespCodeEnvelope(method string, code int, msg string) string {
	key := strings.ReplaceAll(method, ".", "_") + "_response"
	return fmt.Sprintf(`{"%s":{"resp_result":{"resp_code":%d,"resp_msg":%q}}}`, key, code, msg)
}

// ErrorEnvelope builds a top-level error_response envelope.
func ErrorEnvelope(code int, subCode, msg string) string {
	body, _ := json.Marshal(map[string]any{
		"error_response": map[string]any{
			"code":     code,
			"msg":      msg,
			"sub_code": subCode,
			"sub_msg":  msg,
		},
	})
	return string(body)
}

// SearchResultJSON builds a search result payload with count generated
// products. Product IDs start at 1001; URLs are distinct.
func SearchResultJSON(count, totalRecords int) string {
	products := make([]map[string]any, count)
	for i := range products {
		id := 1001 + i
		products[i] = map[string]any{
			"product_id":             id,
			"product_title":          fmt.Sprintf("Test Product %d", id),
			"product_detail_url":     ProductURL(id),
			"sale_price":             "9.99",
			"original_price":         "19.99",
			"sale_price_currency":    "USD",
			"product_main_image_url": fmt.Sprintf("https://img.example.com/%d.jpg", id),
			"evaluate_rate":          "96.5%",
			"lastest_volume":         120 + i,
			"commission_rate":        "8.0%",
		}
	}
	body, _ := json.Marshal(map[string]any{
		"total_record_count": totalRecords,
		"current_page_no":    1,
		"products":           map[string]any{"product": products},
	})
	return string(body)
}

// ProductURL returns the canned product URL for an id, so tests can predict
// the URLs SearchResultJSON emits.
func ProductURL(id int) string {
	return fmt.Sprintf("https://www.aliexpress.com/item/%d.html", id)
}

// LinkResultJSON builds a link-generation payload resolving the given source
// URLs. URLs listed in reject are omitted, like the gateway omits
// unresolvable sources.
func LinkResultJSON(trackingID string, sources []string, reject ...string) string {
	rejected := make(map[string]bool, len(reject))
	for _, r := range reject {
		rejected[r] = true
	}

	links := make([]map[string]any, 0, len(sources))
	for _, src := range sources {
		if rejected[src] {
			continue
		}
		links = append(links, map[string]any{
			"source_value":    src,
			"promotion_link":  "https://s.click.aliexpress.com/e/" + shortCode(src),
			"commission_rate": "8.0%",
		})
	}
	body, _ := json.Marshal(map[string]any{
		"total_result_count": len(links),
		"tracking_id":        trackingID,
		"promotion_links":    map[string]any{"promotion_link": links},
	})
	return string(body)
}

// CategoryResultJSON builds a category-listing payload. Triples are
// (id, name, parent id); parent 0 marks a root category.
func CategoryResultJSON(categories [][3]any) string {
	wire := make([]map[string]any, len(categories))
	for i, c := range categories {
		wire[i] = map[string]any{
			"category_id":        c[0],
			"category_name":      c[1],
			"parent_category_id": c[2],
		}
	}
	body, _ := json.Marshal(map[string]any{
		"total_result_count": len(wire),
		"categories":         map[string]any{"category": wire},
	})
	return string(body)
}

// shortCode derives a stable fake short-link token from a source URL.
func shortCode(src string) string {
	sum := 0
	for _, b := range []byte(src) {
		sum = sum*31 + int(b)
	}
	if sum < 0 {
		sum = -sum
	}
	return fmt.Sprintf("_%06x", sum%0xffffff)
}
