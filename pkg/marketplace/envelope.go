package marketplace

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Remote error codes with a dedicated classification. Everything else in an
// error envelope maps to remote_protocol.
const (
	remoteCodeCallLimited    = 7
	remoteCodeISVPermission  = 11
	remoteCodeUserPermission = 12
)

const remoteSuccessCode = 200

// errorResponse is the gateway's top-level error envelope.
type errorResponse struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	SubCode string `json:"sub_code"`
	SubMsg  string `json:"sub_msg"`
}

// respResult wraps every successful method response.
type respResult struct {
	RespCode int             `json:"resp_code"`
	RespMsg  string          `json:"resp_msg"`
	Result   json.RawMessage `json:"result"`
}

// responseKey derives the envelope key for a method name:
// "aliexpress.affiliate.product.query" responds under
// "aliexpress_affiliate_product_query_response".
func responseKey(method string) string {
	return strings.ReplaceAll(method, ".", "_") + "_response"
}

// kindForRemoteCode classifies a remote error or resp code.
func kindForRemoteCode(code int) ErrorKind {
	switch code {
	case remoteCodeCallLimited:
		return KindRateLimited
	case remoteCodeISVPermission, remoteCodeUserPermission:
		return KindPermissionDenied
	default:
		return KindRemoteProtocol
	}
}

// decodeEnvelope unwraps a gateway response body down to the raw result
// payload for the given method. Error envelopes and non-success resp codes
// come back as classified *Error values.
func decodeEnvelope(method string, body []byte) (json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, &Error{Kind: KindRemoteProtocol, Message: "malformed response body", Err: err}
	}

	if raw, ok := top["error_response"]; ok {
		var er errorResponse
		if err := json.Unmarshal(raw, &er); err != nil {
			return nil, &Error{Kind: KindRemoteProtocol, Message: "malformed error envelope", Err: err}
		}
		return nil, &Error{
			Kind:          kindForRemoteCode(er.Code),
			RemoteCode:    er.Code,
			RemoteSubCode: er.SubCode,
			Message:       joinRemoteMessage(er.Msg, er.SubMsg),
		}
	}

	raw, ok := top[responseKey(method)]
	if !ok {
		return nil, &Error{
			Kind:    KindRemoteProtocol,
			Message: fmt.Sprintf("response missing %s envelope", responseKey(method)),
		}
	}

	var rr respResult
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, &Error{Kind: KindRemoteProtocol, Message: "malformed resp_result envelope", Err: err}
	}
	if rr.RespCode != remoteSuccessCode {
		return nil, &Error{
			Kind:       kindForRemoteCode(rr.RespCode),
			RemoteCode: rr.RespCode,
			Message:    rr.RespMsg,
		}
	}
	if len(rr.Result) == 0 {
		// Some methods answer success with no result payload.
		return json.RawMessage("{}"), nil
	}
	return rr.Result, nil
}

func joinRemoteMessage(msg, subMsg string) string {
	if subMsg == "" {
		return msg
	}
	if msg == "" {
		return subMsg
	}
	return msg + ": " + subMsg
}

// The gateway wraps every list in a single-key object, e.g.
// {"products": {"product": [...]}}. The wire types below mirror that shape.

type wireProduct struct {
	ProductID           int64  `json:"product_id"`
	ProductTitle        string `json:"product_title"`
	ProductDetailURL    string `json:"product_detail_url"`
	SalePrice           string `json:"sale_price"`
	OriginalPrice       string `json:"original_price"`
	SalePriceCurrency   string `json:"sale_price_currency"`
	ProductMainImageURL string `json:"product_main_image_url"`
	EvaluateRate        string `json:"evaluate_rate"`
	LastestVolume       int    `json:"lastest_volume"` // sic, remote field name
	CommissionRate      string `json:"commission_rate"`
	PromotionLink       string `json:"promotion_link"`
}

func (w wireProduct) toProduct() Product {
	return Product{
		ID:             w.ProductID,
		Title:          w.ProductTitle,
		URL:            w.ProductDetailURL,
		Price:          w.SalePrice,
		OriginalPrice:  w.OriginalPrice,
		Currency:       w.SalePriceCurrency,
		ImageURL:       w.ProductMainImageURL,
		Rating:         parsePercent(w.EvaluateRate),
		OrderCount:     w.LastestVolume,
		CommissionRate: parsePercent(w.CommissionRate),
		AffiliateURL:   w.PromotionLink,
	}
}

type wireProductList struct {
	Product []wireProduct `json:"product"`
}

type wireSearchResult struct {
	TotalRecordCount   int             `json:"total_record_count"`
	CurrentPageNo      int             `json:"current_page_no"`
	CurrentRecordCount int             `json:"current_record_count"`
	Products           wireProductList `json:"products"`
}

func (w wireSearchResult) toSearchResult() SearchResult {
	products := make([]Product, 0, len(w.Products.Product))
	for _, wp := range w.Products.Product {
		products = append(products, wp.toProduct())
	}
	return SearchResult{
		Products:         products,
		TotalRecordCount: w.TotalRecordCount,
	}
}

type wireDetailResult struct {
	CurrentRecordCount int             `json:"current_record_count"`
	Products           wireProductList `json:"products"`
}

type wirePromotionLink struct {
	PromotionLink  string `json:"promotion_link"`
	SourceValue    string `json:"source_value"`
	CommissionRate string `json:"commission_rate"`
}

type wirePromotionLinkList struct {
	PromotionLink []wirePromotionLink `json:"promotion_link"`
}

type wireLinkResult struct {
	TotalResultCount int                   `json:"total_result_count"`
	TrackingID       string                `json:"tracking_id"`
	PromotionLinks   wirePromotionLinkList `json:"promotion_links"`
}

type wireCategory struct {
	CategoryID       int64  `json:"category_id"`
	CategoryName     string `json:"category_name"`
	ParentCategoryID int64  `json:"parent_category_id"`
}

type wireCategoryList struct {
	Category []wireCategory `json:"category"`
}

type wireCategoryResult struct {
	TotalResultCount int              `json:"total_result_count"`
	Categories       wireCategoryList `json:"categories"`
}

// parsePercent converts remote percent strings like "96.5%" or "8.5" to
// their numeric value. Unparseable input yields 0.
func parsePercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
