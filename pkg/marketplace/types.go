package marketplace

import "strings"

// Page size bounds enforced before any remote call.
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// AffiliateStatus describes how a product's affiliate link was resolved.
type AffiliateStatus string

const (
	// AffiliateStatusCached means the link was served from the link cache.
	AffiliateStatusCached AffiliateStatus = "cached"

	// AffiliateStatusGenerated means the link was generated by a remote call.
	AffiliateStatusGenerated AffiliateStatus = "generated"

	// AffiliateStatusUnavailable means the remote could not resolve the link.
	AffiliateStatusUnavailable AffiliateStatus = "unavailable"
)

// SearchRequest describes one product search against the marketplace.
// Price bounds are optional; nil means unbounded.
type SearchRequest struct {
	Keywords     string   `json:"keywords" validate:"required,max=200"`
	PageNo       int      `json:"page_no" validate:"omitempty,min=1"`
	PageSize     int      `json:"page_size" validate:"omitempty,min=1,max=50"`
	MinSalePrice *float64 `json:"min_sale_price,omitempty" validate:"omitempty,gte=0"`
	MaxSalePrice *float64 `json:"max_sale_price,omitempty" validate:"omitempty,gte=0"`
	Sort         string   `json:"sort,omitempty" validate:"omitempty,max=64"`
}

// Normalize returns a copy with defaults applied and keyword whitespace
// collapsed. Callers that cache search results must normalize before
// deriving a cache key so equivalent requests map to the same entry.
func (r SearchRequest) Normalize() SearchRequest {
	r.Keywords = strings.Join(strings.Fields(r.Keywords), " ")
	if r.PageNo == 0 {
		r.PageNo = 1
	}
	if r.PageSize == 0 {
		r.PageSize = DefaultPageSize
	}
	return r
}

// Validate checks the request before any network call.
// Violations are reported as invalid_parameter errors.
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Keywords) == "" {
		return &Error{Kind: KindInvalidParameter, Message: "keywords must not be empty"}
	}
	if r.PageNo < 1 {
		return &Error{Kind: KindInvalidParameter, Message: "page_no must be >= 1"}
	}
	if r.PageSize < 1 || r.PageSize > MaxPageSize {
		return &Error{Kind: KindInvalidParameter, Message: "page_size must be between 1 and 50"}
	}
	if r.MinSalePrice != nil && *r.MinSalePrice < 0 {
		return &Error{Kind: KindInvalidParameter, Message: "min_sale_price must not be negative"}
	}
	if r.MaxSalePrice != nil && *r.MaxSalePrice < 0 {
		return &Error{Kind: KindInvalidParameter, Message: "max_sale_price must not be negative"}
	}
	if r.MinSalePrice != nil && r.MaxSalePrice != nil && *r.MinSalePrice > *r.MaxSalePrice {
		return &Error{Kind: KindInvalidParameter, Message: "min_sale_price must not exceed max_sale_price"}
	}
	return nil
}

// Product is the marketplace-normalized product record. Prices stay as
// decimal strings exactly as the remote reports them; rating and commission
// are parsed out of the remote's percent strings.
type Product struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	URL             string          `json:"url"`
	Price           string          `json:"price"`
	OriginalPrice   string          `json:"original_price,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	ImageURL        string          `json:"image_url,omitempty"`
	Rating          float64         `json:"rating,omitempty"`
	OrderCount      int             `json:"order_count,omitempty"`
	CommissionRate  float64         `json:"commission_rate,omitempty"`
	AffiliateURL    string          `json:"affiliate_url,omitempty"`
	AffiliateStatus AffiliateStatus `json:"affiliate_status,omitempty"`
}

// SearchResult is one page of search results in remote order.
type SearchResult struct {
	Products         []Product `json:"products"`
	TotalRecordCount int       `json:"total_record_count"`
}

// AffiliateLink is a generated tracking link for one destination URL.
type AffiliateLink struct {
	OriginalURL    string  `json:"original_url"`
	AffiliateURL   string  `json:"affiliate_url"`
	TrackingID     string  `json:"tracking_id,omitempty"`
	CommissionRate float64 `json:"commission_rate,omitempty"`
}

// Category is one node of the marketplace category tree.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parent_id,omitempty"`
}

// Methods holds the remote method names used for each operation. The names
// are gateway constants, not business logic; override them when pointing the
// client at a marketplace with a different method vocabulary.
type Methods struct {
	ProductQuery  string
	ProductDetail string
	LinkGenerate  string
	CategoryGet   string
}

// DefaultMethods returns the method names of the AliExpress affiliate
// gateway, the marketplace this client is primarily developed against.
func DefaultMethods() Methods {
	return Methods{
		ProductQuery:  "aliexpress.affiliate.product.query",
		ProductDetail: "aliexpress.affiliate.productdetail.get",
		LinkGenerate:  "aliexpress.affiliate.link.generate",
		CategoryGet:   "aliexpress.affiliate.category.get",
	}
}

func (m Methods) withDefaults() Methods {
	def := DefaultMethods()
	if m.ProductQuery == "" {
		m.ProductQuery = def.ProductQuery
	}
	if m.ProductDetail == "" {
		m.ProductDetail = def.ProductDetail
	}
	if m.LinkGenerate == "" {
		m.LinkGenerate = def.LinkGenerate
	}
	if m.CategoryGet == "" {
		m.CategoryGet = def.CategoryGet
	}
	return m
}
