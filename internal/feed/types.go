// internal/feed/types.go
package feed

// CategoryDecl is a <category> element as declared in the feed.
type CategoryDecl struct {
	ID       string
	ParentID *string
	Name     string
}

// RawOffer mirrors one <offer> element. Optional children stay nil when the
// element is absent so that absence can be told apart from an empty value.
type RawOffer struct {
	ID          string     `xml:"id,attr"`
	GroupID     *string    `xml:"group_id"`
	Name        *string    `xml:"name"`
	Description *string    `xml:"description"`
	Vendor      *string    `xml:"vendor"`
	SellerID    *string    `xml:"seller_id"`
	SellerName  *string    `xml:"seller_name"`
	Pictures    []string   `xml:"picture"`
	CategoryID  *string    `xml:"categoryId"`
	Params      []RawParam `xml:"param"`
	RatingCount *string    `xml:"rating_count"`
	RatingValue *string    `xml:"rating_value"`
	OldPrice    *string    `xml:"oldprice"`
	Price       *string    `xml:"price"`
	Bonuses     *string    `xml:"bonuses"`
	Sales       *string    `xml:"sales"`
	CurrencyID  *string    `xml:"currencyId"`
	Barcode     *string    `xml:"barcode"`
}

type RawParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}
