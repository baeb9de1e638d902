package product

// Product is a listing owned by a seller.
type Product struct {
	ID               int64   `db:"id"`
	Name             string  `db:"name"`
	ShortDescription string  `db:"short_description"`
	LongDescription  string  `db:"long_description"`
	Price            float64 `db:"price"`
	Category         string  `db:"category"`
	ImageURL         string  `db:"image_url"`
	SellerID         int64   `db:"seller_id"`

	// SellerName is filled on reads.
	SellerName string `db:"seller_name"`
}

// Filter narrows product listings. Zero fields do not filter.
type Filter struct {
	Category string
	SellerID int64
}
