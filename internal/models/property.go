package models

import "time"

type ListingType string

const (
	ListingTypeSale ListingType = "sale"
	ListingTypeRent ListingType = "rent"
	ListingTypeSold ListingType = "sold"
)

// ListingTypes is the order in which listing types are synced.
var ListingTypes = []ListingType{ListingTypeRent, ListingTypeSold, ListingTypeSale}

func (t ListingType) Valid() bool {
	switch t {
	case ListingTypeSale, ListingTypeRent, ListingTypeSold:
		return true
	}
	return false
}

// SoldMethod is how a sold listing changed hands.
type SoldMethod string

const (
	SoldAtAuction      SoldMethod = "AUCTION"
	SoldPrivateTreaty  SoldMethod = "PRIVATE_TREATY"
	SoldPriorToAuction SoldMethod = "PRIOR_TO_AUCTION"
	SoldOther          SoldMethod = "OTHER"
)

// DefaultListingSource is assumed for scraped records that do not name their source.
const DefaultListingSource = "DOMAIN"

type Features struct {
	Bedrooms      *float64 `json:"bedrooms,omitempty"`
	Bathrooms     *float64 `json:"bathrooms,omitempty"`
	ParkingSpaces *float64 `json:"parking_spaces,omitempty"`
	LandSize      *float64 `json:"land_size,omitempty"`
	PropertyType  string   `json:"property_type,omitempty"`
}

// PropertyRecord is one scraped listing observation. Price holds the free text
// display price, PriceFrom/PriceTo the advertised range when one exists.
type PropertyRecord struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	ExternalID     string      `gorm:"uniqueIndex:idx_listing_source_external;not null" json:"external_id"`
	Source         string      `gorm:"uniqueIndex:idx_listing_source_external;not null" json:"source"`
	SourceURL      string      `json:"source_url,omitempty"`
	Suburb         string      `gorm:"index:idx_listing_location" json:"suburb"`
	State          string      `gorm:"index:idx_listing_location" json:"state"`
	Postcode       string      `gorm:"index:idx_listing_location" json:"postcode"`
	DisplayAddress string      `json:"display_address,omitempty"`
	ListingType    ListingType `gorm:"index;not null" json:"listing_type"`
	Price          string      `json:"price,omitempty"`
	PriceFrom      *float64    `json:"price_from,omitempty"`
	PriceTo        *float64    `json:"price_to,omitempty"`
	SoldPrice      *float64    `json:"sold_price,omitempty"`
	SoldDate       *time.Time  `json:"sold_date,omitempty"`
	SoldAt         *SoldMethod `json:"sold_at,omitempty"`
	ListedDate     *time.Time  `json:"listed_date,omitempty"`
	DaysOnMarket   *int        `json:"days_on_market,omitempty"`
	Features       Features    `gorm:"embedded;embeddedPrefix:feature_" json:"features"`
	ScrapedAt      time.Time   `json:"scraped_at"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (PropertyRecord) TableName() string {
	return "properties"
}

// DedupKey identifies a listing across scrapes.
func (p PropertyRecord) DedupKey() string {
	return p.Source + "|" + p.ExternalID
}

// LocationRef addresses one suburb in listing store queries.
type LocationRef struct {
	Suburb   string `json:"suburb"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
}

type ListingQuery struct {
	Locations   []LocationRef
	ListingType ListingType
	Page        int
	PageSize    int
}

type ListingPage struct {
	Data       []PropertyRecord `json:"data"`
	TotalPages int              `json:"total_pages"`
}
