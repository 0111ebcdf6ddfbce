package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Complex represents an apartment complex (permanent entity).
// ExternalID is the listing portal's complex number; KBComplexID is the
// appraisal source's 단지기본일련번호 and stays empty until a KB run links it.
type Complex struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ExternalID      string    `json:"external_id" db:"external_id"`
	Name            string    `json:"name" db:"name"`
	RegionCode      string    `json:"region_code" db:"region_code"` // 10-digit legal dong code
	Address         string    `json:"address" db:"address"`
	KBComplexID     *string   `json:"kb_complex_id" db:"kb_complex_id"`
	Lat             *float64  `json:"lat" db:"lat"`
	Lon             *float64  `json:"lon" db:"lon"`
	TotalHouseholds *int      `json:"total_households" db:"total_households"`
	CompletionYear  *int      `json:"completion_year" db:"completion_year"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Listing represents an active-market article for a complex.
// Prices are in 만원 (10,000 KRW units), the unit every source reports in.
type Listing struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ComplexID   uuid.UUID `json:"complex_id" db:"complex_id"`
	ExternalID  string    `json:"external_id" db:"external_id"` // article number
	TradeType   string    `json:"trade_type" db:"trade_type"`   // A1 sale, B1 jeonse, B2 monthly
	Price       int64     `json:"price" db:"price"`
	AreaSqm     *float64  `json:"area_sqm" db:"area_sqm"`
	Floor       *int      `json:"floor" db:"floor"`
	Direction   string    `json:"direction" db:"direction"`
	Description string    `json:"description" db:"description"`
	// RegisteredAt is the portal's confirmation date for the article,
	// distinct from the crawl bookkeeping in FirstSeen/LastSeen.
	RegisteredAt *time.Time `json:"registered_at" db:"registered_at"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	FirstSeen    time.Time  `json:"first_seen" db:"first_seen"`
	LastSeen     time.Time  `json:"last_seen" db:"last_seen"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// AppraisalPrice is a KB price band for one complex and exclusive area.
// One row per (complex, area); re-collection overwrites in place.
type AppraisalPrice struct {
	ID        int64     `json:"id" db:"id"`
	ComplexID uuid.UUID `json:"complex_id" db:"complex_id"`
	AreaSqm   float64   `json:"area_sqm" db:"area_sqm"`
	PriceLow  *int64    `json:"price_low" db:"price_low"`
	PriceMid  *int64    `json:"price_mid" db:"price_mid"`
	PriceHigh *int64    `json:"price_high" db:"price_high"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Transaction is a closed government-reported deal. Floor is nullable
// because low-rise records omit it; the dedup index treats NULL floors
// as equal.
type Transaction struct {
	ID         int64     `json:"id" db:"id"`
	ComplexID  uuid.UUID `json:"complex_id" db:"complex_id"`
	AptName    string    `json:"apt_name" db:"apt_name"`
	RegionCode string    `json:"region_code" db:"region_code"` // 5-digit district code
	AreaSqm    float64   `json:"area_sqm" db:"area_sqm"`
	Floor      *int      `json:"floor" db:"floor"`
	DealDate   time.Time `json:"deal_date" db:"deal_date"`
	DealPrice  int64     `json:"deal_price" db:"deal_price"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Comparison is the derived bargain row for one (complex, area) pair:
// appraisal midpoint against the freshest comparable deal.
type Comparison struct {
	ID              int64     `json:"id" db:"id"`
	ComplexID       uuid.UUID `json:"complex_id" db:"complex_id"`
	AreaSqm         float64   `json:"area_sqm" db:"area_sqm"`
	AppraisalMid    int64     `json:"appraisal_mid" db:"appraisal_mid"`
	LatestDealPrice int64     `json:"latest_deal_price" db:"latest_deal_price"`
	LatestDealDate  time.Time `json:"latest_deal_date" db:"latest_deal_date"`
	DiscountRate    float64   `json:"discount_rate" db:"discount_rate"`
	DealCount3M     int       `json:"deal_count_3m" db:"deal_count_3m"`
	ComputedAt      time.Time `json:"computed_at" db:"computed_at"`
}

// CollectRun records one execution of a collection job.
type CollectRun struct {
	ID           int64           `json:"id" db:"id"`
	Source       string          `json:"source" db:"source"`
	StartedAt    time.Time       `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at" db:"finished_at"`
	Status       string          `json:"status" db:"status"` // running, completed, failed, partial
	Fetched      int             `json:"fetched" db:"fetched"`
	Saved        int             `json:"saved" db:"saved"`
	Duplicates   int             `json:"duplicates" db:"duplicates"`
	AutoCreated  int             `json:"auto_created" db:"auto_created"`
	ErrorsCount  int             `json:"errors_count" db:"errors_count"`
	ErrorMessage string          `json:"error_message" db:"error_message"`
	Metadata     json.RawMessage `json:"metadata" db:"metadata"`
}

// Trade types as the listing portal encodes them
const (
	TradeTypeSale    = "A1"
	TradeTypeJeonse  = "B1"
	TradeTypeMonthly = "B2"
)

// Run sources
const (
	RunSourceListings     = "listings"
	RunSourceAppraisal    = "appraisal"
	RunSourceTransactions = "transactions"
	RunSourceComparison   = "comparison"
)

// Run status
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusPartial   = "partial"
)
