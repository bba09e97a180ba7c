package catalog

// ProductType classifies how a product is purchased and consumed.
type ProductType string

const (
	ProductTypeSubscription  ProductType = "paid subscription"
	ProductTypeConsumable    ProductType = "consumable"
	ProductTypeNonConsumable ProductType = "non consumable"
)

// RecurrenceMode describes how a pricing phase repeats.
type RecurrenceMode string

const (
	RecurrenceModeNonRecurring      RecurrenceMode = "NON_RECURRING"
	RecurrenceModeFiniteRecurring   RecurrenceMode = "FINITE_RECURRING"
	RecurrenceModeInfiniteRecurring RecurrenceMode = "INFINITE_RECURRING"
)

// PaymentMode describes when a pricing phase is charged.
type PaymentMode string

const (
	PaymentModePayAsYouGo PaymentMode = "PayAsYouGo"
	PaymentModePayUpFront PaymentMode = "PayUpFront"
	PaymentModeFreeTrial  PaymentMode = "FreeTrial"
)

// PricingPhase is one segment of an offer's price/duration schedule.
// Amounts are in micro-units of the currency ($9.99 => 9_990_000).
type PricingPhase struct {
	PriceMicros   int64          `json:"priceMicros"`
	Currency      string         `json:"currency"`                // ISO 4217 code
	BillingPeriod string         `json:"billingPeriod,omitempty"` // ISO 8601 duration, e.g. "P1M"
	Recurrence    RecurrenceMode `json:"recurrenceMode,omitempty"`
	Payment       PaymentMode    `json:"paymentMode,omitempty"`
}

// Offer is a purchasable variant of a product with its own pricing schedule.
type Offer struct {
	ID            string         `json:"id"`
	Platform      string         `json:"platform"`
	OfferType     string         `json:"offerType"`
	PricingPhases []PricingPhase `json:"pricingPhases"`
}

// Product describes one purchasable item as returned by the catalog
// endpoint. Products are immutable snapshots; a refreshed catalog replaces
// them wholesale.
type Product struct {
	Type        ProductType       `json:"type"`
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Offers      []Offer           `json:"offers"`
}
