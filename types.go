package purchasekit

import (
	"time"

	"github.com/purchasekit/purchasekit/pkg/catalog"
)

// RenewalIntent states whether a subscription will renew at the next
// expiration.
type RenewalIntent string

const (
	RenewalIntentRenew  RenewalIntent = "Renew"
	RenewalIntentCancel RenewalIntent = "Cancel"
)

// Purchase is a snapshot of one subscription or one-time purchase as
// reported by the validation service. Snapshots are immutable and are
// superseded wholesale by the next lookup, never merged field by field.
type Purchase struct {
	PurchaseID      string        `json:"purchaseId"`
	TransactionID   string        `json:"transactionId,omitempty"`
	ProductID       string        `json:"productId"`
	PurchaseDate    time.Time     `json:"purchaseDate"`
	LastRenewalDate time.Time     `json:"lastRenewalDate,omitempty"`
	ExpirationDate  time.Time     `json:"expirationDate,omitempty"`
	RenewalIntent   RenewalIntent `json:"renewalIntent,omitempty"`
	IsTrialPeriod   bool          `json:"isTrialPeriod,omitempty"`
	AmountMicros    int64         `json:"amountMicros,omitempty"`
	Currency        string        `json:"currency,omitempty"`
}

// IsExpired reports whether the purchase's expiration has passed. Purchases
// without an expiration (one-time purchases) never expire.
func (p Purchase) IsExpired() bool {
	return !p.ExpirationDate.IsZero() && p.ExpirationDate.Before(time.Now())
}

// CheckoutRequest starts a hosted checkout session.
type CheckoutRequest struct {
	OfferID             string `json:"offerId"`
	ApplicationUsername string `json:"applicationUsername"`
	SuccessURL          string `json:"successUrl"`
	CancelURL           string `json:"cancelUrl"`
}

// CheckoutSession is the hosted checkout created for a CheckoutRequest.
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	AccessKey string `json:"accessKey"`
}

// PurchasesRequest scopes a purchase lookup. Both fields are optional;
// omitted values resolve through the credential store's current pointers.
type PurchasesRequest struct {
	ID        string
	AccessKey string
}

// PortalRequest opens the processor's billing portal for a subscription.
// ID and AccessKey are optional and resolve like PurchasesRequest fields.
type PortalRequest struct {
	ReturnURL string
	ID        string
	AccessKey string
}

// ChangePlanRequest switches a subscription to a different offer.
// ID and AccessKey are optional and resolve like PurchasesRequest fields.
type ChangePlanRequest struct {
	OfferID   string
	ID        string
	AccessKey string
}

// Wire envelopes. Every response carries an ok flag; a false flag or a
// non-success status is a failure, with message/code surfaced when present.

type envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

type productsResponse struct {
	envelope
	Products []catalog.Product `json:"products"`
}

type checkoutResponse struct {
	envelope
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	AccessKey string `json:"accessKey"`
}

type purchasesResponse struct {
	envelope
	Purchases     []Purchase        `json:"purchases"`
	NewAccessKeys map[string]string `json:"new_access_keys,omitempty"`
}

type portalResponse struct {
	envelope
	URL string `json:"url"`
}

type changePlanResponse struct {
	envelope
	Purchase      *Purchase         `json:"purchase"`
	NewAccessKeys map[string]string `json:"new_access_keys,omitempty"`
}
