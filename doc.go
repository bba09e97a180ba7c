// Package purchasekit is a client SDK for a hosted subscription/payment
// validation service layered over Stripe. It presents product catalogs,
// initiates hosted checkout, tracks purchase and subscription status, and
// keeps that status fresh over time without a server-side session.
//
// The client persists access credentials and purchase-related state in a
// pluggable key-value store (pkg/kv), serves the catalog through a
// time-boxed cache (pkg/catalog), and autonomously re-validates
// subscriptions around their expected expiry through a background
// scheduler (pkg/refresh).
//
// # Usage
//
//	store, err := kv.NewFileStore("purchasekit.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := purchasekit.New(purchasekit.Config{
//		AppName: "demo-app",
//		APIKey:  "1234567890",
//	}, store)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Run the background refresh loop.
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	go client.Start(ctx)
//
//	products, err := client.GetProducts(ctx)
//	// present products, then:
//	session, err := client.Checkout(ctx, purchasekit.CheckoutRequest{
//		OfferID:             products[0].Offers[0].ID,
//		ApplicationUsername: "user@example.com",
//		SuccessURL:          "https://example.com/success",
//		CancelURL:           "https://example.com/cancel",
//	})
//	// navigate the user to session.URL; later:
//	purchases, err := client.GetPurchases(ctx, purchasekit.PurchasesRequest{})
//
// Every call to the service carries a Basic Authorization header built from
// the static application identity (AppName:APIKey). Access to individual
// checkout sessions and subscriptions is additionally authorized by
// per-resource access keys, which the client stores and rotates
// transparently as the service returns them.
package purchasekit
