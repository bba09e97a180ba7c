package purchasekit_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/purchasekit/purchasekit"
	"github.com/purchasekit/purchasekit/pkg/kv"
	"github.com/purchasekit/purchasekit/pkg/logger"
)

// Example demonstrates the typical lifecycle: construct a client over a
// durable store, run the refresh loop, and walk the purchase flow.
func Example() {
	store, err := kv.NewFileStore(filepath.Join(os.TempDir(), "purchasekit.json"))
	if err != nil {
		log.Fatal(err)
	}

	client, err := purchasekit.New(purchasekit.Config{
		AppName: "demo-app",
		APIKey:  "1234567890",
	}, store,
		purchasekit.WithLogger(logger.New(logger.WithFormat(logger.FormatJSON))),
		purchasekit.WithRedirector(func(url string) error {
			fmt.Println("navigate to:", url)
			return nil
		}))
	if err != nil {
		log.Fatal(err)
	}

	// The refresh loop re-validates subscriptions around their expiry.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Start(ctx) }()

	products, err := client.GetProducts(ctx)
	if err != nil {
		log.Fatal(err)
	}

	if len(products) > 0 {
		_, err = client.Checkout(ctx, purchasekit.CheckoutRequest{
			OfferID:             products[0].Offers[0].ID,
			ApplicationUsername: "user@example.com",
			SuccessURL:          "https://example.com/success",
			CancelURL:           "https://example.com/cancel",
		})
		if err != nil {
			log.Fatal(err)
		}
	}

	// After checkout completes, purchases resolve through stored credentials.
	purchases, err := client.GetPurchases(ctx, purchasekit.PurchasesRequest{})
	if err != nil {
		log.Fatal(err)
	}
	for _, p := range purchases {
		fmt.Println(p.ProductID, p.ExpirationDate)
	}
}
