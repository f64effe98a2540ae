// x402fetch fetches a payment-gated URL, settling payment challenges
// automatically.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/payrail/x402/internal/client"
	"github.com/payrail/x402/internal/payauth"
)

func main() {
	var (
		method     = flag.String("method", http.MethodGet, "HTTP method")
		body       = flag.String("body", "", "request body for POST endpoints")
		credential = flag.String("credential", "", "payment credential sent to the settlement endpoint")
		paymentURL = flag.String("payment-url", "", "settlement endpoint. Defaults to /payment on the target host")
		hmacKey    = flag.String("hmac-key", "", "sign an X-PAYMENT authorization with this key instead of calling the settlement endpoint")
		payer      = flag.String("payer", "demo-payer", "payer address for signed authorizations")
		payee      = flag.String("payee", "demo-payee", "payee address for signed authorizations")
		timeout    = flag.Duration("timeout", 30*time.Second, "request timeout")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <url>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	url := flag.Arg(0)

	cfg := client.Config{
		HTTPClient: &http.Client{Timeout: *timeout},
		Credential: *credential,
		PaymentURL: *paymentURL,
	}

	if *hmacKey != "" {
		signer, err := payauth.NewAuthorizationSigner(
			payauth.HMACSigner{Key: []byte(*hmacKey), Addr: *payer},
			payauth.Config{PayTo: *payee},
		)
		if err != nil {
			log.Println(err)
			os.Exit(1)
		}
		cfg.Signer = signer
	}

	c := client.New(cfg)

	var reqBody []byte
	if *body != "" {
		reqBody = []byte(*body)
	}

	outcome, err := c.Fetch(context.Background(), strings.ToUpper(*method), url, reqBody)
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}

	if outcome.Paid {
		log.Printf("settled payment for resource %q\n", outcome.Resource)
	}
	fmt.Println(string(outcome.Body))
}
