package tsclient_test

import (
	"context"
	"fmt"
	"log"

	"github.com/digitorus/tsclient"
	"github.com/digitorus/tsclient/timestamptest"
)

// ExampleDigest computes the message imprint that is sent to a TSA.
func ExampleDigest() {
	sum, err := tsclient.Digest([]byte("hello world"), tsclient.SHA256)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%x\n", sum)
	// Output: b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9
}

// ExampleClient_Timestamp obtains a validated time-stamp token from a TSA.
func ExampleClient_Timestamp() {
	tsa, err := timestamptest.NewTSA()
	if err != nil {
		log.Fatal(err)
	}
	srv := timestamptest.NewServer(tsa)
	defer srv.Close()

	client, err := tsclient.NewClient(tsclient.Config{
		URL:      timestamptest.URL(srv),
		Verifier: &tsclient.PKCS7Verifier{Roots: tsa.CertPool()},
	})
	if err != nil {
		log.Fatal(err)
	}

	token, err := client.Timestamp(context.Background(), []byte("hello world"))
	if err != nil {
		log.Fatal(err)
	}

	d, err := token.ContentDigest()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(d)
	fmt.Println(token.Policy)
	fmt.Println(token.Certificates[0].Subject.Organization)

	// Output:
	// sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9
	// 1.3.6.1.4.1.4146.2.3
	// [Digitorus]
}
