//go:build ignore

// submit-intent.go - Signs and submits a test intent against a local relayer
//
// Usage:
//   go run scripts/submit-intent.go [-url http://localhost:8080]
//
// Generates an ephemeral ed25519 key, builds a same-chain swap intent whose
// userDestination is the key itself, signs the canonical intent message and
// POSTs it. Handy for smoke-testing the full intake path without a wallet.

package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/mr-tron/base58"

	"github.com/omnivault/intent-relayer/pkg/auth"
	"github.com/omnivault/intent-relayer/pkg/intent"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Relayer base URL")
	flag.Parse()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}

	in := intent.Intent{
		IntentID:         fmt.Sprintf("smoke-%d", time.Now().Unix()),
		SourceChain:      intent.ChainNear,
		DestinationChain: intent.ChainNear,
		SourceAsset:      "usdc.near",
		FinalAsset:       "wnear.near",
		SourceAmount:     "1000000",
		UserDestination:  base58.Encode(pub),
		AgentDestination: "agent.near",
		Metadata:         intent.Metadata{"action": "swap"},
	}

	message := auth.CreateIntentSigningMessage(&in)
	in.UserSignature = &intent.UserSignature{
		Type:      "solana_raw",
		Message:   message,
		Signature: base58.Encode(ed25519.Sign(priv, []byte(message))),
		PublicKey: base58.Encode(pub),
	}

	body, err := json.Marshal(in)
	if err != nil {
		log.Fatalf("encode intent: %v", err)
	}

	resp, err := http.Post(*baseURL+"/api/v1/intents", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("submit intent: %v", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	log.Printf("intent %s -> %d %s", in.IntentID, resp.StatusCode, out)
}
