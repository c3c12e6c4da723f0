//go:build ignore

// mock-jwks-server.go - Local JWKS + token server for testing admin routes
//
// Usage:
//   go run scripts/mock-jwks-server.go
//
// Generates an ephemeral RSA key, serves it at /jwks.json, and mints RS256
// bearer tokens at /token. Point the relayer at it with:
//
//   jwks:
//     url: http://localhost:8088/jwks.json
//     issuer: http://localhost:8088

package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	port   = 8088
	keyID  = "local-dev-key"
	issuer = "http://localhost:8088"
)

func main() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}

	http.HandleFunc("/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kid": keyID,
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})

	http.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		now := time.Now()
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss": issuer,
			"sub": "operator",
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		})
		token.Header["kid"] = keyID

		signed, err := token.SignedString(key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": signed,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Mock JWKS server starting on http://localhost%s", addr)
	log.Printf("GET /jwks.json - JSON Web Key Set")
	log.Printf("GET /token     - Mints an RS256 bearer token")
	log.Fatal(http.ListenAndServe(addr, nil))
}
