package custody

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

func TestDeriveDeterministic(t *testing.T) {
	assert.Equal(t, "m/44'/397'/0',alice.near", Derive("m/44'/397'/0'", "alice.near"))
	assert.Equal(t, Derive("m/44'/397'/0'", "alice.near"), Derive("m/44'/397'/0'", "alice.near"))
}

func TestDeriveSystemAccount(t *testing.T) {
	assert.Equal(t, "m/44'/397'/0'", Derive("m/44'/397'/0'", ""))
}

func TestDeriveDistinctUsersDistinctPaths(t *testing.T) {
	a := Derive("m/44'/397'/0'", "alice.near")
	b := Derive("m/44'/397'/0'", "bob.near")
	assert.NotEqual(t, a, b)
}

func TestPathForIntent(t *testing.T) {
	in := &intent.ValidatedIntent{Intent: intent.Intent{UserDestination: "alice.near"}}
	assert.Equal(t, "m/44'/397'/0',alice.near", PathForIntent("m/44'/397'/0'", in))
}

func TestHTTPSignerRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/sign":
			var req signRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "m/44'/397'/0',alice.near", req.Path)
			assert.Equal(t, "ed25519", req.KeyType)
			json.NewEncoder(w).Encode(signResponse{Signature: "sig-" + req.Payload})
		case "/v1/derive":
			assert.Equal(t, "m/44'/397'/0',alice.near", r.URL.Query().Get("path"))
			json.NewEncoder(w).Encode(deriveResponse{PublicKey: "pk-1"})
		default:
			t.Fatalf("unexpected route %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	signer := NewHTTPSigner(srv.URL, time.Second, zap.NewNop())
	ctx := context.Background()

	sig, err := signer.RequestSignature(ctx, "m/44'/397'/0',alice.near", "deadbeef", "ed25519")
	require.NoError(t, err)
	assert.Equal(t, "sig-deadbeef", sig)

	pk, err := signer.DeriveAddress(ctx, "m/44'/397'/0',alice.near")
	require.NoError(t, err)
	assert.Equal(t, "pk-1", pk)
}

func TestHTTPSignerPropagatesServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(signResponse{Error: "unknown path"})
	}))
	defer srv.Close()

	signer := NewHTTPSigner(srv.URL, time.Second, zap.NewNop())
	_, err := signer.RequestSignature(context.Background(), "m/0", "00", "ed25519")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown path")
}

func TestHTTPSignerSerializesPerPath(t *testing.T) {
	var mu sync.Mutex
	inFlight := map[string]int{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req signRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		mu.Lock()
		inFlight[req.Path]++
		assert.Equal(t, 1, inFlight[req.Path], "concurrent signing on one path")
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight[req.Path]--
		mu.Unlock()
		json.NewEncoder(w).Encode(signResponse{Signature: "s"})
	}))
	defer srv.Close()

	signer := NewHTTPSigner(srv.URL, time.Second, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		path := "m/0,alice"
		if i%2 == 1 {
			path = "m/0,bob"
		}
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, err := signer.RequestSignature(context.Background(), p, "00", "ed25519")
			assert.NoError(t, err)
		}(path)
	}
	wg.Wait()
}
