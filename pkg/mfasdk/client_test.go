package mfasdk

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testCustomerKey = "cust-123"
	testAPIKey      = "api-secret"
)

func newTestClient(serverURL string) *Client {
	return New(Config{
		BaseURL:     serverURL,
		CustomerKey: testCustomerKey,
		APIKey:      testAPIKey,
	})
}

func TestRequestSigning(t *testing.T) {
	var gotCustomerKey, gotTimestamp, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCustomerKey = r.Header.Get("Customer-Key")
		gotTimestamp = r.Header.Get("Timestamp")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(Response{Status: StatusSuccess, TxID: "tx-1"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.Challenge(context.Background(), "alice", "alice@corp.example", "", "OTP OVER EMAIL")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, resp.Status)
	require.Equal(t, "tx-1", resp.TxID)

	require.Equal(t, testCustomerKey, gotCustomerKey)
	require.NotEmpty(t, gotTimestamp)

	sum := sha512.Sum512([]byte(testCustomerKey + gotTimestamp + testAPIKey))
	require.Equal(t, hex.EncodeToString(sum[:]), gotAuth,
		"signature must be sha512(customerKey + timestamp + apiKey)")
}

func TestProviderErrorVsTransportError(t *testing.T) {
	t.Run("well formed failure is a provider error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(Response{Status: StatusError, Message: "bad auth type"})
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Challenge(context.Background(), "alice", "", "", "NOPE")
		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, StatusError, pe.Status)
		require.Equal(t, http.StatusBadRequest, pe.HTTPStatus)
		require.False(t, IsTransport(err))
	})

	t.Run("unparseable failure body is transport", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>nginx</html>"))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Challenge(context.Background(), "alice", "", "", "KBA")
		require.True(t, IsTransport(err))
	})

	t.Run("unreachable server is transport", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := newTestClient(srv.URL).Challenge(context.Background(), "alice", "", "", "KBA")
		require.True(t, IsTransport(err))
	})
}

func TestCreateUserLimit(t *testing.T) {
	t.Run("limit in error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(Response{
				Status:  StatusError,
				Message: "User creation limit reached, please upgrade your license",
			})
		}))
		defer srv.Close()

		err := newTestClient(srv.URL).CreateUser(context.Background(), "alice", "a@b.c", "")
		require.ErrorIs(t, err, ErrUserLimit)
	})

	t.Run("limit in http failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(Response{Status: StatusError, Message: "user limit exceeded"})
		}))
		defer srv.Close()

		err := newTestClient(srv.URL).CreateUser(context.Background(), "alice", "a@b.c", "")
		require.ErrorIs(t, err, ErrUserLimit)
	})

	t.Run("other failures pass through", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(Response{Status: StatusError, Message: "internal error"})
		}))
		defer srv.Close()

		err := newTestClient(srv.URL).CreateUser(context.Background(), "alice", "a@b.c", "")
		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		require.NotErrorIs(t, err, ErrUserLimit)
	})
}

func TestSearchUser(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(UserResult{Status: StatusSuccess, Username: "alice", Enabled: true})
		}))
		defer srv.Close()

		result, found, err := newTestClient(srv.URL).SearchUser(context.Background(), "alice")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "alice", result.Username)
	})

	t.Run("404 means not found, not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(Response{Status: StatusError, Message: "no such user"})
		}))
		defer srv.Close()

		_, found, err := newTestClient(srv.URL).SearchUser(context.Background(), "ghost")
		require.NoError(t, err)
		require.False(t, found)
	})
}

func TestValidateSendsAnswers(t *testing.T) {
	var got validateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Response{Status: StatusSuccess})
	}))
	defer srv.Close()

	answers := map[string]string{"First pet": "rex"}
	_, err := newTestClient(srv.URL).Validate(context.Background(), "alice", "tx-9", "", "KBA", answers)
	require.NoError(t, err)

	require.Equal(t, testCustomerKey, got.CustomerKey)
	require.Equal(t, "tx-9", got.TxID)
	require.Equal(t, answers, got.Answers)
}

func TestFetchLicense(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/customer/license", r.URL.Path)
		_ = json.NewEncoder(w).Encode(License{Status: StatusSuccess, Plan: "business", UserLimit: 50, UsersCreated: 12})
	}))
	defer srv.Close()

	lic, err := newTestClient(srv.URL).FetchLicense(context.Background())
	require.NoError(t, err)
	require.Equal(t, "business", lic.Plan)
	require.Equal(t, 50, lic.UserLimit)
}
