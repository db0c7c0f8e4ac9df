package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPublicURL(t *testing.T) {
	tests := []struct {
		url    string
		public bool
	}{
		{"http://10.0.0.5/admin", false},
		{"http://169.254.169.254/latest/meta-data/", false},
		{"http://127.0.0.1:8080/", false},
		{"http://[::1]/", false},
		{"http://[::ffff:192.168.1.1]/", false},
		{"http://100.64.1.2/", false},
		{"http://0.0.0.0/", false},
		{"https://93.184.216.34/page", true},
		{"https://[2606:4700::1111]/", true},
	}

	for _, tt := range tests {
		err := CheckPublicURL(context.Background(), tt.url)
		if tt.public {
			assert.NoError(t, err, tt.url)
		} else {
			assert.ErrorIs(t, err, ErrNonPublicAddress, tt.url)
		}
	}

	assert.Error(t, CheckPublicURL(context.Background(), "not a url"))
}

func TestPublicClientRefusesLoopback(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := NewPublicClient(time.Second)

	resp, err := client.Get(srv.URL)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonPublicAddress)
	assert.Zero(t, hits)
}
