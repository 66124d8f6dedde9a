package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscountPercents(t *testing.T) {
	var gotIDs string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/discounts", r.URL.Path)
		gotIDs = r.URL.Query().Get("ids")
		w.Write([]byte(`{"440": 20, "570": 0}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", time.Second)
	require.NoError(t, err)

	got, err := c.DiscountPercents(context.Background(), []string{"440", "570"})
	require.NoError(t, err)
	assert.Equal(t, "440,570", gotIDs)
	assert.Equal(t, map[string]int{"440": 20, "570": 0}, got)
}

func TestItemName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/440" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"name": "Team Fortress 2"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	name, err := c.ItemName(context.Background(), "440")
	require.NoError(t, err)
	assert.Equal(t, "Team Fortress 2", name)

	_, err = c.ItemName(context.Background(), "999")
	assert.Error(t, err)
}

func TestCatalogErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/discounts" && r.URL.Query().Get("ids") == "bad" {
			w.Write([]byte(`not json`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = c.DiscountPercents(context.Background(), []string{"440"})
	assert.ErrorContains(t, err, "502")

	_, err = c.DiscountPercents(context.Background(), []string{"bad"})
	assert.ErrorContains(t, err, "decode")

	_, err = NewClient("not a url", time.Second)
	assert.Error(t, err)
}
