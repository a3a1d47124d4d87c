package farm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olgasafonova/wikikit/wiki"
)

func TestForAllWikisKeepsInputOrder(t *testing.T) {
	reg := NewRegistry(WithFactory(countingFactory(new(atomic.Int32))))
	defer reg.Clear()

	domains := []string{"en.wikipedia.org", "de.wikipedia.org", "fr.wikipedia.org"}
	results := ForAllWikis(context.Background(), reg, domains, 2,
		func(ctx context.Context, client *wiki.Client) (string, error) {
			return client.BaseURL(), nil
		})

	require.Len(t, results, len(domains))
	for i, res := range results {
		assert.Equal(t, domains[i], res.Domain)
		require.NoError(t, res.Err)
		assert.Contains(t, res.Value, domains[i])
	}
}

func TestForAllWikisReportsPerWikiErrors(t *testing.T) {
	reg := NewRegistry(WithFactory(countingFactory(new(atomic.Int32))))
	defer reg.Clear()

	domains := []string{"en.wikipedia.org", "broken.example.org", "fr.wikipedia.org"}
	results := ForAllWikis(context.Background(), reg, domains, 0,
		func(ctx context.Context, client *wiki.Client) (int, error) {
			if strings.Contains(client.BaseURL(), "broken") {
				return 0, fmt.Errorf("boom")
			}
			return 1, nil
		})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err, "a failing wiki must not hide the others")
	assert.Equal(t, 1, results[2].Value)
}

func TestForAllWikisBoundsParallelism(t *testing.T) {
	reg := NewRegistry(WithFactory(countingFactory(new(atomic.Int32))))
	defer reg.Clear()

	const limit = 2
	var mu sync.Mutex
	inFlight, peak := 0, 0

	domains := []string{
		"a.wikipedia.org", "b.wikipedia.org", "c.wikipedia.org",
		"d.wikipedia.org", "e.wikipedia.org", "f.wikipedia.org",
	}
	ForAllWikis(context.Background(), reg, domains, limit,
		func(ctx context.Context, client *wiki.Client) (struct{}, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return struct{}{}, nil
		})

	assert.LessOrEqual(t, peak, limit)
	assert.Greater(t, peak, 0)
}

func TestForAllWikisCancelledContext(t *testing.T) {
	reg := NewRegistry(WithFactory(countingFactory(new(atomic.Int32))))
	defer reg.Clear()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := ForAllWikis(ctx, reg, []string{"en.wikipedia.org"}, 1,
		func(ctx context.Context, client *wiki.Client) (string, error) {
			t.Error("task must not run after cancellation")
			return "", nil
		})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestGlobalEditCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch {
		case r.Form.Get("list") == "users":
			fmt.Fprint(w, `{"query":{"users":[{"name":"Example","userid":7,"editcount":42}]}}`)
		default:
			fmt.Fprint(w, `{"query":{}}`)
		}
	}))
	defer srv.Close()

	reg := NewRegistry(WithFactory(func(domain string) (*wiki.Client, error) {
		return wiki.NewClient(&wiki.Config{
			BaseURL:   srv.URL,
			Timeout:   5 * time.Second,
			UserAgent: "wikikit-test",
		}), nil
	}))
	defer reg.Clear()

	results := GlobalEditCounts(context.Background(), reg,
		[]string{"en.wikipedia.org", "de.wikipedia.org"}, "Example")

	require.Len(t, results, 2)
	for _, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, 42, res.Value)
	}
}
