package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveindex/syncd/internal/config"
)

// fakeClock makes retry tests deterministic: Sleep never actually blocks,
// it just records the requested durations.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type fakeCaller struct {
	results []*RawResult
	errs    []error
	calls   int
}

func (f *fakeCaller) Call(ctx context.Context, endpoint Endpoint, params CallParams) (*RawResult, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.results[i], nil
}

func newTestClient(caller AuthenticatedCaller) (*Client, *fakeClock) {
	clk := &fakeClock{now: time.Now()}
	c := NewClient(caller, config.ProviderConfig{MaxRetries: 3, RetryDelayMs: 100})
	c.clk = clk
	return c, clk
}

func TestClient_ListDescriptors_Success(t *testing.T) {
	caller := &fakeCaller{
		results: []*RawResult{
			{StatusCode: 200, Body: []byte(`{"descriptors":[{"id":"f1","name":"a"}],"nextPageToken":"p2"}`)},
		},
	}
	client, _ := newTestClient(caller)

	resp, err := client.ListDescriptors(context.Background(), "", 100)
	require.NoError(t, err)
	require.Len(t, resp.Descriptors, 1)
	assert.Equal(t, "f1", resp.Descriptors[0].ID)
	assert.Equal(t, "p2", resp.NextPageToken)
	assert.Equal(t, uint64(1), client.RequestCount())
}

func TestClient_RateLimit_RetriesThenSucceeds(t *testing.T) {
	caller := &fakeCaller{
		results: []*RawResult{
			{StatusCode: 429, Header: http.Header{"Retry-After": {"2"}}},
			{StatusCode: 200, Body: []byte(`{"descriptors":[],"nextPageToken":""}`)},
		},
	}
	client, clk := newTestClient(caller)

	resp, err := client.ListDescriptors(context.Background(), "", 100)
	require.NoError(t, err)
	assert.Empty(t, resp.Descriptors)
	require.Len(t, clk.sleeps, 1)
	assert.Equal(t, 2*time.Second, clk.sleeps[0])
}

func TestClient_RateLimit_ExhaustsRetries(t *testing.T) {
	results := make([]*RawResult, 0, 4)
	for i := 0; i < 4; i++ {
		results = append(results, &RawResult{StatusCode: 403})
	}
	caller := &fakeCaller{results: results}
	client, _ := newTestClient(caller)

	_, err := client.ListDescriptors(context.Background(), "", 100)
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
}

func TestClient_Transient_BackoffCapped(t *testing.T) {
	results := make([]*RawResult, 0, 4)
	for i := 0; i < 4; i++ {
		results = append(results, &RawResult{StatusCode: 503})
	}
	caller := &fakeCaller{results: results}
	client, clk := newTestClient(caller)
	client.retryDelay = time.Hour // force the cap to trigger

	_, err := client.ListDescriptors(context.Background(), "", 100)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	for _, d := range clk.sleeps {
		assert.LessOrEqual(t, d, config.MaxTransientBackoff+time.Second)
	}
}

func TestClient_Terminal_NoRetry(t *testing.T) {
	caller := &fakeCaller{
		results: []*RawResult{{StatusCode: 400}},
	}
	client, _ := newTestClient(caller)

	_, err := client.ListDescriptors(context.Background(), "", 100)
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
	assert.Equal(t, 1, caller.calls)
}

func TestClient_SpacingGate(t *testing.T) {
	caller := &fakeCaller{
		results: []*RawResult{
			{StatusCode: 200, Body: []byte(`{"descriptors":[],"nextPageToken":""}`)},
			{StatusCode: 200, Body: []byte(`{"descriptors":[],"nextPageToken":""}`)},
		},
	}
	client, clk := newTestClient(caller)

	_, err := client.ListDescriptors(context.Background(), "", 100)
	require.NoError(t, err)
	_, err = client.ListDescriptors(context.Background(), "", 100)
	require.NoError(t, err)

	require.Len(t, clk.sleeps, 1)
	assert.Equal(t, config.MinRequestSpacing, clk.sleeps[0])
}

func TestClient_ListChanges_RequiresCursor(t *testing.T) {
	client, _ := newTestClient(&fakeCaller{})
	_, err := client.ListChanges(context.Background(), "", 100)
	require.Error(t, err)
}
