package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/orders", resourceName("p1", kindTopic, " orders "))
	assert.Equal(t, "projects/p2/subscriptions/reviews", resourceName("p1", kindSubscription, "projects/p2/subscriptions/reviews"))
	assert.Equal(t, "projects/p1/subscriptions/projects/p2/topics/x", resourceName("p1", kindSubscription, "projects/p2/topics/x"))
	assert.Empty(t, resourceName("p1", kindTopic, "  "))
	assert.Empty(t, resourceName("", kindTopic, "orders"))
}

func fakeClient(cfg config.PubSubConfig, lookup lookupFunc) *Client {
	return &Client{project: "sfc-dev", cfg: cfg, lookup: lookup}
}

func TestResourcesSkipBlank(t *testing.T) {
	c := fakeClient(config.PubSubConfig{
		OrdersTopic:         "orders",
		ReviewsTopic:        " ",
		ReviewsSubscription: "reviews-sub",
	}, nil)
	assert.Equal(t, []string{
		"projects/sfc-dev/topics/orders",
		"projects/sfc-dev/subscriptions/reviews-sub",
	}, c.resourcePaths())
}

func TestPingChecksEveryResource(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	c := fakeClient(config.PubSubConfig{OrdersTopic: "orders", ReviewsTopic: "reviews", ReviewsSubscription: "reviews-sub"},
		func(_ context.Context, r resource) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, r.kind+":"+r.path)
			return nil
		})

	require.NoError(t, c.Ping(context.Background()))
	assert.ElementsMatch(t, []string{
		"topics:projects/sfc-dev/topics/orders",
		"topics:projects/sfc-dev/topics/reviews",
		"subscriptions:projects/sfc-dev/subscriptions/reviews-sub",
	}, seen)
}

func TestPingReportsMissingAndFailingResources(t *testing.T) {
	cfg := config.PubSubConfig{OrdersTopic: "orders"}

	missing := fakeClient(cfg, func(context.Context, resource) error {
		return status.Error(codes.NotFound, "gone")
	})
	assert.EqualError(t, missing.Ping(context.Background()), "projects/sfc-dev/topics/orders does not exist")

	down := errors.New("unavailable")
	failing := fakeClient(cfg, func(context.Context, resource) error { return down })
	assert.ErrorIs(t, failing.Ping(context.Background()), down)
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("orders"))
	assert.Nil(t, c.Subscription("orders"))
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
}
