// Package pubsub is the Google Cloud Pub/Sub v2 client the outbox publisher
// and the event consumers share. Short topic and subscription IDs are
// expanded against the configured project.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// resource is a topic or subscription the process depends on.
type resource struct {
	kind string
	path string
}

// lookupFunc returns nil when the resource exists.
type lookupFunc func(ctx context.Context, r resource) error

type Client struct {
	ps      *pubsub.Client
	project string
	cfg     config.PubSubConfig
	lookup  lookupFunc
}

// NewClient dials Pub/Sub (honoring PUBSUB_EMULATOR_HOST) and fails when a
// configured topic or subscription is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{ps: ps, project: project, cfg: cfg}
	c.lookup = c.adminLookup
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project_id": project,
			"resources":  c.resourcePaths(),
		}), "pubsub.connected")
	}
	return c, nil
}

func (c *Client) resources() []resource {
	var out []resource
	add := func(kind string, names ...string) {
		for _, n := range names {
			if path := resourceName(c.project, kind, n); path != "" {
				out = append(out, resource{kind: kind, path: path})
			}
		}
	}
	add(kindTopic, c.cfg.OrdersTopic, c.cfg.ReviewsTopic)
	add(kindSubscription, c.cfg.OrdersSubscription, c.cfg.ReviewsSubscription)
	return out
}

func (c *Client) resourcePaths() []string {
	rs := c.resources()
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.path
	}
	return out
}

func (c *Client) adminLookup(ctx context.Context, r resource) error {
	var err error
	switch r.kind {
	case kindTopic:
		_, err = c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: r.path})
	case kindSubscription:
		_, err = c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: r.path})
	default:
		return fmt.Errorf("unknown pubsub resource kind %q", r.kind)
	}
	return err
}

// Ping checks every configured resource concurrently.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.lookup == nil {
		return errNotInitialized
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range c.resources() {
		g.Go(func() error {
			err := c.lookup(gctx, r)
			switch {
			case err == nil:
				return nil
			case status.Code(err) == codes.NotFound:
				return fmt.Errorf("%s does not exist", r.path)
			default:
				return fmt.Errorf("checking %s: %w", r.path, err)
			}
		})
	}
	return g.Wait()
}

// Subscription accepts a short ID or a full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.ps == nil {
		return nil
	}
	if path := resourceName(c.project, kindSubscription, name); path != "" {
		return c.ps.Subscriber(path)
	}
	return nil
}

func (c *Client) OrdersSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.OrdersSubscription)
}

func (c *Client) ReviewsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.ReviewsSubscription)
}

// Publisher accepts a short ID or a full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	if path := resourceName(c.project, kindTopic, name); path != "" {
		return c.ps.Publisher(path)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

// resourceName expands an ID into projects/<p>/<kind>/<id>. Names that are
// already fully qualified for kind pass through.
func resourceName(project, kind, name string) string {
	name = strings.TrimSpace(name)
	project = strings.TrimSpace(project)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	case project == "":
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + name
}
