package main

import (
	"context"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// topicPublisher publishes one message and waits for the server id.
type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) (string, error)
	Stop()
}

// topicSet lazily opens one publisher per topic and reuses it.
type topicSet struct {
	mu   sync.Mutex
	open func(topic string) topicPublisher
	pubs map[string]topicPublisher
}

func newTopicSet(open func(topic string) topicPublisher) *topicSet {
	return &topicSet{open: open, pubs: map[string]topicPublisher{}}
}

func (s *topicSet) Get(topic string) topicPublisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pubs[topic]; ok {
		return p
	}
	p := s.open(topic)
	if p != nil {
		s.pubs[topic] = p
	}
	return p
}

// Stop flushes and closes every publisher opened so far.
func (s *topicSet) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, p := range s.pubs {
		p.Stop()
		delete(s.pubs, topic)
	}
}

// orderedPublisher enables per-key ordering. After a failed publish the key
// is paused by the client library, so it is resumed before the next retry.
type orderedPublisher struct {
	pub *gcppubsub.Publisher
}

func newOrderedPublisher(p *gcppubsub.Publisher) topicPublisher {
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	return orderedPublisher{pub: p}
}

func (o orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) (string, error) {
	id, err := o.pub.Publish(ctx, msg).Get(ctx)
	if err != nil && msg.OrderingKey != "" {
		o.pub.ResumePublish(msg.OrderingKey)
	}
	return id, err
}

func (o orderedPublisher) Stop() { o.pub.Stop() }
