package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// subscriptionSet remembers what has been subscribed. Sessions are clean,
// so the broker forgets them on every reconnect.
type subscriptionSet struct {
	mu      sync.Mutex
	byTopic map[string]subscription
}

func (s *subscriptionSet) put(sub subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byTopic == nil {
		s.byTopic = make(map[string]subscription)
	}
	s.byTopic[sub.topic] = sub
}

func (s *subscriptionSet) drop(topic string) {
	s.mu.Lock()
	delete(s.byTopic, topic)
	s.mu.Unlock()
}

func (s *subscriptionSet) snapshot() []subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]subscription, 0, len(s.byTopic))
	for _, sub := range s.byTopic {
		out = append(out, sub)
	}
	return out
}

// Subscribe routes messages on topic (wildcards allowed) to handler and
// keeps the subscription across reconnects. The command listener uses it
// with Topics{}.AllPrinterCommands().
//
// paho runs handler on its own goroutine; a slow handler delays every
// later message on the connection.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := waitToken(c.paho.Subscribe(topic, qos, c.deliver(handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		return err
	}
	c.subs.put(subscription{topic: topic, qos: qos, handler: handler})
	return nil
}

// Unsubscribe stops delivery for topic. Messages already in flight may
// still reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	c.subs.drop(topic)
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return waitToken(c.paho.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}

// resubscribe replays every remembered subscription. Failures are logged;
// paho retries on the next reconnect.
func (c *Client) resubscribe() {
	for _, sub := range c.subs.snapshot() {
		tok := c.paho.Subscribe(sub.topic, sub.qos, c.deliver(sub.handler))
		go func(topic string) {
			if err := waitToken(tok, defaultPublishTimeout, ErrSubscribeFailed); err != nil {
				if _, _, log := c.hooks.current(); log != nil {
					log.Warn("restoring MQTT subscription", "topic", topic, "error", err)
				}
			}
		}(sub.topic)
	}
}

// deliver adapts a MessageHandler to paho, logging returned errors and
// recovering panics so one bad message cannot kill the paho router.
func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		_, _, log := c.hooks.current()
		defer func() {
			if r := recover(); r != nil && log != nil {
				log.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil && log != nil {
			log.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
