// Package pubsuburl builds the base URLs for the Pub/Sub REST v1
// subscription and topic resources, shared by the consumer reader and
// the producer.
package pubsuburl

import "fmt"

// Scheme returns "https" if port is 443, "http" otherwise. This is what
// lets the same client code talk to the emulator (plain HTTP, arbitrary
// port) and to the real service (TLS on 443).
func Scheme(port int) string {
	if port == 443 {
		return "https"
	}
	return "http"
}

// Subscription builds the base URL for a subscription resource:
// {scheme}://{host}:{port}/v1/projects/{project}/subscriptions/{subscription}
func Subscription(host string, port int, project, subscription string) string {
	return fmt.Sprintf("%s://%s:%d/v1/projects/%s/subscriptions/%s", Scheme(port), host, port, project, subscription)
}

// Topic builds the base URL for a topic resource:
// {scheme}://{host}:{port}/v1/projects/{project}/topics/{topic}
func Topic(host string, port int, project, topic string) string {
	return fmt.Sprintf("%s://%s:%d/v1/projects/%s/topics/%s", Scheme(port), host, port, project, topic)
}
