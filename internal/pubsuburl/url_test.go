package pubsuburl

import "testing"

func TestScheme(t *testing.T) {
	if got := Scheme(443); got != "https" {
		t.Errorf("Scheme(443) = %q, want https", got)
	}
	for _, port := range []int{80, 8085, 1, 65535} {
		if got := Scheme(port); got != "http" {
			t.Errorf("Scheme(%d) = %q, want http", port, got)
		}
	}
}

func TestSubscription(t *testing.T) {
	got := Subscription("localhost", 8085, "p", "s")
	want := "http://localhost:8085/v1/projects/p/subscriptions/s"
	if got != want {
		t.Errorf("Subscription() = %q, want %q", got, want)
	}

	got = Subscription("pubsub.googleapis.com", 443, "p", "s")
	want = "https://pubsub.googleapis.com:443/v1/projects/p/subscriptions/s"
	if got != want {
		t.Errorf("Subscription() = %q, want %q", got, want)
	}
}

func TestTopic(t *testing.T) {
	got := Topic("localhost", 8085, "p", "t")
	want := "http://localhost:8085/v1/projects/p/topics/t"
	if got != want {
		t.Errorf("Topic() = %q, want %q", got, want)
	}
}
