// Package pubsubhttp is an HTTP client for Google Cloud Pub/Sub's REST
// API: a producer that publishes records and a subscriber that streams
// pulled messages while batching their acknowledgements back to the
// broker.
//
// Authentication is handled by an internal token pipeline: a
// service-account JWT is signed and exchanged for an OAuth2 access
// token, or an instance-metadata token is fetched on GCE/GKE, then
// cached and proactively refreshed ahead of expiry. Set Config.IsEmulator
// to bypass authentication entirely when talking to a local Pub/Sub
// emulator.
//
// Both NewProducer and NewSubscriber return a close function alongside
// the resource; callers must invoke it to release the background
// refresh and batching tasks.
package pubsubhttp
