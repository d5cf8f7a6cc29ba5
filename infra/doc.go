// Package infra holds the adapters of the allocation engine: persistence
// backends, the MQTT notification channel, metrics sinks and the Sentry
// monitor. They implement interfaces declared under core.
package infra
