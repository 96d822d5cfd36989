// Package metrics holds the Prometheus collectors shared by the api and the
// cron worker. Every constructor accepts a nil registerer and then records nothing.
package metrics

// Namespace prefixes every collector registered by this package.
const Namespace = "atelier"
