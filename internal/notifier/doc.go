// Package notifier provides notification interfaces and implementations for
// newly discovered Sydney events.
//
// The notifier package supports posting event notifications to various
// platforms including Twitter. It handles OAuth authentication, rate
// limiting, and message formatting for different notification channels.
package notifier
