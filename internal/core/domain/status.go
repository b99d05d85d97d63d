package domain

import "time"

// NetworkStatus is the monitor's view of connectivity, read by the
// coordinator and by UI status indicators.
type NetworkStatus struct {
	IsOnline            bool      `json:"isOnline"`
	LastCheckedAt       time.Time `json:"lastCheckedAt"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	QueueDepth          int       `json:"queueDepth"`
	BaseURL             string    `json:"baseUrl"`
}
