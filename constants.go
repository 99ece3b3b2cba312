package rox

import "time"

const (
	// SDK identity

	// platform identifies this SDK to the BUID/device-properties payload.
	platform = "go"

	// libVersion is reported in device properties and the API fetch form.
	libVersion = "1.0.0"

	// apiVersion is the server-protocol version reported to the
	// configuration API (matches internal/configuration.Fetcher's
	// "api_version" form field).
	apiVersion = "1.8.0"

	// Timeouts

	// defaultShutdownTimeout bounds how long ShutdownWithContext waits for
	// every owned worker to join before giving up and returning.
	defaultShutdownTimeout = 30 * time.Second

	// defaultFetchTimeout bounds a single fetch() HTTP round trip.
	defaultFetchTimeout = 10 * time.Second

	// defaultThrottle is rox.internal.throttleFetchInSeconds' default
	// value: the minimum interval between successive fetch() calls.
	defaultThrottle = 60 * time.Second

	// Worker floors

	// minFetchInterval is the periodic task's configuration floor (§4.12).
	minFetchInterval = 30 * time.Second

	// State codes (negative values are setup errors; see StateCode)
)
