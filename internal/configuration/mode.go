// Package configuration implements the envelope parser and the
// CDN→API→Roxy fallback fetcher of §4.7/§4.8, plus the per-deployment-mode
// URL templates of §6/§4.15.
package configuration

import "os"

// Mode selects which hostnames the fetcher and state sender use,
// mirroring original_source/src/core/consts.c's
// rox_env_return_value_using_mode_env exactly.
type Mode struct {
	CDN           string
	API           string
	StateCDN      string
	StateAPI      string
	Analytics     string
	Notifications string
}

var (
	localMode = Mode{
		CDN:           "https://development-conf.rollout.io",
		API:           "http://127.0.0.1:8557/device/get_configuration",
		StateCDN:      "https://development-statestore.rollout.io",
		StateAPI:      "http://127.0.0.1:8557/device/update_state_store",
		Analytics:     "http://127.0.0.1:8787",
		Notifications: "http://127.0.0.1:8887/sse",
	}
	qaMode = Mode{
		CDN:           "https://qa-conf.rollout.io",
		API:           "https://qax.rollout.io/device/get_configuration",
		StateCDN:      "https://qa-statestore.rollout.io",
		StateAPI:      "https://qax.rollout.io/device/update_state_store",
		Analytics:     "https://qaanalytic.rollout.io",
		Notifications: "https://qax-push.rollout.io/sse",
	}
	prodMode = Mode{
		CDN:           "https://conf.rollout.io",
		API:           "https://x-api.rollout.io/device/get_configuration",
		StateCDN:      "https://statestore.rollout.io",
		StateAPI:      "https://x-api.rollout.io/device/update_state_store",
		Analytics:     "https://analytic.rollout.io",
		Notifications: "https://push.rollout.io/sse",
	}
)

// ModeFromEnv selects the Mode per ROLLOUT_MODE (§6 Environment variables).
func ModeFromEnv() Mode {
	switch os.Getenv("ROLLOUT_MODE") {
	case "QA":
		return qaMode
	case "LOCAL":
		return localMode
	default:
		return prodMode
	}
}
