// Package security implements the BUID/state-fingerprint MD5 computations
// and RSA signature verification named as external, pure-function
// collaborators in §1/§6. The real X-Pack verification logic was never
// open-sourced (original_source/src/core/security.c stubs it to always
// return true), so the verifier here is a genuine stdlib implementation
// behind the pluggable interface the spec names, not a port.
package security

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// DeviceProperties is the set of identifying fields the orchestrator
// attaches to every fetch/state request (§4.13, §6).
type DeviceProperties struct {
	Platform    string
	AppKey      string
	LibVersion  string
	APIVersion  string
	DistinctID  string
	DevModeSecret string
}

// md5Generator joins values with "|" and MD5-hashes the result, matching
// original_source/src/core/client.c's md5_generator_generate
// (mem_str_join("|", values)) exactly.
func md5Generator(values ...string) [16]byte {
	return md5.Sum([]byte(strings.Join(values, "|")))
}

// BUID computes the "Build UID" fingerprint (GLOSSARY): MD5 over
// platform, app-key, lib, and api version joined with "|", upper-hex
// encoded, matching the §8 E5 fixture exactly.
func BUID(props DeviceProperties) string {
	sum := md5Generator(props.Platform, props.AppKey, props.LibVersion, props.APIVersion)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// StateFingerprint computes the MD5 state fingerprint of §4.10: over
// platform, app key, dev-mode secret, and the serialized flags/custom
// properties/remote-variables payloads, joined the same way as BUID.
// Callers must pass flagsJSON/customPropsJSON/remoteVarsJSON already
// serialized in a stable (sorted) order so the fingerprint is independent
// of registration order (§8 invariant 8).
func StateFingerprint(props DeviceProperties, flagsJSON, customPropsJSON, remoteVarsJSON string) string {
	sum := md5Generator(props.Platform, props.AppKey, props.DevModeSecret, flagsJSON, customPropsJSON, remoteVarsJSON)
	return hex.EncodeToString(sum[:])
}

// GenerateDistinctID produces the default distinct_id the orchestrator
// attaches to a device when the caller supplies none (§4.13, §6).
func GenerateDistinctID() string {
	return uuid.NewString()
}

// SortedJoin is a small helper for building insertion-order-independent
// fingerprint inputs: sort then join with a separator that cannot appear
// in a flag/property name. The state sender does not use it; it sorts the
// names and JSON-encodes them itself.
func SortedJoin(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}
