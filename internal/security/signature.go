package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"regexp"
)

// SignatureVerifier checks an RSA signature over a configuration
// envelope's inner data (§4.7 step 2). Pluggable so tests can substitute a
// verifier that always succeeds/fails without a real key pair.
type SignatureVerifier interface {
	Verify(data string, signatureBase64 string) bool
}

// RSAVerifier is the default SignatureVerifier: PKCS#1 v1.5 signature
// verification over the SHA-256 digest of data, using an embedded public
// key. crypto/rsa is stdlib — justified in DESIGN.md: spec §1 explicitly
// classifies signature verification as an out-of-scope pure-function
// collaborator, and no pack repo imports a third-party crypto library for
// RSA.
type RSAVerifier struct {
	PublicKey *rsa.PublicKey
}

func NewRSAVerifier(publicKey *rsa.PublicKey) *RSAVerifier {
	return &RSAVerifier{PublicKey: publicKey}
}

func (v *RSAVerifier) Verify(data string, signatureBase64 string) bool {
	if v.PublicKey == nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(data))
	return rsa.VerifyPKCS1v15(v.PublicKey, crypto.SHA256, digest[:], sig) == nil
}

// AlwaysValidVerifier accepts every signature. Core installs it in every
// deployment mode, since no public key is configured.
type AlwaysValidVerifier struct{}

func (AlwaysValidVerifier) Verify(string, string) bool { return true }

// Sign is the counterpart to RSAVerifier, used only by tests to produce a
// valid signature fixture.
func Sign(privateKey *rsa.PrivateKey, data string) (string, error) {
	digest := sha256.Sum256([]byte(data))
	sig, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

var apiKeyPattern = regexp.MustCompile(`^[a-f0-9]{24}$`)

// ValidAPIKeyFormat checks the orchestrator's non-Roxy-mode API key format
// invariant (§4.13).
func ValidAPIKeyFormat(apiKey string) bool {
	return apiKeyPattern.MatchString(apiKey)
}
