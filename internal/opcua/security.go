package opcua

import (
	"fmt"
	"os"
	"strings"

	"github.com/gopcua/opcua/ua"
	"go.uber.org/zap"

	"github.com/neoedge/gateway/internal/gatewayctx"
)

// Policies is the fixed set spec.md §6.3 advertises: None plus five
// Sign+Encrypt variants, taken from gopcua/opcua/ua's real security policy
// URI constants rather than hand-rolled strings (grounded on
// original_source/neo_opcua.py:init_nodes's server.set_security_policy
// list).
var Policies = []string{
	ua.SecurityPolicyURINone,
	ua.SecurityPolicyURIBasic128Rsa15,
	ua.SecurityPolicyURIBasic256,
	ua.SecurityPolicyURIBasic256Sha256,
	ua.SecurityPolicyURIAes128Sha256RsaOaep,
	ua.SecurityPolicyURIAes256Sha256RsaPss,
}

// Credentials is a username/password pair accepted by the Username auth
// token (spec.md §6.3).
type Credentials struct {
	Username string
	Password string
}

// SecurityConfig bundles the certificate paths, auto-accept policy, and
// user credentials read at startup (spec.md §6.2), grounded on
// original_source/neo_opcua.py:init_nodes's CERT_PATH/KEY_PATH/
// AUTO_ACCEPT_CERTS/OPC_UA_USER handling.
type SecurityConfig struct {
	CertPath        string
	KeyPath         string
	AutoAcceptCerts bool
	Users           map[string]string // from config opcua.users, overridden by OPC_UA_USER
}

// LoadSecurityConfig builds the OPC UA security surface from a
// gatewayctx.Settings read once at boot by main.go, layering OPC_UA_USER
// over the config-file user map per spec.md §6.2 ("overrides config users
// when set"). It does not read the environment itself.
func LoadSecurityConfig(configUsers map[string]string, s gatewayctx.Settings) SecurityConfig {
	cfg := SecurityConfig{
		CertPath:        orDefault(s.CertPath, "server_cert.pem"),
		KeyPath:         orDefault(s.KeyPath, "server_key.pem"),
		AutoAcceptCerts: isTruthy(s.AutoAcceptCerts),
		Users:           configUsers,
	}

	if s.OPCUAUser != "" {
		if user, pass, ok := strings.Cut(s.OPCUAUser, ":"); ok {
			cfg.Users = map[string]string{user: pass}
		}
	}
	return cfg
}

// CertificatesPresent reports whether both certificate files exist.
func (c SecurityConfig) CertificatesPresent() bool {
	if c.CertPath == "" || c.KeyPath == "" {
		return false
	}
	_, certErr := os.Stat(c.CertPath)
	_, keyErr := os.Stat(c.KeyPath)
	return certErr == nil && keyErr == nil
}

// Authenticate checks a Username-token credential pair (spec.md §6.3's one
// supported auth token type).
func (c SecurityConfig) Authenticate(creds Credentials) bool {
	want, ok := c.Users[creds.Username]
	return ok && want == creds.Password
}

// CertificateValidator mirrors original_source/neo_opcua.py's
// CertificateHandler: trust everything when AutoAcceptCerts is set,
// otherwise reject.
type CertificateValidator struct {
	AutoAccept bool
	log        *zap.Logger
}

// NewCertificateValidator constructs a validator; log may be nil.
func NewCertificateValidator(autoAccept bool, log *zap.Logger) *CertificateValidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &CertificateValidator{AutoAccept: autoAccept, log: log}
}

// Verify returns nil (trust) or a BadCertificateUntrusted status, never
// logging at Error per spec.md §7's authorization-failure rule.
func (v *CertificateValidator) Verify(certDER []byte) error {
	if v.AutoAccept {
		v.log.Info("opcua: auto-accepting client certificate")
		return nil
	}
	v.log.Warn("opcua: client certificate rejected, auto-accept disabled")
	return fmt.Errorf("certificate rejected: %s", ua.StatusBadCertificateUntrusted)
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// isTruthy matches spec.md §6.2's AUTO_ACCEPT_CERTS truthy set.
func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
