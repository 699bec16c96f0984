// Package gatewayctx is the typed accessor layer over the process
// environment spec.md §6.2 defines, read once at boot (SPEC_FULL.md §6.2
// expansion). It is the single place main.go, logger, and opcua read these
// variables from — no package below it calls os.Getenv for them directly.
package gatewayctx

import "os"

// Settings holds the ambient environment variables the gateway reads at
// startup. There is no AppVersion field here: the build version comes from
// cmd/gateway's ldflags-settable Version var, not the environment.
type Settings struct {
	AppName         string
	LogLevel        string
	LogFileCount    string
	CertPath        string
	KeyPath         string
	AutoAcceptCerts string
	OPCUAUser       string
}

// LoadSettings reads spec.md §6.2's environment variables.
func LoadSettings() Settings {
	return Settings{
		AppName:         envOr("APP_NAME", "neoedge-gateway"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		LogFileCount:    os.Getenv("LOG_FILE_COUNT"),
		CertPath:        os.Getenv("CERT_PATH"),
		KeyPath:         os.Getenv("KEY_PATH"),
		AutoAcceptCerts: os.Getenv("AUTO_ACCEPT_CERTS"),
		OPCUAUser:       os.Getenv("OPC_UA_USER"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
