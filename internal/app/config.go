package app

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// Socket.io signal forwarding; disabled when URL is empty.
	SocketIOURL        string
	SocketIONamespace  string
	InsecureSkipVerify bool
}
