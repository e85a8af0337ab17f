package config

type SecurityLevel int

const (
	SecurityPublic  SecurityLevel = iota // No authentication
	SecurityRefresh                      // Refresh token required
	SecurityAccess                       // Access token required
)

// EndpointSecurityConfig maps route names to their required security level.
// Route names are set on the mux routes in internal/api/http.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Auth - Public
	"auth.register": SecurityPublic,
	"auth.login":    SecurityPublic,
	"health":        SecurityPublic,

	// Auth - Refresh Protected
	"auth.refresh": SecurityRefresh,

	// Catalog - Public reads
	"books.list":    SecurityPublic,
	"books.popular": SecurityPublic,
	"books.get":     SecurityPublic,
}

// GetSecurityLevel returns the security level for a route.
// Unlisted routes require an access token.
func GetSecurityLevel(route string) SecurityLevel {
	if level, ok := EndpointSecurityConfig[route]; ok {
		return level
	}
	return SecurityAccess
}
