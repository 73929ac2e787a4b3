package routes

// Version is the API version used in routing.
const Version = "v1"

// Base returns the versioned API base path ("/api/v1").
func Base() string {
	return "/api/" + Version
}

// Ask is the question answering endpoint.
func Ask() string {
	return Base() + "/ask"
}

// Graph serves the pipeline diagram.
func Graph() string {
	return Base() + "/graph"
}

// HealthVersioned returns the versioned health path ("/api/v1/health").
func HealthVersioned() string {
	return Base() + "/health"
}

// Health is the unversioned health check path.
func Health() string {
	return "/health"
}
