package web

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// NewServer creates and configures the RWeb server
func NewServer() *rweb.Server {
	s := rweb.NewServer(rweb.ServerOptions{
		Address: ":8000",
		Verbose: true,
	})

	// Apply middleware
	s.Use(rweb.RequestInfo) // Logs request info
	s.Use(CorsMiddleware)   // Custom CORS middleware
	s.Use(LoggingMiddleware)

	// Setup routes
	setupRoutes(s)

	return s
}

// Run starts the server
func Run(s *rweb.Server) error {
	logger.Info("NoteKeep server starting", "address", ":8000")
	return s.Run()
}
