package web

import (
	"notekeep/web/api"

	"github.com/rohanthewiz/rweb"
)

// setupRoutes configures all application routes
func setupRoutes(s *rweb.Server) {
	// Health check endpoint
	s.Get("/api/v1/health", api.Health)

	// Notes CRUD endpoints following RESTful conventions
	s.Post("/api/v1/notes", api.CreateNote)       // Create a new note
	s.Get("/api/v1/notes", api.ListNotes)         // List notes (with pagination)
	s.Get("/api/v1/notes/:id", api.GetNote)       // Get a single note by local id
	s.Put("/api/v1/notes/:id", api.UpdateNote)    // Update a note
	s.Delete("/api/v1/notes/:id", api.DeleteNote) // Soft delete a note

	// Folders and tags (read-only — their contents arrive via sync)
	s.Get("/api/v1/folders", api.ListFolders)
	s.Get("/api/v1/tags", api.ListTags)

	// Sync control endpoints for the UI
	s.Get("/api/v1/sync/control/status", api.SyncControlStatus)
	s.Post("/api/v1/sync/control/sync-now", api.SyncControlNow)
	s.Get("/api/v1/sync/control/conflicts", api.SyncControlConflicts)
	s.Post("/api/v1/sync/control/conflicts/:id/resolve", api.SyncControlResolve)
	s.Get("/api/v1/sync/control/queue", api.SyncControlQueue)
}
