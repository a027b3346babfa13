package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"notekeep/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

// APIResponse provides a consistent JSON response structure for all API endpoints.
// Success responses include data, error responses include an error message.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// writeSuccess sends a successful JSON response with data.
// Uses rweb's built-in WriteJSON which sets content-type automatically.
func writeSuccess(ctx rweb.Context, status int, data interface{}) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: true, Data: data})
}

// writeError sends an error JSON response.
func writeError(ctx rweb.Context, status int, message string) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: false, Error: message})
}

// Health handles GET /api/v1/health
func Health(ctx rweb.Context) error {
	return writeSuccess(ctx, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateNote handles POST /api/v1/notes
// Creates a new note from JSON body and returns the created note.
func CreateNote(ctx rweb.Context) error {
	var input models.NoteInput

	if err := json.Unmarshal(ctx.Request().Body(), &input); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to decode request body"), "invalid JSON")
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}

	if input.Title == "" {
		return writeError(ctx, http.StatusBadRequest, "title is required")
	}

	note, err := models.CreateNote(input)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to create note"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "failed to create note")
	}

	logger.Info("Note created", "local_id", note.LocalID)
	return writeSuccess(ctx, http.StatusCreated, note)
}

// GetNote handles GET /api/v1/notes/:id
// Retrieves a single note by its local id.
func GetNote(ctx rweb.Context) error {
	localID := ctx.Request().Param("id")
	if localID == "" {
		return writeError(ctx, http.StatusBadRequest, "invalid note id")
	}

	note, err := models.GetNoteByLocalID(localID)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to get note"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}
	if note == nil || note.DeletedAt.Valid {
		return writeError(ctx, http.StatusNotFound, "note not found")
	}

	return writeSuccess(ctx, http.StatusOK, note)
}

// ListNotes handles GET /api/v1/notes
// Supports limit/offset pagination via query parameters.
func ListNotes(ctx rweb.Context) error {
	limit := 50
	offset := 0

	if limitStr := ctx.Request().QueryParam("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 {
			return writeError(ctx, http.StatusBadRequest, "invalid limit parameter")
		}
		limit = l
	}
	if offsetStr := ctx.Request().QueryParam("offset"); offsetStr != "" {
		o, err := strconv.Atoi(offsetStr)
		if err != nil || o < 0 {
			return writeError(ctx, http.StatusBadRequest, "invalid offset parameter")
		}
		offset = o
	}

	notes, err := models.ListNotes(limit, offset)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to list notes"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}

	return writeSuccess(ctx, http.StatusOK, notes)
}

// UpdateNote handles PUT /api/v1/notes/:id
func UpdateNote(ctx rweb.Context) error {
	localID := ctx.Request().Param("id")
	if localID == "" {
		return writeError(ctx, http.StatusBadRequest, "invalid note id")
	}

	var input models.NoteInput
	if err := json.Unmarshal(ctx.Request().Body(), &input); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}
	if input.Title == "" {
		return writeError(ctx, http.StatusBadRequest, "title is required")
	}

	existing, err := models.GetNoteByLocalID(localID)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to check existing note"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}
	if existing == nil {
		return writeError(ctx, http.StatusNotFound, "note not found")
	}

	note, err := models.UpdateNote(localID, input)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to update note"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "failed to update note")
	}

	return writeSuccess(ctx, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/v1/notes/:id
// Tombstones the note; the deletion propagates on the next sync cycle.
func DeleteNote(ctx rweb.Context) error {
	localID := ctx.Request().Param("id")
	if localID == "" {
		return writeError(ctx, http.StatusBadRequest, "invalid note id")
	}

	existing, err := models.GetNoteByLocalID(localID)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to check existing note"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}
	if existing == nil {
		return writeError(ctx, http.StatusNotFound, "note not found")
	}

	if err := models.DeleteNote(localID); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to delete note"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "failed to delete note")
	}

	return writeSuccess(ctx, http.StatusOK, map[string]string{"deleted": localID})
}

// ListFolders handles GET /api/v1/folders
func ListFolders(ctx rweb.Context) error {
	folders, err := models.ListFolders()
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to list folders"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}
	return writeSuccess(ctx, http.StatusOK, folders)
}

// ListTags handles GET /api/v1/tags
func ListTags(ctx rweb.Context) error {
	tags, err := models.ListTags()
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to list tags"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}
	return writeSuccess(ctx, http.StatusOK, tags)
}
