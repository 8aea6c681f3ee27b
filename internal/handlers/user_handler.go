package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
)

// UserHandler serves the authenticated user's own record.
type UserHandler struct {
	users  interfaces.UserStorage
	logger arbor.ILogger
}

func NewUserHandler(users interfaces.UserStorage) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: common.GetLogger(),
	}
}

// MeHandler returns the calling user.
func (h *UserHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	user, err := h.users.GetUser(r.Context(), UserID(r))
	if err != nil {
		WriteStorageError(w, err, "user")
		return
	}
	WriteJSON(w, http.StatusOK, user)
}
