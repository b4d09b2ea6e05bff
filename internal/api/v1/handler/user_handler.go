package handler

import (
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// UserHandler handles user profile endpoints

type UserHandler struct {
	userService service.UserService
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, validate *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		validate:    validate,
		logger:      logger,
	}
}

// RegisterRoutes mounts user routes under /user/{uid}
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/user/upgrade/plan", authMw(http.HandlerFunc(h.upgradePlan)))
	mux.Handle("/user/", authMw(http.HandlerFunc(h.handleUser)))
}

func (h *UserHandler) handleUser(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimPrefix(r.URL.Path, "/user/")
	if uid == "" || strings.Contains(uid, "/") {
		http.NotFound(w, r)
		return
	}

	// A user may only act on their own profile.
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}
	if uid != userID {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getProfile(w, r, uid)
	case http.MethodPatch:
		h.updateProfile(w, r, uid)
	case http.MethodDelete:
		h.deleteAccount(w, r, uid)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func userDTO(u *model.User) dto.UserResponseDTO {
	return dto.UserResponseDTO{
		UserID:    u.UserID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// getProfile godoc
// @Summary Get a user profile
// @Description Retrieves the profile with the current usage snapshot.
// @Tags users
// @Produce json
// @Param uid path string true "User ID"
// @Success 200 {object} dto.UserProfileResponseDTO
// @Failure 403 {string} string "Forbidden"
// @Failure 404 {string} string "User not found"
// @Router /user/{uid} [get]
func (h *UserHandler) getProfile(w http.ResponseWriter, r *http.Request, uid string) {
	profile, err := h.userService.GetProfile(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, dto.UserProfileResponseDTO{
		User:  userDTO(profile.User),
		Usage: usageDTO(profile.Usage),
	})
}

// updateProfile godoc
// @Summary Update a user profile
// @Description Updates the display name and avatar.
// @Tags users
// @Accept json
// @Produce json
// @Param uid path string true "User ID"
// @Success 200 {object} dto.UserResponseDTO
// @Failure 404 {string} string "User not found"
// @Router /user/{uid} [patch]
func (h *UserHandler) updateProfile(w http.ResponseWriter, r *http.Request, uid string) {
	var req dto.UserUpdateDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "avatar_url must be a valid URL")
		return
	}
	user, err := h.userService.UpdateProfile(r.Context(), uid, req.Name, req.AvatarURL)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, userDTO(user))
}

// deleteAccount godoc
// @Summary Delete an account
// @Description Removes the user, their files, transcripts, content, and ledgers.
// @Tags users
// @Produce json
// @Param uid path string true "User ID"
// @Success 200 {object} map[string]string
// @Failure 404 {string} string "User not found"
// @Router /user/{uid} [delete]
func (h *UserHandler) deleteAccount(w http.ResponseWriter, r *http.Request, uid string) {
	if err := h.userService.DeleteAccount(r.Context(), uid); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

// upgradePlan godoc
// @Summary Change subscription plan
// @Description Switches the caller's plan; minutes already used this cycle carry over.
// @Tags users
// @Accept json
// @Produce json
// @Success 200 {object} dto.UsageResponseDTO
// @Failure 400 {string} string "Unknown plan"
// @Router /user/upgrade/plan [post]
func (h *UserHandler) upgradePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	uid, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || uid == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized: User ID not found in context")
		return
	}

	var req dto.PlanUpgradeDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "plan is required")
		return
	}
	snapshot, err := h.userService.UpgradePlan(r.Context(), uid, req.Plan)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, usageDTO(snapshot))
}
