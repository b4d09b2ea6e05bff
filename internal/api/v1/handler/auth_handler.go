package handler

import (
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"
	"app/internal/util"

	"github.com/rs/zerolog"
)

// AuthHandler handles signup and session endpoints

type AuthHandler struct {
	userService   service.UserService
	identityKey   string
	sessionSecret string
	secureCookies bool
	logger        zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService service.UserService, identityKey, sessionSecret string, secureCookies bool, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userService:   userService,
		identityKey:   identityKey,
		sessionSecret: sessionSecret,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// RegisterRoutes mounts auth routes under /auth
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/auth/signup", http.HandlerFunc(h.signUp))
	mux.Handle("/auth/session", http.HandlerFunc(h.createSession))
	mux.Handle("/auth/logout", http.HandlerFunc(h.logout))
	mux.Handle("/auth/verify", authMw(http.HandlerFunc(h.verify)))
}

// identityClaims validates the identity provider token. Signup and session
// minting carry the token in the request body; the Authorization header is
// accepted as a fallback for non-browser clients.
func (h *AuthHandler) identityClaims(r *http.Request, bodyToken string) (*util.Claims, bool) {
	token := bodyToken
	if token == "" {
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		return nil, false
	}
	claims, err := util.ValidateJWT(token, h.identityKey)
	if err != nil {
		h.logger.Error().Err(err).Msg("Invalid identity token")
		return nil, false
	}
	return claims, true
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// signUp godoc
// @Summary Sign up
// @Description Creates the user profile and provisions usage and cost ledgers from a verified identity token.
// @Tags auth
// @Accept json
// @Produce json
// @Success 201 {object} dto.UserResponseDTO
// @Failure 401 {string} string "Unauthorized"
// @Router /auth/signup [post]
func (h *AuthHandler) signUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	var req dto.SignUpRequestDTO
	_ = decodeJSON(r, &req) // body may be absent when the token comes via header
	claims, ok := h.identityClaims(r, req.Token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid or missing identity token")
		return
	}

	name := req.Name
	if name == "" {
		name = claims.Name
	}

	user, err := h.userService.SignUp(r.Context(), claims.Subject, claims.Email, name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := util.MintSessionToken(user.UserID, user.Email, user.Name, h.sessionSecret)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.setSessionCookie(w, token, time.Now().Add(util.SessionDuration))

	writeSuccess(w, http.StatusCreated, dto.UserResponseDTO{
		UserID:    user.UserID,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
}

// createSession godoc
// @Summary Create a session
// @Description Exchanges a verified identity token for a session cookie.
// @Tags auth
// @Produce json
// @Success 200 {object} dto.SessionResponseDTO
// @Failure 401 {string} string "Unauthorized"
// @Router /auth/session [post]
func (h *AuthHandler) createSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	var req dto.SessionRequestDTO
	_ = decodeJSON(r, &req)
	claims, ok := h.identityClaims(r, req.Token)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid or missing identity token")
		return
	}

	token, err := util.MintSessionToken(claims.Subject, claims.Email, claims.Name, h.sessionSecret)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	expires := time.Now().Add(util.SessionDuration)
	h.setSessionCookie(w, token, expires)

	writeSuccess(w, http.StatusOK, dto.SessionResponseDTO{
		UserID:    claims.Subject,
		Email:     claims.Email,
		ExpiresAt: expires,
	})
}

// logout godoc
// @Summary Log out
// @Description Clears the session cookie.
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeSuccess(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// verify godoc
// @Summary Verify the current session
// @Description Returns the authenticated user's identity.
// @Tags auth
// @Produce json
// @Success 200 {object} dto.SessionResponseDTO
// @Failure 401 {string} string "Unauthorized"
// @Router /auth/verify [post]
func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	userID, _ := r.Context().Value(middleware.UserContextKey).(string)
	claims, _ := r.Context().Value(middleware.ClaimsContextKey).(*util.Claims)
	resp := dto.SessionResponseDTO{UserID: userID}
	if claims != nil {
		resp.Email = claims.Email
		if claims.ExpiresAt != nil {
			resp.ExpiresAt = claims.ExpiresAt.Time
		}
	}
	writeSuccess(w, http.StatusOK, resp)
}
