package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/auth"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
	"github.com/sakif/knowledge-base/internal/service"
)

// UserService is what UserHandler needs from the service layer.
type UserService interface {
	Login(ctx context.Context, email, password string) (string, error)
	CreateUser(ctx context.Context, in service.CreateUserInput) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, callerID, id string, in service.UpdateUserInput) (*model.User, error)
	SearchUsers(ctx context.Context, filter repository.UserFilter) ([]model.User, error)
}

var _ UserService = (*service.UserService)(nil)

// UserHandler serves /user: sign-up, login and account management.
type UserHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	SessionToken string `json:"sessionToken"`
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	Name     model.Optional[string] `json:"name"`
	Password model.Optional[string] `json:"password"`
	Active   model.Optional[bool]   `json:"active"`
}

// HandleLogin exchanges credentials for a session token.
//
// HTTP: POST /user/login
// REQUEST BODY:  {"email": "jim@example.com", "password": "..."}
// RESPONSE BODY: {"sessionToken": "eyJhbGciOi..."}
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, apperror.ValidationFailed("email", "email and password are required"))
		return
	}

	token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{SessionToken: token})
}

// HandleCreate signs up a new user.
//
// HTTP: POST /user → 201 with the user (never the password hash)
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.CreateUser(r.Context(), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleGet returns one user.
//
// HTTP: GET /user/{userID}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUserByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate changes the caller's own account.
//
// HTTP: PATCH /user/{userID}
// REQUEST BODY: {"name": "...", "password": "...", "active": false}, every field optional
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateUser(r.Context(), callerID, chi.URLParam(r, "userID"), service.UpdateUserInput{
		Name:     req.Name,
		Password: req.Password,
		Active:   req.Active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleSearch lists users.
//
// HTTP: GET /user/search?limit=20&offset=0&name=jim&active=true
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		f   repository.UserFilter
		err error
	)
	if f.Limit, err = queryInt(q, "limit", service.DefaultUserLimit); err != nil {
		writeError(w, err)
		return
	}
	if f.Offset, err = queryInt(q, "offset", 0); err != nil {
		writeError(w, err)
		return
	}
	if f.Active, err = queryBool(q, "active"); err != nil {
		writeError(w, err)
		return
	}
	f.Name = queryString(q, "name")

	users, err := h.users.SearchUsers(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}
