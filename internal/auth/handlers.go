package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"noticeboard-backend/internal/metrics"
	"noticeboard-backend/internal/models"
	"noticeboard-backend/internal/respond"
	"noticeboard-backend/internal/storage"
)

const (
	msgInvalidBody      = "Invalid request body"
	msgHashFailed       = "Some wrong goes, please recheck"
	msgInternal         = "Something went wrong"
	msgEmailTaken       = "Email already registered"
	msgCredentials      = "Email and password required"
	msgUserNotFound     = "User not found"
	msgPasswordMismatch = "Login failed, password mismatched"
	msgLoginSuccessful  = "Login successful"
	msgPasswordTooLong  = "password must be at most 72 bytes"
)

const maxPasswordBytes = 72

type Handler struct {
	users    storage.UserStore
	hasher   PasswordHasher
	issuer   *Issuer
	validate *validator.Validate
	log      *slog.Logger
	metrics  *metrics.Collector
}

func NewHandler(users storage.UserStore, hasher PasswordHasher, issuer *Issuer, log *slog.Logger, m *metrics.Collector) *Handler {
	return &Handler{
		users:    users,
		hasher:   hasher,
		issuer:   issuer,
		validate: newValidator(),
		log:      log,
		metrics:  m,
	}
}

type signUpRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,max=72"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Msg   string `json:"msg"`
	Token string `json:"token"`
}

// SignUp registers a new user
// @Summary Register user
// @Description Hashes the password and stores a new user. The hash is never returned.
// @Tags auth
// @Accept json
// @Produce json
// @Param user body signUpRequest true "New user"
// @Success 201 {object} models.User
// @Failure 400 {object} respond.ErrorResponse "Invalid request body or missing fields"
// @Failure 409 {object} respond.ErrorResponse "Email already registered"
// @Failure 500 {object} respond.ErrorResponse "Something went wrong"
// @Router /sign_up [post]
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	req.Email = normalizeEmail(req.Email)

	if err := h.validate.Struct(req); err != nil {
		h.metrics.RecordAuth("sign_up", "invalid")
		respond.Error(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	// bcrypt reads at most 72 bytes; max=72 counts runes.
	if len(req.Password) > maxPasswordBytes {
		h.metrics.RecordAuth("sign_up", "invalid")
		respond.Error(w, http.StatusBadRequest, msgPasswordTooLong)
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.log.Error("hash password", slog.Any("error", err))
		h.metrics.RecordAuth("sign_up", metrics.ResultFailure)
		respond.Error(w, http.StatusInternalServerError, msgHashFailed)
		return
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Phone:        req.Phone,
		Department:   req.Department,
	}
	if err := h.users.CreateUser(r.Context(), &user); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			h.metrics.RecordAuth("sign_up", "conflict")
			respond.Error(w, http.StatusConflict, msgEmailTaken)
			return
		}
		h.log.Error("create user", slog.Any("error", err))
		h.metrics.RecordAuth("sign_up", metrics.ResultFailure)
		respond.Error(w, http.StatusInternalServerError, msgInternal)
		return
	}

	h.log.Info("user registered", slog.String("user_id", user.ID))
	h.metrics.RecordAuth("sign_up", metrics.ResultSuccess)
	respond.JSON(w, http.StatusCreated, user)
}

// Login authenticates a user and returns a JWT token
// @Summary User login
// @Description Authenticates user with email and password, returns a bearer token valid for one hour
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body loginRequest true "Login credentials"
// @Success 200 {object} loginResponse
// @Failure 400 {object} respond.ErrorResponse "Invalid request body or missing credentials"
// @Failure 401 {object} respond.ErrorResponse "Password mismatched"
// @Failure 404 {object} respond.ErrorResponse "User not found"
// @Failure 500 {object} respond.ErrorResponse "Something went wrong"
// @Router /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	req.Email = normalizeEmail(req.Email)

	if req.Email == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, msgCredentials)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.log.Error("find user by email", slog.Any("error", err))
		h.metrics.RecordAuth("login", metrics.ResultFailure)
		respond.Error(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if user == nil {
		h.metrics.RecordAuth("login", "not_found")
		respond.Error(w, http.StatusNotFound, msgUserNotFound)
		return
	}

	if err := h.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		h.metrics.RecordAuth("login", "mismatch")
		respond.Error(w, http.StatusUnauthorized, msgPasswordMismatch)
		return
	}

	token, err := h.issuer.GenerateToken(user.ID)
	if err != nil {
		h.log.Error("sign token", slog.Any("error", err))
		h.metrics.RecordAuth("login", metrics.ResultFailure)
		respond.Error(w, http.StatusInternalServerError, msgInternal)
		return
	}

	h.metrics.RecordAuth("login", metrics.ResultSuccess)
	respond.JSON(w, http.StatusOK, loginResponse{Msg: msgLoginSuccessful, Token: token})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return msgInvalidBody
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}
