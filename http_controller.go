package identity

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	"github.com/kunkhmer/go-identity/middleware/jwtware"
)

// UserController exposes the registration, activation, and login flows over a
// JSON HTTP API, plus the account read endpoints.
type UserController struct {
	Debug    bool
	Logger   Logger
	Repo     RepositoryManager
	Auther   *Auther
	Register *RegisterUserHandler
	Activate *ActivateUserHandler
}

type UserControllerOption func(*UserController) *UserController

func WithControllerLogger(logger Logger) UserControllerOption {
	return func(c *UserController) *UserController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) UserControllerOption {
	return func(c *UserController) *UserController {
		c.Debug = debug
		return c
	}
}

func NewUserController(repo RepositoryManager, auther *Auther, register *RegisterUserHandler, activate *ActivateUserHandler, opts ...UserControllerOption) *UserController {
	c := &UserController{
		Logger:   defLogger{},
		Repo:     repo,
		Auther:   auther,
		Register: register,
		Activate: activate,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in user controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in user controller...")
	}

	return c
}

// RegisterRoutes mounts the controller on the given app.
func (a *UserController) RegisterRoutes(app *fiber.App) {
	guard := jwtware.New(jwtware.Config{
		TokenValidator: tokenValidatorAdapter{svc: a.Auther.TokenService()},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return a.renderError(c, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid authentication token").
				WithCode(goerrors.CodeUnauthorized).
				WithTextCode(TextCodeTokenInvalid))
		},
	})

	auth := app.Group("/auth")
	auth.Post("/register", a.RegisterUser)
	auth.Post("/activate", a.ActivateUser)
	auth.Post("/login", a.Login)
	auth.Get("/me", guard, a.CurrentUser)

	app.Get("/users", a.ListUsers)
}

// RegisterUser handles POST /auth/register. The response carries the opaque
// activation token; the matching code only travels by email.
func (a *UserController) RegisterUser(c *fiber.Ctx) error {
	payload := new(RegisterUserMessage)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return a.renderError(c, ErrUnableToParseData)
	}

	if a.Debug {
		fmt.Println("======= USER REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	var res *RegisterUserResponse
	payload.OnResponse = func(resp *RegisterUserResponse) {
		res = resp
	}

	if err := a.Register.Execute(c.UserContext(), *payload); err != nil {
		a.Logger.Error("register user execute", "error", err)
		return a.renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

// ActivateUser handles POST /auth/activate.
func (a *UserController) ActivateUser(c *fiber.Ctx) error {
	payload := new(ActivateUserMessage)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("activate user parse payload", "error", err)
		return a.renderError(c, ErrUnableToParseData)
	}

	var res *ActivateUserResponse
	payload.OnResponse = func(resp *ActivateUserResponse) {
		res = resp
	}

	if err := a.Activate.Execute(c.UserContext(), *payload); err != nil {
		a.Logger.Error("activate user execute", "error", err)
		return a.renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// LoginResponse carries the bearer credential issued on success.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// Login handles POST /auth/login.
func (a *UserController) Login(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.renderError(c, ErrUnableToParseData)
	}

	token, err := a.Auther.Login(c.UserContext(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(&LoginResponse{AccessToken: token})
}

// CurrentUser handles GET /auth/me. The guard middleware has already
// validated the bearer token and stored its claims.
func (a *UserController) CurrentUser(c *fiber.Ctx) error {
	claims, ok := jwtware.ClaimsFromContext(c, "user")
	if !ok {
		return a.renderError(c, ErrUnableToDecodeSession)
	}

	user, err := a.Repo.Users().GetByIdentifier(c.UserContext(), claims.UserID())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return a.renderError(c, ErrIdentityNotFound)
		}
		return a.renderError(c, err)
	}

	return c.JSON(user)
}

// ListUsers handles GET /users.
func (a *UserController) ListUsers(c *fiber.Ctx) error {
	records, err := a.Repo.Users().ListAll(c.UserContext())
	if err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(records)
}

func (a *UserController) renderError(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := statusFromError(richErr)

	a.Logger.Info(
		"Controller error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	body := fiber.Map{
		"error": richErr.Message,
	}

	if richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}

	if status == http.StatusBadRequest && len(richErr.Metadata) > 0 {
		body["fields"] = richErr.Metadata
	}

	if status >= http.StatusInternalServerError {
		// Internal detail stays in the logs.
		body = fiber.Map{"error": "internal server error"}
	}

	return c.Status(status).JSON(body)
}

func statusFromError(richErr *goerrors.Error) int {
	if richErr.Code > 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// tokenValidatorAdapter narrows the TokenService to the middleware interface.
type tokenValidatorAdapter struct {
	svc TokenService
}

func (t tokenValidatorAdapter) Validate(raw string) (jwtware.AuthClaims, error) {
	claims, err := t.svc.Validate(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
