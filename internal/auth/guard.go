package auth

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"codetube/internal/model"
	"codetube/internal/repository"
)

const (
	claimsContextKey = "accessClaims"
	// UserContextKey is where the guard stores the acting user.
	UserContextKey = "currentUser"
)

// Guard authenticates requests from an access token taken from the
// accessToken cookie or the Authorization header, then loads the acting user
// into the request context. Every failure maps to a uniform 401. The guard is
// stateless with respect to the stored refresh token, so an access token
// issued before logout stays valid until its own expiry.
type Guard struct {
	jwtService *JWTService
	users      repository.UserRepository
	userCache  UserCacheInterface
}

// NewGuard creates a new auth guard.
func NewGuard(jwtService *JWTService, users repository.UserRepository, userCache UserCacheInterface) *Guard {
	return &Guard{
		jwtService: jwtService,
		users:      users,
		userCache:  userCache,
	}
}

// Middlewares returns the middleware chain for protected routes: token
// verification followed by user loading.
func (g *Guard) Middlewares() []echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		ContextKey:  claimsContextKey,
		TokenLookup: "cookie:accessToken,header:Authorization:Bearer ",
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return g.jwtService.ValidateAccessToken(auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		},
	})
	return []echo.MiddlewareFunc{verify, g.loadUser}
}

// loadUser resolves the token's user through the cache, falling back to the
// repository on a miss. A user that no longer exists fails like any other
// token problem.
func (g *Guard) loadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := c.Get(claimsContextKey).(*AccessClaims)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}

		ctx := c.Request().Context()
		user, _ := g.userCache.GetUser(ctx, claims.UserID)
		if user == nil {
			var err error
			user, err = g.users.FindByID(ctx, claims.UserID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			_ = g.userCache.StoreUser(ctx, user)
		}

		c.Set(UserContextKey, user)
		return next(c)
	}
}

// CurrentUser returns the acting user attached by the guard.
func CurrentUser(c echo.Context) (*model.User, bool) {
	user, ok := c.Get(UserContextKey).(*model.User)
	return user, ok
}
