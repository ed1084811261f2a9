package middleware

import (
	"net/http"

	"github.com/MrEthical07/authgate"
	"github.com/labstack/echo/v4"
)

// EchoAuthKey is the echo.Context key holding the *authgate.AuthResult.
const EchoAuthKey = "authgate.result"

// EchoGuard is Guard for echo routers.
func EchoGuard(engine *authgate.Engine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if engine == nil {
				return echoUnauthorized(c)
			}

			res, err := engine.Authenticate(c.Response(), req)
			if err != nil {
				if engine.IsAPIRequest(req) {
					return echoUnauthorized(c)
				}
				return c.Redirect(http.StatusSeeOther, engine.LoginRedirectURL(req))
			}

			c.SetRequest(req.WithContext(authgate.WithAuthResult(req.Context(), res)))
			c.Set(EchoAuthKey, res)
			return next(c)
		}
	}
}

func echoUnauthorized(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
}
