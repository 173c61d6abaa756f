// Package auth contiene los controllers de autenticación.
package auth

import (
	svc "github.com/crewgate/crewgate/internal/http/services/auth"
)

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	Login     *LoginController
	MagicLink *MagicLinkController
	Refresh   *RefreshController
	Logout    *LogoutController
	Me        *MeController
}

// NewControllers crea el agregador de controllers auth.
func NewControllers(s svc.Services) *Controllers {
	return &Controllers{
		Login:     NewLoginController(s.Login),
		MagicLink: NewMagicLinkController(s.MagicLink),
		Refresh:   NewRefreshController(s.Refresh),
		Logout:    NewLogoutController(s.Logout),
		Me:        NewMeController(),
	}
}
