package httpx

import (
	"github.com/faqdesk/faqdesk/internal/service"
)

// BaseData carries state every page needs: navbar links follow the session,
// and a pending flash renders once.
type BaseData struct {
	Title         string
	Authenticated bool
	IsManager     bool
	Flash         *Flash
}

// HomeData renders the user's own messages with any in-progress edit or
// delete confirmation.
type HomeData struct {
	BaseData
	View service.ViewState
}

// AdminData renders all users' messages grouped by owner, plus the compose
// form. Compose fields survive a failed send so the user's input is not lost.
type AdminData struct {
	BaseData
	View         service.ViewState
	ComposeEmail string
	ComposeBody  string
}

// AuthPageData renders the login and signup forms. Email and Name echo back
// the submitted values on failure.
type AuthPageData struct {
	BaseData
	Email string
	Name  string
}
