package dto

import "coursedl/internal/platform/websession"

type AuthenticateInput struct {
	CourseID    string
	Username    string
	Password    string
	UseNetrc    bool
	NetrcPath   string
	CookiesFile string
}

type SessionOutput struct {
	Session  *websession.Session
	Username string
	Origin   string
}

type ClearCacheInput struct {
	Username string
}

type CredentialsInput struct {
	Username  string
	Password  string
	UseNetrc  bool
	NetrcPath string
}

type CredentialsOutput struct {
	Username string
	Password string
}
