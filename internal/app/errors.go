package app

import (
	"errors"
	"net/http"

	"spashell/bff/internal/assets"
	"spashell/bff/internal/config"
)

type ErrorKind int

const (
	KindAny ErrorKind = iota
	KindConfig
	KindRootConfig
	KindManifest
	KindValidation
	KindBadRequest
	KindForbidden
	KindJSONParse
	KindService
	KindMethodNotAllowed
)

var kindInfo = map[ErrorKind]struct {
	status int
	title  string
}{
	KindAny:              {http.StatusInternalServerError, "Internal Server Error"},
	KindConfig:           {http.StatusInternalServerError, "Configuration Error"},
	KindRootConfig:       {http.StatusInternalServerError, "Root Configuration Error"},
	KindManifest:         {http.StatusInternalServerError, "Manifest Error"},
	KindValidation:       {http.StatusBadRequest, "Validation Error"},
	KindBadRequest:       {http.StatusBadRequest, "Bad Request"},
	KindForbidden:        {http.StatusForbidden, "Forbidden"},
	KindJSONParse:        {http.StatusInternalServerError, "JSON Parse Error"},
	KindService:          {http.StatusInternalServerError, "Service Error"},
	KindMethodNotAllowed: {http.StatusMethodNotAllowed, "Method Not Allowed"},
}

func (k ErrorKind) Status() int {
	if info, ok := kindInfo[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func (k ErrorKind) Title() string {
	if info, ok := kindInfo[k]; ok {
		return info.title
	}
	return kindInfo[KindAny].title
}

// DomainError is an error that already knows how it is presented to clients.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return e.Kind.Title() + ": " + e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func domainError(kind ErrorKind, message string, err error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Err: err}
}

// ErrorInfo is what the shared error page renders.
type ErrorInfo struct {
	StatusCode  int
	Title       string
	Message     string
	Description string
}

func newErrorInfo(kind ErrorKind, message string) ErrorInfo {
	return ErrorInfo{
		StatusCode:  kind.Status(),
		Title:       kind.Title(),
		Message:     message,
		Description: message,
	}
}

func mapError(err error) ErrorInfo {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return newErrorInfo(domainErr.Kind, domainErr.Message)
	}
	var fetchErr *assets.FetchError
	if errors.As(err, &fetchErr) {
		return newErrorInfo(KindManifest, fetchErr.Error())
	}
	var rootErr *assets.RootConfigError
	if errors.As(err, &rootErr) {
		return newErrorInfo(KindRootConfig, rootErr.Error())
	}
	if errors.Is(err, config.ErrInvalid) {
		return newErrorInfo(KindConfig, err.Error())
	}
	return newErrorInfo(KindAny, "Server error")
}
