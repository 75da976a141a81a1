package web

import (
	masterdata "rainlog/internal/masterdata/domain"
	rainfall "rainlog/internal/rainfall/domain"
)

// LoginView backs the login page.
type LoginView struct {
	Username string
	Next     string
	Remember bool
	Error    string
}

// RegisterView backs the registration page.
type RegisterView struct {
	Username string
	Errors   map[string]string
}

// EntryView backs the create and edit forms. ID is zero on create.
type EntryView struct {
	ID       int64
	Form     rainfall.EntryForm
	Errors   map[string]string
	Stations []masterdata.Station
}
