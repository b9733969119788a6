package model

import "errors"

var (
	// Task related errors
	ErrTaskNotFound  = errors.New("task not found")
	ErrTaskNotActive = errors.New("task not active")

	// Auth related errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")

	// Settings related errors
	ErrSettingsNotFound = errors.New("settings not found")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
