package config

import "time"

// ServiceConfig describes how to reach the remote identity service and
// where the hosting shell routes anonymous/authenticated users.
type ServiceConfig interface {
	GetServiceURL() string
	GetRequestTimeout() time.Duration
	GetLoginRoute() string
	GetDashboardRoute() string
}

type Service struct{}

var _ ServiceConfig = Service{}

// GetServiceURL returns the base URL of the identity service, all auth
// endpoints hang off this (e.g. "<url>/auth/login").
func (Service) GetServiceURL() string {
	return GetEnv("SERVICE_URL", "http://localhost:8000")
}

func (Service) GetRequestTimeout() time.Duration {
	return 30 * time.Second
}

func (Service) GetLoginRoute() string {
	return GetEnv("LOGIN_ROUTE", "/login")
}

func (Service) GetDashboardRoute() string {
	return GetEnv("DASHBOARD_ROUTE", "/dashboard")
}
