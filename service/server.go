package service

// Server serves a Backend to remote clients.
type Server interface {
	Run() error
	Stop() error
}
