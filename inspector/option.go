package inspector

// Option configures a Server at construction time.
type Option func(*Server)

// WithPort overrides the port Start listens on.
func WithPort(port string) Option {
	return func(s *Server) {
		s.port = port
	}
}
