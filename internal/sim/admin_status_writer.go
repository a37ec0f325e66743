package sim

// AdminStatusWriter is implemented by sinks that display whether the admin
// HTTP server is listening.
type AdminStatusWriter interface {
	SetAdminStatus(listening bool)
}
