package sessions

// Capability is the access level of a principal for one database. The
// storage engine consumes it as a simple gate on mutating operations.
type Capability uint8

const (
	CapNone  Capability = iota // no access
	CapRead                    // queries, integrity checks, attachment reads
	CapWrite                   // ingestion, rollback, replication, attachment removal
	CapAdmin                   // user management, database removal
)

func (c Capability) String() string {
	switch c {
	case CapRead:
		return "read"
	case CapWrite:
		return "write"
	case CapAdmin:
		return "admin"
	default:
		return "none"
	}
}

// CanRead reports whether the capability allows read operations.
func (c Capability) CanRead() bool { return c >= CapRead }

// CanWrite reports whether the capability allows mutating operations.
func (c Capability) CanWrite() bool { return c >= CapWrite }

// CanAdmin reports whether the capability allows administrative operations.
func (c Capability) CanAdmin() bool { return c >= CapAdmin }

// ParseCapability maps a grant string from the users file to a Capability.
func ParseCapability(s string) Capability {
	switch s {
	case "read":
		return CapRead
	case "write":
		return CapWrite
	case "admin":
		return CapAdmin
	default:
		return CapNone
	}
}
