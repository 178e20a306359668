package form

// Note is a free-text annotation attached to a field or group. Notes carry
// context between collaborators and never affect validation outcomes.
type Note struct {
	ID   string
	Role Role
	// Ref names the field or group the note concerns.
	Ref  string
	Text string
}
