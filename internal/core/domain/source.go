package domain

// Source identifies a message archive kind.
type Source string

const (
	// SourceIMessage is the local iMessage chat database.
	SourceIMessage Source = "imessage"

	// SourceEmail is the local Apple Mail emlx archive.
	SourceEmail Source = "email"
)

// Valid reports whether the source is a known archive kind.
func (s Source) Valid() bool {
	return s == SourceIMessage || s == SourceEmail
}

// String returns the source identifier.
func (s Source) String() string {
	return string(s)
}
