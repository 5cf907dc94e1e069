package lookup

import "github.com/rotisserie/eris"

// Fatal conditions. Everything else is recorded on the row.
var (
	ErrMissingColumns  = eris.New("lookup: required columns missing")
	ErrInvalidValue    = eris.New("lookup: invalid value")
	ErrNoLocationField = eris.New("lookup: no usable location field")
)
