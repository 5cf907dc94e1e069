package domain

// Status is the keys status code from the Oasis status registry.
type Status int

const (
	StatusSuccess   Status = 1
	StatusFail      Status = 2
	StatusNoMatch   Status = 3
	StatusNotAtRisk Status = 4
)

var statusNames = map[Status]string{
	StatusSuccess:   "success",
	StatusFail:      "fail",
	StatusNoMatch:   "nomatch",
	StatusNotAtRisk: "notatrisk",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseStatus returns the status registered under name.
func ParseStatus(name string) (Status, bool) {
	for s, n := range statusNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}
