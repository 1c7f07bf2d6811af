package providers

// Status tells a successful empty answer apart from a failed request.
type Status int

const (
	// StatusMissing means the provider answered but had no usable value.
	StatusMissing Status = iota
	StatusFound
	// StatusFailed means the request or the response decoding failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusFailed:
		return "failed"
	default:
		return "missing"
	}
}

// Lookup is the result of a provider query.
type Lookup struct {
	Status Status
	Value  string
	Err    error
}

func Found(value string) Lookup {
	if value == "" {
		return Missing()
	}
	return Lookup{Status: StatusFound, Value: value}
}

func Missing() Lookup {
	return Lookup{Status: StatusMissing}
}

func Failed(err error) Lookup {
	return Lookup{Status: StatusFailed, Err: err}
}

func (l Lookup) OK() bool {
	return l.Status == StatusFound
}
