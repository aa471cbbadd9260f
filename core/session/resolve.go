package session

type (
	// TokenSource yields a bearer token, or "" when it has none.
	TokenSource interface {
		Token() string
	}

	TokenSourceFunc func() string

	// TokenChain resolves a token from its sources, in order.
	TokenChain []TokenSource
)

func (f TokenSourceFunc) Token() string {
	return f()
}

func (c TokenChain) Token() string {
	return ResolveToken(c...)
}

// ResolveToken returns the first non-empty token of the given sources.
func ResolveToken(sources ...TokenSource) string {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if token := src.Token(); token != "" {
			return token
		}
	}
	return ""
}
