package providers

// MockFactory returns a Factory that always hands out p, ignoring
// credentials. Use it with SetProviderFactory in tests.
func MockFactory(p Provider) Factory {
	return func(Credentials) Provider {
		return p
	}
}
