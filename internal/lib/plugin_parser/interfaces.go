package plugin_parser

// Source lists and looks up installed components.
type Source interface {
	List() ([]Component, error)
	Get(id string) (Component, error)
	PluginsDir() string
	MuPluginsDir() string
}

// MockSource is a mock implementation for testing
type MockSource struct {
	ListFunc     func() ([]Component, error)
	GetFunc      func(id string) (Component, error)
	PluginsRoot  string
	MuPluginRoot string
}

func (m *MockSource) List() ([]Component, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return nil, nil
}

func (m *MockSource) Get(id string) (Component, error) {
	if m.GetFunc != nil {
		return m.GetFunc(id)
	}
	return Component{}, ErrUnknownComponent
}

func (m *MockSource) PluginsDir() string {
	return m.PluginsRoot
}

func (m *MockSource) MuPluginsDir() string {
	return m.MuPluginRoot
}
