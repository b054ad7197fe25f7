package spec

// Stack is the top-level declarative input: a named collection of services
// with dependency edges between them. This is the JSON format read from a
// stack file or posted to the stackup server.
type Stack struct {
	// Name identifies the stack. Container names and labels derive from it.
	Name string `json:"name"`

	// Services maps service names to their specs.
	Services map[string]Service `json:"services"`
}
