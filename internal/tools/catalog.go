package tools

import (
	"encoding/json"
	"fmt"

	"paygate/internal/core/ports"
)

// Tool is an operation the gateway can dispatch.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     ports.OperationHandler
}

// Catalog is the ordered set of implemented operations.
type Catalog struct {
	tools  []Tool
	byName map[string]int
}

// NewCatalog builds a catalog. Names must be unique.
func NewCatalog(tools ...Tool) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int, len(tools))}
	for _, t := range tools {
		if t.Name == "" || t.Handler == nil {
			return nil, fmt.Errorf("tool %q: name and handler are required", t.Name)
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("tool %q registered twice", t.Name)
		}
		c.byName[t.Name] = len(c.tools)
		c.tools = append(c.tools, t)
	}
	return c, nil
}

// Lookup returns the tool with the given name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Tool{}, false
	}
	return c.tools[i], true
}

// All returns the tools in registration order.
func (c *Catalog) All() []Tool {
	return append([]Tool(nil), c.tools...)
}
