package tools

// Schema renders the property as a plain JSON-schema map.
func (p *Property) Schema() map[string]any {
	out := map[string]any{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if p.Items != nil {
		out["items"] = p.Items.Schema()
	}
	if len(p.Properties) > 0 {
		props := make(map[string]any, len(p.Properties))
		for name, child := range p.Properties {
			props[name] = child.Schema()
		}
		out["properties"] = props
	}
	return out
}

// PropertySchemas renders every top-level property.
func (s *InputSchema) PropertySchemas() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name := range s.Properties {
		prop := s.Properties[name]
		props[name] = prop.Schema()
	}
	return props
}

// Schema renders the whole input schema as a JSON-schema object.
func (s *InputSchema) Schema() map[string]any {
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	out := map[string]any{
		"type":       typ,
		"properties": s.PropertySchemas(),
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}
