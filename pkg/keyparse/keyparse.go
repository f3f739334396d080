package keyparse

import (
	"fmt"
	"strings"
)

// marker separates the opaque key prefix from the decodable part.
const marker = "universe.fo."

// Usage values recognized by the grammar.
const (
	UsageNodes         = "nodes"
	UsageElements      = "elements"
	UsageNodal         = "nodal"
	UsageElemental     = "elemental"
	UsageSkin          = "skin"
	UsageElset         = "elset"
	UsageNset          = "nset"
	UsageElemActBitmap = "elementactivationbitmap"
	UsageBoundingBox   = "boundingbox"
)

// ParsedKey is the decoded form of an object key.
//
// Simtype is empty when the key carries no simtype token, which happens
// when the first token after the marker is itself a field usage (nodal or
// elemental); the index tree then omits the simtype level.
type ParsedKey struct {
	Simtype   string
	Usage     string
	Fieldname string
	Elemtype  string
	Skintype  string
	Timestep  string
}

// fieldUsage reports whether tok selects field mode.
func fieldUsage(tok string) bool {
	return tok == UsageNodal || tok == UsageElemental
}

// Parse decodes an object key.
//
// The key is split at the literal "universe.fo."; the remainder is split
// at "@" into an object part and a timestep. The object part is split on
// "." into tokens that yield simtype, usage and the usage-dependent
// fields. Keys that do not match the grammar return an error and must
// never enter the index.
func Parse(key string) (ParsedKey, error) {
	idx := strings.Index(key, marker)
	if idx < 0 {
		return ParsedKey{}, fmt.Errorf("key %q: missing %q", key, marker)
	}
	rest := key[idx+len(marker):]

	halves := strings.Split(rest, "@")
	if len(halves) != 2 {
		return ParsedKey{}, fmt.Errorf("key %q: want exactly one @", key)
	}
	objects, timestep := halves[0], halves[1]

	tokens := strings.Split(objects, ".")

	p := ParsedKey{Timestep: timestep}

	// A leading nodal/elemental token means the key has no simtype; the
	// field description starts immediately.
	if fieldUsage(tokens[0]) {
		return parseField(key, p, tokens[0], tokens[1:])
	}

	if len(tokens) < 2 {
		return ParsedKey{}, fmt.Errorf("key %q: missing usage token", key)
	}
	p.Simtype = tokens[0]

	if fieldUsage(tokens[1]) {
		return parseField(key, p, tokens[1], tokens[2:])
	}
	return parseMesh(key, p, tokens[1], tokens[2:])
}

// parseField handles the nodal/elemental form: a mandatory fieldname and
// an optional element type.
func parseField(key string, p ParsedKey, usage string, rest []string) (ParsedKey, error) {
	if len(rest) < 1 || rest[0] == "" {
		return ParsedKey{}, fmt.Errorf("key %q: %s needs a fieldname", key, usage)
	}
	p.Usage = usage
	p.Fieldname = rest[0]
	if len(rest) > 1 {
		p.Elemtype = rest[1]
	}
	return p, nil
}

// parseMesh handles the mesh forms; extra tokens are consumed per usage.
func parseMesh(key string, p ParsedKey, usage string, rest []string) (ParsedKey, error) {
	p.Usage = usage
	switch usage {
	case UsageNodes, UsageBoundingBox:
		// no further structure

	case UsageElements, UsageElemActBitmap:
		if len(rest) < 1 || rest[0] == "" {
			return ParsedKey{}, fmt.Errorf("key %q: %s needs an elemtype", key, usage)
		}
		p.Elemtype = rest[0]

	case UsageSkin:
		if len(rest) < 2 || rest[0] == "" || rest[1] == "" {
			return ParsedKey{}, fmt.Errorf("key %q: skin needs skintype and elemtype", key)
		}
		p.Skintype = rest[0]
		p.Elemtype = rest[1]

	case UsageElset:
		if len(rest) < 2 || rest[0] == "" || rest[1] == "" {
			return ParsedKey{}, fmt.Errorf("key %q: elset needs fieldname and elemtype", key)
		}
		p.Fieldname = rest[0]
		p.Elemtype = rest[1]

	case UsageNset:
		if len(rest) < 1 || rest[0] == "" {
			return ParsedKey{}, fmt.Errorf("key %q: nset needs a fieldname", key)
		}
		p.Fieldname = rest[0]

	default:
		return ParsedKey{}, fmt.Errorf("key %q: unknown usage %q", key, usage)
	}
	return p, nil
}

// TreePath returns the index tree levels below the timestep for the
// parsed key, excluding namespace and timestep themselves.
func (p ParsedKey) TreePath() []string {
	path := make([]string, 0, 5)
	if p.Simtype != "" {
		path = append(path, p.Simtype)
	}
	path = append(path, p.Usage)

	switch p.Usage {
	case UsageNodes, UsageBoundingBox:

	case UsageElements, UsageElemActBitmap:
		path = append(path, p.Elemtype)

	case UsageSkin:
		path = append(path, p.Skintype, p.Elemtype)

	case UsageNodal, UsageNset:
		path = append(path, p.Fieldname)
		// field-mode keys may carry an element type
		if p.Elemtype != "" {
			path = append(path, p.Elemtype)
		}

	case UsageElemental, UsageElset:
		path = append(path, p.Fieldname)
		if p.Elemtype != "" {
			path = append(path, p.Elemtype)
		}
	}
	return path
}
