package keyparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want ParsedKey
	}{
		{
			name: "mesh nodes",
			key:  "universe.fo.mesh.nodes@000000000000001",
			want: ParsedKey{Simtype: "mesh", Usage: "nodes", Timestep: "000000000000001"},
		},
		{
			name: "mesh elements with elemtype",
			key:  "universe.fo.mesh.elements.c3d8@000000000000001",
			want: ParsedKey{Simtype: "mesh", Usage: "elements", Elemtype: "c3d8", Timestep: "000000000000001"},
		},
		{
			name: "bounding box",
			key:  "universe.fo.mesh.boundingbox@000000000000042",
			want: ParsedKey{Simtype: "mesh", Usage: "boundingbox", Timestep: "000000000000042"},
		},
		{
			name: "element activation bitmap",
			key:  "universe.fo.mesh.elementactivationbitmap.c3d8@000000000000007",
			want: ParsedKey{Simtype: "mesh", Usage: "elementactivationbitmap", Elemtype: "c3d8", Timestep: "000000000000007"},
		},
		{
			name: "nodal field with simtype",
			key:  "universe.fo.eo.nodal.temperature@000000000000123",
			want: ParsedKey{Simtype: "eo", Usage: "nodal", Fieldname: "temperature", Timestep: "000000000000123"},
		},
		{
			name: "nodal field with simtype and elemtype",
			key:  "universe.fo.eo.nodal.temperature.eo@000000000000123",
			want: ParsedKey{Simtype: "eo", Usage: "nodal", Fieldname: "temperature", Elemtype: "eo", Timestep: "000000000000123"},
		},
		{
			name: "leading nodal token has no simtype",
			key:  "universe.fo.nodal.z1.eo@000000000000003",
			want: ParsedKey{Usage: "nodal", Fieldname: "z1", Elemtype: "eo", Timestep: "000000000000003"},
		},
		{
			name: "leading elemental token has no simtype",
			key:  "universe.fo.elemental.stress@000000000000003",
			want: ParsedKey{Usage: "elemental", Fieldname: "stress", Timestep: "000000000000003"},
		},
		{
			name: "elemental field",
			key:  "universe.fo.eo.elemental.strain.c3d8@000000000000009",
			want: ParsedKey{Simtype: "eo", Usage: "elemental", Fieldname: "strain", Elemtype: "c3d8", Timestep: "000000000000009"},
		},
		{
			name: "skin",
			key:  "universe.fo.mesh.skin.outer.c3d8@000000000000010",
			want: ParsedKey{Simtype: "mesh", Usage: "skin", Skintype: "outer", Elemtype: "c3d8", Timestep: "000000000000010"},
		},
		{
			name: "elset",
			key:  "universe.fo.mesh.elset.weld.c3d8@000000000000011",
			want: ParsedKey{Simtype: "mesh", Usage: "elset", Fieldname: "weld", Elemtype: "c3d8", Timestep: "000000000000011"},
		},
		{
			name: "nset",
			key:  "universe.fo.mesh.nset.clamp@000000000000012",
			want: ParsedKey{Simtype: "mesh", Usage: "nset", Fieldname: "clamp", Timestep: "000000000000012"},
		},
		{
			name: "opaque prefix before marker",
			key:  "prefix/universe.fo.mesh.nodes@000000000000001",
			want: ParsedKey{Simtype: "mesh", Usage: "nodes", Timestep: "000000000000001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"missing marker", "something.else@000000000000001"},
		{"no timestep separator", "universe.fo.mesh.nodes"},
		{"two timestep separators", "universe.fo.mesh.nodes@1@2"},
		{"missing usage", "universe.fo.mesh@000000000000001"},
		{"unknown usage", "universe.fo.mesh.wobble@000000000000001"},
		{"nodal without fieldname", "universe.fo.eo.nodal@000000000000001"},
		{"elemental without fieldname", "universe.fo.elemental@000000000000001"},
		{"elements without elemtype", "universe.fo.mesh.elements@000000000000001"},
		{"skin without elemtype", "universe.fo.mesh.skin.outer@000000000000001"},
		{"elset without elemtype", "universe.fo.mesh.elset.weld@000000000000001"},
		{"nset without fieldname", "universe.fo.mesh.nset@000000000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.key)
			assert.Error(t, err)
		})
	}
}

func TestTreePath(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want []string
	}{
		{
			name: "mesh nodes",
			key:  "universe.fo.mesh.nodes@000000000000001",
			want: []string{"mesh", "nodes"},
		},
		{
			name: "elements carry the elemtype level",
			key:  "universe.fo.mesh.elements.c3d8@000000000000001",
			want: []string{"mesh", "elements", "c3d8"},
		},
		{
			name: "skin carries skintype then elemtype",
			key:  "universe.fo.mesh.skin.outer.c3d8@000000000000001",
			want: []string{"mesh", "skin", "outer", "c3d8"},
		},
		{
			name: "nodal field under its simtype",
			key:  "universe.fo.eo.nodal.temperature.eo@000000000000001",
			want: []string{"eo", "nodal", "temperature", "eo"},
		},
		{
			name: "leading nodal omits the simtype level",
			key:  "universe.fo.nodal.z1.eo@000000000000001",
			want: []string{"nodal", "z1", "eo"},
		},
		{
			name: "nset mirrors nodal",
			key:  "universe.fo.mesh.nset.clamp@000000000000001",
			want: []string{"mesh", "nset", "clamp"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.TreePath())
		})
	}
}
