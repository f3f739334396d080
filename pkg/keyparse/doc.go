/*
Package keyparse decodes the semantic structure of object keys.

Simulation artifacts are named like

	<prefix>universe.fo.<simtype>.<usage>[.<more>]@<timestep>

where usage is one of nodes, elements, nodal, elemental, skin, elset,
nset, elementactivationbitmap or boundingbox. The decoded fields drive
the placement of an object inside the index tree. Keys that do not match
the grammar are rejected and never indexed.
*/
package keyparse
