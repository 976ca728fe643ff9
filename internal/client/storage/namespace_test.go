package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStoreName(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantNS string
		wantT  string
	}{
		{name: "plain type", input: "Parent", wantNS: "", wantT: "Parent"},
		{name: "unsaved", input: "UnsavedEntities|Parent", wantNS: NamespaceUnsaved, wantT: "Parent"},
		{name: "deleted", input: "DeletedIDs|Child", wantNS: NamespaceDeleted, wantT: "Child"},
		{name: "first separator only", input: "A|B|C", wantNS: "A", wantT: "B|C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns, typ := SplitStoreName(tt.input)
			assert.Equal(t, tt.wantNS, ns)
			assert.Equal(t, tt.wantT, typ)
		})
	}
}

func TestStoresFor(t *testing.T) {
	assert.Equal(t, []string{
		"Parent", "UnsavedEntities|Parent", "DeletedIDs|Parent",
		"Child", "UnsavedEntities|Child", "DeletedIDs|Child",
	}, StoresFor([]string{"Parent", "Child"}))

	assert.Equal(t, "UnsavedEntities|X", UnsavedStore("X"))
	assert.Equal(t, "DeletedIDs|X", DeletedStore("X"))
	assert.True(t, IsShadowNamespace(NamespaceDeleted))
	assert.False(t, IsShadowNamespace(""))
}
