package storage

import "strings"

// Служебные пространства имен для отслеживания offline изменений
const (
	NamespaceUnsaved = "UnsavedEntities"
	NamespaceDeleted = "DeletedIDs"

	// NamespaceSeparator отделяет пространство имен от типа: "UnsavedEntities|Parent"
	NamespaceSeparator = "|"
)

// UnsavedStore returns the shadow store holding entities awaiting push.
func UnsavedStore(typ string) string {
	return NamespaceUnsaved + NamespaceSeparator + typ
}

// DeletedStore returns the shadow store holding IDs deleted while offline.
func DeletedStore(typ string) string {
	return NamespaceDeleted + NamespaceSeparator + typ
}

// SplitStoreName splits "Namespace|Type" on the first separator.
// Plain type names return an empty namespace.
func SplitStoreName(name string) (namespace, typ string) {
	ns, t, found := strings.Cut(name, NamespaceSeparator)
	if !found {
		return "", name
	}
	return ns, t
}

// IsShadowNamespace reports whether ns is one of the reserved namespaces.
func IsShadowNamespace(ns string) bool {
	return ns == NamespaceUnsaved || ns == NamespaceDeleted
}

// StoresFor returns the main store and both shadow stores for each type.
func StoresFor(types []string) []string {
	names := make([]string, 0, len(types)*3)
	for _, t := range types {
		names = append(names, t, UnsavedStore(t), DeletedStore(t))
	}
	return names
}
