package manifest

// PackageEntry pairs a package name with its version constraint. A nil
// Constraint is serialized as null and means the package is unconstrained.
type PackageEntry struct {
	Name       string
	Constraint *string
}

// ConstraintValue returns the constraint text or an empty string when unconstrained.
func (entry PackageEntry) ConstraintValue() string {
	if entry.Constraint == nil {
		return emptyStringConstant
	}
	return *entry.Constraint
}

// Clone returns a copy of the entry that shares no memory with the original.
func (entry PackageEntry) Clone() PackageEntry {
	clonedEntry := PackageEntry{Name: entry.Name}
	if entry.Constraint != nil {
		clonedEntry.Constraint = Constraint(*entry.Constraint)
	}
	return clonedEntry
}

// PackageList is an ordered package mapping. Names are unique within a list.
type PackageList []PackageEntry

// Constraint returns a pointer to a copy of value, for building PackageEntry literals.
func Constraint(value string) *string {
	return &value
}

// Lookup returns the entry with the supplied name.
func (list PackageList) Lookup(name string) (PackageEntry, bool) {
	for _, entry := range list {
		if entry.Name == name {
			return entry, true
		}
	}
	return PackageEntry{}, false
}

// Names returns the package names in list order.
func (list PackageList) Names() []string {
	names := make([]string, 0, len(list))
	for _, entry := range list {
		names = append(names, entry.Name)
	}
	return names
}

// Clone returns a deep copy of the list.
func (list PackageList) Clone() PackageList {
	if list == nil {
		return nil
	}
	cloned := make(PackageList, 0, len(list))
	for _, entry := range list {
		cloned = append(cloned, entry.Clone())
	}
	return cloned
}

// With returns the list with entry set. An existing entry of the same name
// keeps its position and takes the new constraint; otherwise entry is appended.
func (list PackageList) With(entry PackageEntry) PackageList {
	return list.Clone().appendOrReplace(entry.Clone())
}

// appendOrReplace keeps the position of the first occurrence and the value of the last.
func (list PackageList) appendOrReplace(entry PackageEntry) PackageList {
	for index := range list {
		if list[index].Name == entry.Name {
			list[index].Constraint = entry.Constraint
			return list
		}
	}
	return append(list, entry)
}
