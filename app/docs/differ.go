package docs

// Diff selects the records that have not been notified yet.
//
// Records arrive newest first, as listed by the source, and are returned oldest first
// so that an interrupted run always leaves a notified prefix of the real chronology.
// The returned set is known plus every new identity; known itself is not modified.
func Diff(records []Record, known IdentitySet) ([]Record, IdentitySet) {
	updated := known.Clone()
	toNotify := make([]Record, 0, len(records))

	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		id := IdentityOf(record)

		if updated.Has(id) {
			continue
		}

		updated.Add(id)
		toNotify = append(toNotify, record)
	}

	return toNotify, updated
}
