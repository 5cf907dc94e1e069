package lookup

// partition splits rows by keep, preserving order on both sides. keep may
// update the row it is handed; the update lands on whichever side it goes to.
func partition[T any](rows []T, keep func(*T) bool) (in, out []T) {
	for i := range rows {
		row := rows[i]
		if keep(&row) {
			in = append(in, row)
		} else {
			out = append(out, row)
		}
	}
	return in, out
}
