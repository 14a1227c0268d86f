// Package access resolves what a user may do to a named resource.
//
// A ResourceClass (QUEUE, COMMAND, SERVER) owns one List of Entries plus a
// default Level. Resolution walks the entries in list order; the first entry
// whose pattern matches the resource name and that holds an opinion for the
// user (by user id, then by each of the user's groups in membership order)
// decides. No opinion anywhere yields the class default.
//
// Lists are immutable. Updates build a new List and swap it in atomically, so
// every check observes exactly one consistent snapshot.
//
//	m := access.NewManager(directory)
//	_ = m.Apply(map[access.ClassName]access.ListSpec{...})
//	d, err := m.CheckAccess(access.ClassQueue, "PAYROLL.SECRET", "user42", access.Read)
package access
