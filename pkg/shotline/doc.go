// Package shotline implements the version lifecycle engine of a production
// tracking service: timestamped content iterations attached polymorphically
// to production entities (assets, sequences, episodes, projects, playlists).
//
// The engine maintains two invariants per owning entity: version numbers are
// assigned monotonically starting at 1, and at most one version carries the
// latest flag. File attachment, thumbnail derivation and workflow
// notifications ride alongside as best-effort side effects that never fail
// the primary mutation.
//
// Construct a Service with New and functional options:
//
//	svc, err := shotline.New(
//	    shotline.WithRepository(repo),
//	    shotline.WithStatusStore(repo),
//	    shotline.WithOwnerDirectory(repo.Directory()),
//	    shotline.WithBlobStore("media", store),
//	)
package shotline
