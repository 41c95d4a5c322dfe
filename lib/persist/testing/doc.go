// Package testing provides the conformance suite for settings backends.
// Every implementation of settings.IPersistor in this repository runs it:
//
//	func TestMyBackend(t *testing.T) {
//		persisttesting.RunPersistorTests(t, "MyBackend", func(t *testing.T) settings.IPersistor {
//			return mybackend.New(t.TempDir())
//		})
//	}
//
// Backends implementing settings.ISaveLoadable additionally run a save and
// load round trip.
package testing
