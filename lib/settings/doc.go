// Package settings implements an in-process, hierarchically keyed settings
// store. Values live in named instances, are grouped into categories derived
// from their keys, are observed by bound values and are mirrored into any
// number of persistence backends.
//
// Keys:
//
//	Keys consist of delimiter separated segments ("stats.launch_count"). The
//	last segment is the leaf name, everything before it the category. Keys
//	are normalized to the configured naming convention and keys without a
//	category are moved into the orphan category ("_other_"), see Sanitize.
//
// Instances:
//
//	An instance (Settings) is created with New and a unique name. It holds
//	the values per category, an index of observers per key, a capped change
//	log and its backends. The process-wide registry only references
//	instances weakly, so an instance is collected once its owner drops it.
//	Standard returns the default instance used by values bound without an
//	explicit instance.
//
// Change Propagation:
//
//	Every mutation is a transaction. Within it the value map is updated
//	first, then bound observers are notified (except the one that caused the
//	change), then every backend is called in order and finally a change
//	record is appended. BulkChanges groups several mutations into one
//	transaction; the context handed to its body carries the transaction, so
//	calls made with it (also from observer callbacks) run inline.
//
// Boot Sequence:
//
//	A new instance moves from Booting to Loading, loads every backend that
//	implements ISaveLoadable and only then becomes Running. Values of all
//	backends are reconciled per key (majority wins, ties go to the first
//	backend) and pushed to the observers. WhenLoaded and Ready notify callers
//	once the instance is running.
//
// Usage Example:
//
//	s, err := settings.New("app", settings.Options{
//	    Persistors: []settings.IPersistor{memory.New("app")},
//	})
//	if err != nil {
//	    // handle error
//	}
//	<-s.Ready()
//
//	launches := settings.NewValue("stats.launch_count", 0)
//	_ = launches.Bind(ctx, s)
//	_ = launches.Set(ctx, launches.Get()+1)
//
//	v, ok, err := s.GetValue(ctx, "stats.launch_count") // 1, true, nil
//
// Thread Safety:
//
//	All exported methods are safe for concurrent use. Transactions of one
//	instance are totally ordered by its transaction lock; there is no
//	ordering across instances.
package settings
